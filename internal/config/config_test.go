package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "crm.db", cfg.Database.Path)
	assert.Equal(t, "files", cfg.Storage.FilesDir)
	assert.Equal(t, time.Hour, cfg.Auth.TokenLifetime)
	assert.False(t, cfg.Kanban.RequireAuth)
	assert.False(t, cfg.Kanban.LinkEventsOnCreate)
	assert.Equal(t, 10*time.Second, cfg.Kanban.WriteTimeout)
	assert.Equal(t, "kanban", cfg.Redis.Channel)
	assert.False(t, cfg.GoogleOAuthEnabled())
	assert.False(t, cfg.CalendarMirrorEnabled())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	content := `
[server]
port = "9000"

[kanban]
require_auth = true
link_events_on_create = true
idle_timeout = "2m"

[google.calendar]
calendar_id = "team@example.com"

[google.service_account]
type = "service_account"
client_email = "bot@example.iam.gserviceaccount.com"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.Kanban.RequireAuth)
	assert.True(t, cfg.Kanban.LinkEventsOnCreate)
	assert.Equal(t, 2*time.Minute, cfg.Kanban.IdleTimeout)
	assert.Equal(t, "service_account", cfg.Google.ServiceAccount["type"])
	assert.True(t, cfg.CalendarMirrorEnabled())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CRM_SERVER_PORT", "7000")
	t.Setenv("CRM_KANBAN_WRITE_TIMEOUT", "3s")
	t.Setenv("GOOGLE_CLIENT_ID", "client")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Kanban.WriteTimeout)
	assert.Equal(t, "client", cfg.Google.OAuth.ClientID)
	assert.True(t, cfg.GoogleOAuthEnabled())
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[server\nport = "), 0o600))

	_, err := Load(dir)
	assert.Error(t, err)
}
