// Package config loads the service configuration from config.toml, the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Google   GoogleConfig   `mapstructure:"google"`
	Kanban   KanbanConfig   `mapstructure:"kanban"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type StorageConfig struct {
	FilesDir string `mapstructure:"files_dir"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime"`
}

type GoogleConfig struct {
	OAuth          GoogleOAuthConfig    `mapstructure:"oauth"`
	ServiceAccount map[string]any       `mapstructure:"service_account"`
	Calendar       GoogleCalendarConfig `mapstructure:"calendar"`
}

type GoogleOAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

type GoogleCalendarConfig struct {
	CalendarID string `mapstructure:"calendar_id"`
}

type KanbanConfig struct {
	RequireAuth        bool          `mapstructure:"require_auth"`
	LinkEventsOnCreate bool          `mapstructure:"link_events_on_create"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Channel string `mapstructure:"channel"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.path", "crm.db")
	v.SetDefault("storage.files_dir", "files")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime", time.Hour)
	v.SetDefault("google.oauth.client_id", "")
	v.SetDefault("google.oauth.client_secret", "")
	v.SetDefault("google.oauth.redirect_url", "")
	v.SetDefault("google.calendar.calendar_id", "")
	v.SetDefault("kanban.require_auth", false)
	v.SetDefault("kanban.link_events_on_create", false)
	v.SetDefault("kanban.idle_timeout", time.Duration(0))
	v.SetDefault("kanban.write_timeout", 10*time.Second)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.channel", "kanban")
}

// Load reads config.toml from dir. A missing file is not an error; every key
// has a default and can be overridden with CRM_<SECTION>_<KEY>.
func Load(dir string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Debug("No .env file loaded", zap.Error(err))
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)
	v.SetEnvPrefix("CRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// The Google client settings are commonly kept in .env without a prefix.
	_ = v.BindEnv("google.oauth.client_id", "CRM_GOOGLE_OAUTH_CLIENT_ID", "GOOGLE_CLIENT_ID")
	_ = v.BindEnv("google.oauth.client_secret", "CRM_GOOGLE_OAUTH_CLIENT_SECRET", "GOOGLE_CLIENT_SECRET")
	_ = v.BindEnv("google.oauth.redirect_url", "CRM_GOOGLE_OAUTH_REDIRECT_URL", "GOOGLE_REDIRECT_URI")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		zap.L().Warn("No config file found, using defaults and environment", zap.String("dir", dir))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

// GoogleOAuthEnabled reports whether Google login is configured.
func (c *Config) GoogleOAuthEnabled() bool {
	return c.Google.OAuth.ClientID != "" && c.Google.OAuth.ClientSecret != ""
}

// CalendarMirrorEnabled reports whether derived events are copied to Google Calendar.
func (c *Config) CalendarMirrorEnabled() bool {
	return len(c.Google.ServiceAccount) > 0 && c.Google.Calendar.CalendarID != ""
}
