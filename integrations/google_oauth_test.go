package integrations

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

func newFakeGoogle(t *testing.T, email string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("GET /oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"42","email":"` + email + `"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestOAuth(server *httptest.Server) *GoogleOAuth {
	return NewGoogleOAuth("client", "secret", "http://localhost/callback").WithEndpoints(
		oauth2.Endpoint{AuthURL: server.URL + "/auth", TokenURL: server.URL + "/token"},
		option.WithEndpoint(server.URL+"/"),
	)
}

func TestGoogleOAuth_AuthCodeURL(t *testing.T) {
	g := NewGoogleOAuth("client", "secret", "http://localhost/callback")

	u, err := url.Parse(g.AuthCodeURL("state-1"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Contains(t, q.Get("scope"), "email")
}

func TestGoogleOAuth_Exchange(t *testing.T) {
	g := newTestOAuth(newFakeGoogle(t, "ann@example.com"))

	identity, err := g.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "42", identity.AccountID)
	assert.Equal(t, "ann@example.com", identity.Email)
	assert.Equal(t, "at", identity.AccessToken)
	assert.Equal(t, "rt", identity.RefreshToken)
	assert.NotNil(t, identity.ExpiresAt)
}

func TestGoogleOAuth_ExchangeRejectsBadCode(t *testing.T) {
	g := newTestOAuth(newFakeGoogle(t, "ann@example.com"))

	_, err := g.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestGoogleOAuth_ExchangeRequiresEmail(t *testing.T) {
	g := newTestOAuth(newFakeGoogle(t, ""))

	_, err := g.Exchange(context.Background(), "good-code")
	assert.Error(t, err)
}
