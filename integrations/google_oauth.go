package integrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// OAuthIdentity is what a successful Google login tells us about the user.
type OAuthIdentity struct {
	AccountID    string
	Email        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// GoogleOAuth exchanges Google authorization codes for user identities.
type GoogleOAuth struct {
	config       *oauth2.Config
	userinfoOpts []option.ClientOption
}

func NewGoogleOAuth(clientID, clientSecret, redirectURL string) *GoogleOAuth {
	return &GoogleOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
	}
}

// WithEndpoints points the token exchange and the userinfo lookup somewhere
// other than Google.
func (g *GoogleOAuth) WithEndpoints(endpoint oauth2.Endpoint, userinfoOpts ...option.ClientOption) *GoogleOAuth {
	g.config.Endpoint = endpoint
	g.userinfoOpts = userinfoOpts
	return g
}

func (g *GoogleOAuth) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (*OAuthIdentity, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange authorization code: %w", err)
	}

	opts := append([]option.ClientOption{option.WithTokenSource(g.config.TokenSource(ctx, token))}, g.userinfoOpts...)
	svc, err := googleoauth.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to fetch Google userinfo: %w", err)
	}
	if info.Email == "" {
		return nil, errors.New("google account has no email address")
	}

	identity := &OAuthIdentity{
		AccountID:    info.Id,
		Email:        info.Email,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		identity.ExpiresAt = &expiry
	}
	return identity, nil
}
