package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chxlky/crm-backend/integrations"
	"github.com/chxlky/crm-backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	userContextKey = "currentUser"
	stateLifetime  = 10 * time.Minute
	stateAudience  = "crm:oauth-state"
)

var (
	ErrAuthDisabled = errors.New("authentication is not configured")
	ErrInvalidToken = errors.New("invalid token")
	ErrInactiveUser = errors.New("user is inactive")
)

// Authenticator issues and verifies bearer tokens and resolves them to users.
type Authenticator struct {
	DB       *gorm.DB
	Secret   []byte
	Lifetime time.Duration
}

func (a *Authenticator) IssueToken(userID uint) (string, error) {
	if len(a.Secret) == 0 {
		return "", ErrAuthDisabled
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(a.Lifetime).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.Secret)
}

func (a *Authenticator) parse(tokenString string) (jwt.MapClaims, error) {
	if len(a.Secret) == 0 {
		return nil, ErrAuthDisabled
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// Authenticate resolves a bearer token to an active user.
func (a *Authenticator) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := a.parse(tokenString)
	if err != nil {
		return nil, err
	}

	rawID, ok := claims["user_id"].(float64)
	if !ok || rawID <= 0 {
		return nil, fmt.Errorf("%w: missing user_id claim", ErrInvalidToken)
	}

	var user models.User
	if err := a.DB.WithContext(ctx).First(&user, uint(rawID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown user", ErrInvalidToken)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return &user, nil
}

// IssueState returns a signed, short-lived OAuth state parameter.
func (a *Authenticator) IssueState() (string, error) {
	if len(a.Secret) == 0 {
		return "", ErrAuthDisabled
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"aud": stateAudience,
		"exp": now.Add(stateLifetime).Unix(),
		"iat": now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
}

func (a *Authenticator) VerifyState(state string) error {
	if len(a.Secret) == 0 {
		return ErrAuthDisabled
	}
	_, err := jwt.Parse(state, func(*jwt.Token) (any, error) {
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithAudience(stateAudience))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}

func tokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

// RequireUser rejects requests without a valid bearer token and stores the
// user on the context for currentUser.
func (a *Authenticator) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Unauthorized"})
			return
		}

		user, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			zap.L().Debug("Rejected bearer token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Unauthorized"})
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	return c.MustGet(userContextKey).(*models.User)
}

// OAuthExchanger is the Google login collaborator.
type OAuthExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*integrations.OAuthIdentity, error)
}

func (h *Handler) GoogleAuthorizeHandler(c *gin.Context) {
	state, err := h.Auth.IssueState()
	if err != nil {
		zap.L().Error("Failed to issue OAuth state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Authentication is not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authorization_url": h.OAuth.AuthCodeURL(state)})
}

func (h *Handler) GoogleCallbackHandler(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Missing authorization code"})
		return
	}
	if err := h.Auth.VerifyState(c.Query("state")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid OAuth state"})
		return
	}

	identity, err := h.OAuth.Exchange(c.Request.Context(), code)
	if err != nil {
		zap.L().Warn("Google OAuth exchange failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"detail": "OAuth exchange failed"})
		return
	}

	user, err := h.upsertOAuthUser(c.Request.Context(), "google", identity)
	if err != nil {
		zap.L().Error("Failed to store OAuth user", zap.String("email", identity.Email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to store user"})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "User is inactive"})
		return
	}

	token, err := h.Auth.IssueToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to generate token"})
		return
	}

	zap.L().Info("User logged in with Google", zap.Uint("userID", user.ID))
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// upsertOAuthUser finds the user by email, creating it on first login, and
// records the OAuth account tokens.
func (h *Handler) upsertOAuthUser(ctx context.Context, provider string, identity *integrations.OAuthIdentity) (*models.User, error) {
	var user models.User
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(models.User{Email: identity.Email}).
			Attrs(models.User{IsActive: true, IsVerified: true}).
			FirstOrCreate(&user).Error; err != nil {
			return err
		}

		var account models.OAuthAccount
		err := tx.Where("user_id = ? AND oauth_name = ? AND account_id = ?", user.ID, provider, identity.AccountID).
			First(&account).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		account.UserID = user.ID
		account.OAuthName = provider
		account.AccountID = identity.AccountID
		account.AccountEmail = identity.Email
		account.AccessToken = identity.AccessToken
		account.RefreshToken = identity.RefreshToken
		account.ExpiresAt = identity.ExpiresAt
		return tx.Save(&account).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (h *Handler) CurrentUserHandler(c *gin.Context) {
	user := currentUser(c)
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Hello %s!", user.Email), "user": user})
}
