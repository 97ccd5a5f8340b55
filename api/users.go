package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/chxlky/crm-backend/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	detailUserExists     = "REGISTER_USER_ALREADY_EXISTS"
	detailBadCredentials = "LOGIN_BAD_CREDENTIALS"
	detailEmailTaken     = "UPDATE_USER_EMAIL_ALREADY_EXISTS"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type userUpdate struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=1"`
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h *Handler) emailTaken(ctx context.Context, email string, except uint) (bool, error) {
	var count int64
	err := h.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ? AND id <> ?", email, except).
		Count(&count).Error
	return count > 0, err
}

func (h *Handler) RegisterHandler(c *gin.Context) {
	var payload registerRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	ctx := c.Request.Context()
	taken, err := h.emailTaken(ctx, payload.Email, 0)
	if err != nil {
		zap.L().Error("Failed to look up user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}
	if taken {
		c.JSON(http.StatusBadRequest, gin.H{"detail": detailUserExists})
		return
	}

	hashed, err := hashPassword(payload.Password)
	if err != nil {
		zap.L().Error("Failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	user := models.User{Email: payload.Email, HashedPassword: hashed, IsActive: true}
	if !persist(c, h.DB.WithContext(ctx).Create(&user), "register user") {
		return
	}

	zap.L().Info("User registered", zap.Uint("userID", user.ID))
	c.JSON(http.StatusCreated, user)
}

// LoginHandler takes the OAuth2 password form (username is the email) and
// returns a bearer token.
func (h *Handler) LoginHandler(c *gin.Context) {
	email := c.PostForm("username")
	password := c.PostForm("password")
	if email == "" || password == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "username and password are required"})
		return
	}

	var user models.User
	err := h.DB.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		zap.L().Error("Failed to look up user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}
	if err != nil || user.HashedPassword == "" || !user.IsActive ||
		bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": detailBadCredentials})
		return
	}

	token, err := h.Auth.IssueToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

func (h *Handler) GetMeHandler(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (h *Handler) UpdateMeHandler(c *gin.Context) {
	var payload userUpdate
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	ctx := c.Request.Context()
	user := currentUser(c)
	if payload.Email != nil && *payload.Email != user.Email {
		taken, err := h.emailTaken(ctx, *payload.Email, user.ID)
		if err != nil {
			zap.L().Error("Failed to look up user", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
			return
		}
		if taken {
			c.JSON(http.StatusBadRequest, gin.H{"detail": detailEmailTaken})
			return
		}
		user.Email = *payload.Email
		user.IsVerified = false
	}
	if payload.Password != nil {
		hashed, err := hashPassword(*payload.Password)
		if err != nil {
			zap.L().Error("Failed to hash password", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
			return
		}
		user.HashedPassword = hashed
	}

	if !persist(c, h.DB.WithContext(ctx).Save(user), "update user") {
		return
	}
	c.JSON(http.StatusOK, user)
}
