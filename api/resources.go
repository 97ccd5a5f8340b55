package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// findOwned loads the row named by the :id path parameter if it belongs to
// the current user. It writes the error response itself and reports whether
// the caller should carry on.
func findOwned[T any](c *gin.Context, db *gorm.DB, resource string) (*T, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "Invalid id"})
		return nil, false
	}

	var row T
	err = db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, currentUser(c).ID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": resource + " not found"})
		return nil, false
	}
	if err != nil {
		zap.L().Error("Failed to load resource", zap.String("resource", resource), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return nil, false
	}
	return &row, true
}

func listOwned[T any](c *gin.Context, db *gorm.DB) ([]T, bool) {
	rows := []T{}
	err := db.WithContext(c.Request.Context()).
		Where("user_id = ?", currentUser(c).ID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		zap.L().Error("Failed to list resources", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return nil, false
	}
	return rows, true
}

// persist runs a write and turns a failure into a 500 response.
func persist(c *gin.Context, result *gorm.DB, action string) bool {
	if result.Error != nil {
		zap.L().Error("Failed to "+action, zap.Error(result.Error))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to " + action})
		return false
	}
	return true
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
