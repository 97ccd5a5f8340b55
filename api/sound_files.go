package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chxlky/crm-backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// soundFileUpdate edits the display name only. The stored path is chosen at
// upload time and never comes from the client.
type soundFileUpdate struct {
	Name *string `json:"name"`
}

func (h *Handler) UploadSoundFileHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "Missing file"})
		return
	}

	name := filepath.Base(file.Filename)
	if name == "." || name == string(filepath.Separator) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "Invalid file name"})
		return
	}

	user := currentUser(c)
	dir := filepath.Join(h.FilesDir, strconv.FormatUint(uint64(user.ID), 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		zap.L().Error("Failed to create files directory", zap.String("dir", dir), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to store file"})
		return
	}

	location := filepath.Join(dir, uuid.NewString()+"-"+name)
	if err := c.SaveUploadedFile(file, location); err != nil {
		zap.L().Error("Failed to save uploaded file", zap.String("path", location), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to store file"})
		return
	}

	soundFile := models.SoundFile{
		Name:     name,
		FilePath: location,
		UserID:   user.ID,
	}
	if !persist(c, h.DB.WithContext(c.Request.Context()).Create(&soundFile), "create sound file") {
		return
	}
	c.JSON(http.StatusOK, soundFile)
}

func (h *Handler) ListSoundFilesHandler(c *gin.Context) {
	soundFiles, ok := listOwned[models.SoundFile](c, h.DB)
	if !ok {
		return
	}
	if len(soundFiles) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Sound files not found"})
		return
	}
	c.JSON(http.StatusOK, soundFiles)
}

func (h *Handler) GetSoundFileHandler(c *gin.Context) {
	soundFile, ok := findOwned[models.SoundFile](c, h.DB, "Sound file")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, soundFile)
}

// UpdateSoundFileHandler edits the metadata only; the stored file must still exist.
func (h *Handler) UpdateSoundFileHandler(c *gin.Context) {
	soundFile, ok := findOwned[models.SoundFile](c, h.DB, "Sound file")
	if !ok {
		return
	}
	if _, err := os.Stat(soundFile.FilePath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Physical file not found"})
		return
	}

	var payload soundFileUpdate
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	set(&soundFile.Name, payload.Name)
	if !persist(c, h.DB.WithContext(c.Request.Context()).Save(soundFile), "update sound file") {
		return
	}
	c.JSON(http.StatusOK, soundFile)
}

func (h *Handler) DeleteSoundFileHandler(c *gin.Context) {
	soundFile, ok := findOwned[models.SoundFile](c, h.DB, "Sound file")
	if !ok {
		return
	}
	if !persist(c, h.DB.WithContext(c.Request.Context()).Delete(soundFile), "delete sound file") {
		return
	}

	if err := os.Remove(soundFile.FilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("Failed to remove sound file from disk", zap.String("path", soundFile.FilePath), zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}
