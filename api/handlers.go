package api

import (
	"net/http"
	"time"

	"github.com/chxlky/crm-backend/internal/kanban"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

type Handler struct {
	DB         *gorm.DB
	Auth       *Authenticator
	OAuth      OAuthExchanger // nil when Google login is not configured
	Hub        *kanban.Registry
	Dispatcher *kanban.Dispatcher
	Events     *kanban.EventSync
	FilesDir   string

	// RequireSocketAuth rejects board connections without a valid token.
	RequireSocketAuth bool
	// IdleTimeout closes board connections that stay silent this long. Zero disables it.
	IdleTimeout time.Duration
	Upgrader    websocket.Upgrader
}

// RegisterRoutes mounts every endpoint on router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/ws/kanban", h.KanbanSocketHandler)

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/health", h.HealthCheckHandler)
	}

	authed := apiGroup.Group("", h.Auth.RequireUser())
	{
		authed.POST("/companies/", h.CreateCompanyHandler)
		authed.GET("/companies/", h.ListCompaniesHandler)
		authed.GET("/companies/:id", h.GetCompanyHandler)
		authed.PUT("/companies/:id", h.UpdateCompanyHandler)
		authed.DELETE("/companies/:id", h.DeleteCompanyHandler)

		authed.POST("/phone-lists/", h.CreatePhoneListHandler)
		authed.GET("/phone-lists/", h.ListPhoneListsHandler)
		authed.GET("/phone-lists/:id", h.GetPhoneListHandler)
		authed.PUT("/phone-lists/:id", h.UpdatePhoneListHandler)
		authed.DELETE("/phone-lists/:id", h.DeletePhoneListHandler)

		authed.POST("/sound-files/", h.UploadSoundFileHandler)
		authed.GET("/sound-files/", h.ListSoundFilesHandler)
		authed.GET("/sound-files/:id", h.GetSoundFileHandler)
		authed.PUT("/sound-files/:id", h.UpdateSoundFileHandler)
		authed.DELETE("/sound-files/:id", h.DeleteSoundFileHandler)

		authed.GET("/calendar-events/", h.ListCalendarEventsHandler)
		authed.GET("/calendar-events/:id", h.GetCalendarEventHandler)
		authed.DELETE("/calendar-events/:id", h.DeleteCalendarEventHandler)
	}

	router.GET("/authenticated-route", h.Auth.RequireUser(), h.CurrentUserHandler)

	router.POST("/auth/register", h.RegisterHandler)
	router.POST("/auth/jwt/login", h.LoginHandler)

	users := router.Group("/users", h.Auth.RequireUser())
	{
		users.GET("/me", h.GetMeHandler)
		users.PATCH("/me", h.UpdateMeHandler)
	}

	if h.OAuth != nil {
		authGroup := router.Group("/auth/google")
		{
			authGroup.GET("/authorize", h.GoogleAuthorizeHandler)
			authGroup.GET("/callback", h.GoogleCallbackHandler)
		}
	}
}

func (h *Handler) HealthCheckHandler(c *gin.Context) {
	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.Hub.Count()})
}
