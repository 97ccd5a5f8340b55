package api

import (
	"net/http"

	"github.com/chxlky/crm-backend/internal/models"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ListCalendarEventsHandler(c *gin.Context) {
	events, ok := listOwned[models.CalendarEvent](c, h.DB)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) GetCalendarEventHandler(c *gin.Context) {
	event, ok := findOwned[models.CalendarEvent](c, h.DB, "Calendar event")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *Handler) DeleteCalendarEventHandler(c *gin.Context) {
	event, ok := findOwned[models.CalendarEvent](c, h.DB, "Calendar event")
	if !ok {
		return
	}
	if !persist(c, h.DB.WithContext(c.Request.Context()).Delete(event), "delete calendar event") {
		return
	}
	if h.Events != nil {
		h.Events.Forget(c.Request.Context(), []models.CalendarEvent{*event})
	}
	c.Status(http.StatusNoContent)
}
