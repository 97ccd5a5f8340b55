package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxBoardMessageSize = 1 << 20

// KanbanSocketHandler upgrades to a websocket, admits the session and feeds
// its messages to the dispatcher one at a time until the peer goes away.
func (h *Handler) KanbanSocketHandler(c *gin.Context) {
	var userID *uint
	if token := tokenFromRequest(c.Request); token != "" {
		user, err := h.Auth.Authenticate(c.Request.Context(), token)
		if err != nil && h.RequireSocketAuth {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Unauthorized"})
			return
		}
		if err == nil {
			userID = &user.ID
		}
	} else if h.RequireSocketAuth {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Unauthorized"})
		return
	}

	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		zap.L().Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxBoardMessageSize)

	session := h.Hub.Admit(conn, userID)
	defer h.Hub.Evict(session)

	ctx := c.Request.Context()
	for {
		if h.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(h.IdleTimeout))
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				zap.L().Warn("Board session read error", zap.String("sessionID", session.ID()), zap.Error(err))
			}
			return
		}

		h.Dispatcher.Handle(ctx, session, msg)
	}
}
