package handler

import (
	"net/http"

	"supportbot/backend/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the Mini App is served from Telegram's domains
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades to a one-way feed of the token holder's events.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	tokenString := bearerToken(c)
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token missing"})
		return
	}
	userID, err := h.Auth.Parse(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.log.Debug("websocket upgrade failed", "user", userID, "err", err)
		return
	}

	client := notify.NewWebSocketClient(userID, conn, h.Hub)
	h.Hub.Register(client)
	client.Run()
}
