package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"collab-service/internal/ws"
)

// PresenceHandler reports who in the caller's team has an open socket.
type PresenceHandler struct {
	hub *ws.Hub
}

func NewPresenceHandler(hub *ws.Hub) *PresenceHandler {
	return &PresenceHandler{hub: hub}
}

// Online handles GET /presence.
func (h *PresenceHandler) Online(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": h.hub.OnlineUsers(identity.TeamID)})
}
