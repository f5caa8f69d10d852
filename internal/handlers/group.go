package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"collab-service/internal/services"
	"collab-service/internal/telemetry"
)

// GroupHandler serves the team chat endpoints.
type GroupHandler struct {
	chat  *services.ChatService
	audit *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(chat *services.ChatService, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{chat: chat, audit: audit}
}

// TeamChat handles GET /chat/group.
func (h *GroupHandler) TeamChat(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	group, err := h.chat.GetOrCreateTeamChat(c.Request.Context(), identity.TeamID, identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": group})
}

// AddMember handles POST /chat/groups/:id/members.
func (h *GroupHandler) AddMember(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, "WARN", "invalid member payload", map[string]string{"error": err.Error()})
		badRequest(c, "user_id is required")
		return
	}

	group, err := h.chat.AddGroupMember(c.Request.Context(), identity.TeamID, identity.UserID, c.Param("id"), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "group member added", map[string]string{"group_id": group.ID, "member_id": req.UserID})
	c.JSON(http.StatusOK, gin.H{"group": group})
}
