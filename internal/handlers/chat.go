package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"collab-service/internal/models"
	"collab-service/internal/services"
	"collab-service/internal/telemetry"
)

// ChatHandler serves the message endpoints.
type ChatHandler struct {
	chat  *services.ChatService
	audit *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chat *services.ChatService, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{chat: chat, audit: audit}
}

type targetQuery struct {
	RecipientID string `form:"recipient_id" json:"recipient_id"`
	GroupID     string `form:"group_id" json:"group_id"`
}

func (q targetQuery) target() (models.Target, error) {
	return models.ParseTarget(q.RecipientID, q.GroupID)
}

// SendMessage handles POST /chat/messages.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	var req struct {
		targetQuery
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, "WARN", "invalid message payload", map[string]string{"error": err.Error()})
		badRequest(c, "invalid request payload")
		return
	}
	target, err := req.target()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	msg, err := h.chat.Send(c.Request.Context(), identity.TeamID, identity.UserID, req.Content, target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// ListMessages handles GET /chat/messages?recipient_id=|group_id=.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	var q targetQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query")
		return
	}
	target, err := q.target()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	msgs, err := h.chat.List(c.Request.Context(), identity.TeamID, identity.UserID, target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// EditMessage handles PATCH /chat/messages/:id.
func (h *ChatHandler) EditMessage(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}

	msg, err := h.chat.Edit(c.Request.Context(), identity.TeamID, identity.UserID, c.Param("id"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// DeleteMessage handles DELETE /chat/messages/:id.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	msg, err := h.chat.Delete(c.Request.Context(), identity.TeamID, identity.UserID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "message deleted", map[string]string{"message_id": msg.ID})
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// MarkRead handles POST /chat/messages/:id/read.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	changed, err := h.chat.MarkRead(c.Request.Context(), identity.TeamID, identity.UserID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

// MarkChatRead handles POST /chat/read.
func (h *ChatHandler) MarkChatRead(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	var req targetQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	target, err := req.target()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	ids, err := h.chat.MarkChatRead(c.Request.Context(), identity.TeamID, identity.UserID, target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_ids": ids})
}

// UnreadCounts handles GET /chat/unread.
func (h *ChatHandler) UnreadCounts(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	counts, err := h.chat.UnreadCounts(c.Request.Context(), identity.TeamID, identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

// SetTyping handles POST /chat/typing.
func (h *ChatHandler) SetTyping(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	var req struct {
		targetQuery
		Active *bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	target, err := req.target()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	active := req.Active == nil || *req.Active

	if err := h.chat.SetTyping(c.Request.Context(), identity.TeamID, identity.UserID, target, active); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetTyping handles GET /chat/typing. The chat is named either by chat_id
// (a room id) or by recipient_id/group_id.
func (h *ChatHandler) GetTyping(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	var (
		target models.Target
		err    error
	)
	if room := c.Query("chat_id"); room != "" {
		var valid bool
		if target, valid = models.TargetForRoom(room, identity.UserID); !valid {
			badRequest(c, "invalid chat_id")
			return
		}
	} else {
		var q targetQuery
		_ = c.ShouldBindQuery(&q)
		if target, err = q.target(); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	typing, err := h.chat.Typing(c.Request.Context(), identity.TeamID, identity.UserID, target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"typing": typing})
}
