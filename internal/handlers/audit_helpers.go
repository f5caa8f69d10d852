package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"collab-service/internal/middleware"
	"collab-service/internal/observability"
	"collab-service/internal/telemetry"
)

// requestIDFromContext prefers the id assigned by the RequestID middleware;
// routes mounted without it still get a usable id.
func requestIDFromContext(c *gin.Context) string {
	if id := middleware.RequestIDFrom(c); id != "" {
		return id
	}
	if id := c.GetHeader(observability.RequestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

func userIDFromContext(c *gin.Context) *string {
	identity, ok := middleware.IdentityFrom(c)
	if !ok || identity.UserID == "" {
		return nil
	}
	return &identity.UserID
}

// emitAudit records a handler-level audit line. A nil emitter is a no-op.
func emitAudit(c *gin.Context, audit *telemetry.AuditEmitter, level, text string, fields map[string]string) {
	identity, _ := middleware.IdentityFrom(c)
	audit.Record(c.Request.Context(), telemetry.Entry{
		Level:     level,
		Text:      text,
		RequestID: requestIDFromContext(c),
		TeamID:    identity.TeamID,
		UserID:    userIDFromContext(c),
		Fields:    fields,
	})
}
