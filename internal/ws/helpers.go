package ws

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"collab-service/internal/observability"
)

// tokenFromRequest reads the bearer token from the Authorization header or,
// for browsers that cannot set headers on upgrade, the token query parameter.
func tokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return c.Query("token")
}

// publishConnEvent emits a ws lifecycle event on the broker and bumps metrics.
func publishConnEvent(ctx context.Context, info ConnInfo, event, reason string) {
	observability.IncWSEvent("socket", event)
	ctx = observability.WithRequestID(ctx, info.RequestID)
	_ = observability.PublishEvent(ctx, "ws_events.sockets", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		TeamID:    info.TeamID,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
				"trace_id":    info.TraceID,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"team_id":   info.TeamID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	})
}
