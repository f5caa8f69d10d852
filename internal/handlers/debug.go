package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"collab-service/internal/telemetry"
)

// ReconcileRunner triggers one queue reconciliation pass.
type ReconcileRunner interface {
	RunNow(ctx context.Context) (int, error)
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, reconciler ReconcileRunner, enabled bool) {
	if !enabled {
		return
	}

	debug := router.Group("/debug")
	debug.GET("/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{"code": "unavailable", "message": "audit emitter not configured"}})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	debug.POST("/reconcile", func(c *gin.Context) {
		if reconciler == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{"code": "unavailable", "message": "reconciler not configured"}})
			return
		}
		n, err := reconciler.RunNow(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": n})
	})
}
