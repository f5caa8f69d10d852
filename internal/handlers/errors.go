package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"collab-service/internal/apperr"
	"collab-service/internal/auth"
	"collab-service/internal/middleware"
)

// respondError renders err as {"error": {"code", "message"}} with the status
// of its kind. Transport causes stay in the logs.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindTransport {
		_ = c.Error(err)
	}
	if retry := apperr.RetryAfter(err); retry > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
	}
	c.JSON(apperr.HTTPStatus(kind), gin.H{"error": gin.H{"code": kind, "message": apperr.Message(err)}})
}

func badRequest(c *gin.Context, msg string) {
	respondError(c, apperr.Validation(msg))
}

// caller returns the authenticated identity or writes a 401.
func caller(c *gin.Context) (auth.Identity, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": apperr.KindAuthentication, "message": "not authenticated"}})
		return auth.Identity{}, false
	}
	return identity, true
}
