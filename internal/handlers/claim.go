package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"collab-service/internal/services"
)

// ClaimHandler serves the queue and claim endpoints.
type ClaimHandler struct {
	claims *services.ClaimService
}

func NewClaimHandler(claims *services.ClaimService) *ClaimHandler {
	return &ClaimHandler{claims: claims}
}

// Claim handles POST /claims.
func (h *ClaimHandler) Claim(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	result, err := h.claims.Claim(c.Request.Context(), identity.TeamID, identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListClaimed handles GET /claims.
func (h *ClaimHandler) ListClaimed(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	items, err := h.claims.ListClaimed(c.Request.Context(), identity.TeamID, identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Release handles POST /claims/release. An empty body releases everything
// the caller holds.
func (h *ClaimHandler) Release(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	var req struct {
		IDs []string `json:"ids"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload")
			return
		}
	}

	n, err := h.claims.Release(c.Request.Context(), identity.TeamID, identity.UserID, req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": n})
}

// History handles GET /history?limit=.
func (h *ClaimHandler) History(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.claims.ListHistory(c.Request.Context(), identity.TeamID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// AddItems handles POST /queue. Lines come either as a list or as one
// newline separated text block.
func (h *ClaimHandler) AddItems(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	var req struct {
		Lines []string `json:"lines"`
		Text  string   `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	lines := req.Lines
	if req.Text != "" {
		lines = append(lines, strings.Split(req.Text, "\n")...)
	}

	n, err := h.claims.AddItems(c.Request.Context(), identity.TeamID, identity.UserID, lines)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"added": n})
}

// QueueStatus handles GET /queue.
func (h *ClaimHandler) QueueStatus(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	status, err := h.claims.QueueStatus(c.Request.Context(), identity.TeamID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
