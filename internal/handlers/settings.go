package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"collab-service/internal/services"
)

// SettingsHandler serves GET/PUT /claim-settings.
type SettingsHandler struct {
	settings *services.SettingsService
}

func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	settings, err := h.settings.Get(c.Request.Context(), identity.TeamID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *SettingsHandler) Update(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}

	var req struct {
		LineCount       *int     `json:"line_count"`
		CooldownMinutes *float64 `json:"cooldown_minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}

	settings, err := h.settings.Patch(c.Request.Context(), identity.TeamID, identity.UserID, identity.Role, services.SettingsPatch{
		LineCount:       req.LineCount,
		CooldownMinutes: req.CooldownMinutes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
