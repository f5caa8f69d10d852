package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"collab-service/internal/apperr"
	"collab-service/internal/models"
	"collab-service/internal/repositories"
)

// SettingsService reads and writes per-team claim settings.
type SettingsService struct {
	repo    repositories.SettingsRepository
	auditor Auditor
	logger  *zap.Logger
	now     func() time.Time
}

func NewSettingsService(repo repositories.SettingsRepository, auditor Auditor, logger *zap.Logger) *SettingsService {
	if auditor == nil {
		auditor = nopAuditor{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, auditor: auditor, logger: logger, now: time.Now}
}

// Get returns the team's settings, storing the defaults on first access.
func (s *SettingsService) Get(ctx context.Context, teamID string) (models.ClaimSettings, error) {
	defaults := models.DefaultClaimSettings(teamID)
	defaults.UpdatedAt = s.now().UTC()
	settings, err := s.repo.GetOrCreateSettings(ctx, defaults)
	if err != nil {
		return models.ClaimSettings{}, repoError(err, "load claim settings")
	}
	return settings, nil
}

// Update replaces the team's settings. Only admins may call it.
func (s *SettingsService) Update(ctx context.Context, teamID, userID string, role models.Role, lineCount int, cooldownMinutes float64) (models.ClaimSettings, error) {
	if role != models.RoleAdmin {
		return models.ClaimSettings{}, apperr.Permission("only admins can change claim settings")
	}
	if lineCount < models.MinLineCount || lineCount > models.MaxLineCount {
		return models.ClaimSettings{}, apperr.Validation(fmt.Sprintf("line_count must be between %d and %d", models.MinLineCount, models.MaxLineCount))
	}
	if cooldownMinutes < models.MinCooldownMinutes || cooldownMinutes > models.MaxCooldownMinutes {
		return models.ClaimSettings{}, apperr.Validation(fmt.Sprintf("cooldown_minutes must be between %g and %g", models.MinCooldownMinutes, models.MaxCooldownMinutes))
	}

	settings, err := s.repo.UpsertSettings(ctx, models.ClaimSettings{
		TeamID:          teamID,
		LineCount:       lineCount,
		CooldownMinutes: cooldownMinutes,
		UpdatedAt:       s.now().UTC(),
		UpdatedBy:       userID,
	})
	if err != nil {
		return models.ClaimSettings{}, repoError(err, "store claim settings")
	}

	s.logger.Info("claim settings updated",
		zap.String("team_id", teamID),
		zap.Int("line_count", lineCount),
		zap.Float64("cooldown_minutes", cooldownMinutes))
	s.auditor.Record(ctx, auditEntry(ctx, "info", "claim settings updated", teamID, userID, map[string]string{
		"line_count":       strconv.Itoa(lineCount),
		"cooldown_minutes": strconv.FormatFloat(cooldownMinutes, 'f', -1, 64),
	}))
	return settings, nil
}

// SettingsPatch carries a partial settings update. Nil fields keep their
// stored value.
type SettingsPatch struct {
	LineCount       *int
	CooldownMinutes *float64
}

// Patch merges p over the stored settings and saves the result. The role is
// checked before anything is read or written.
func (s *SettingsService) Patch(ctx context.Context, teamID, userID string, role models.Role, p SettingsPatch) (models.ClaimSettings, error) {
	if role != models.RoleAdmin {
		return models.ClaimSettings{}, apperr.Permission("only admins can change claim settings")
	}
	current, err := s.Get(ctx, teamID)
	if err != nil {
		return models.ClaimSettings{}, err
	}
	lineCount, cooldown := current.LineCount, current.CooldownMinutes
	if p.LineCount != nil {
		lineCount = *p.LineCount
	}
	if p.CooldownMinutes != nil {
		cooldown = *p.CooldownMinutes
	}
	return s.Update(ctx, teamID, userID, role, lineCount, cooldown)
}
