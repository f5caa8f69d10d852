package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"collab-service/internal/models"
)

const settingsColumns = `team_id, line_count, cooldown_minutes, updated_at, updated_by`

// SettingsRepository stores per-team claim settings.
type SettingsRepository interface {
	GetOrCreateSettings(ctx context.Context, defaults models.ClaimSettings) (models.ClaimSettings, error)
	UpsertSettings(ctx context.Context, settings models.ClaimSettings) (models.ClaimSettings, error)
}

// SettingsRepo is a sqlx implementation of SettingsRepository.
type SettingsRepo struct {
	db *sqlx.DB
}

// NewSettingsRepo constructs a SettingsRepo.
func NewSettingsRepo(db *sqlx.DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// GetOrCreateSettings returns the team's settings, inserting defaults on first read.
func (r *SettingsRepo) GetOrCreateSettings(ctx context.Context, defaults models.ClaimSettings) (models.ClaimSettings, error) {
	var settings models.ClaimSettings
	err := r.db.QueryRowxContext(ctx, `INSERT INTO claim_settings (`+settingsColumns+`) VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (team_id) DO UPDATE SET team_id = EXCLUDED.team_id
        RETURNING `+settingsColumns,
		defaults.TeamID, defaults.LineCount, defaults.CooldownMinutes, defaults.UpdatedAt, defaults.UpdatedBy).StructScan(&settings)
	return settings, err
}

// UpsertSettings writes the settings, replacing any existing row.
func (r *SettingsRepo) UpsertSettings(ctx context.Context, s models.ClaimSettings) (models.ClaimSettings, error) {
	var settings models.ClaimSettings
	err := r.db.QueryRowxContext(ctx, `INSERT INTO claim_settings (`+settingsColumns+`) VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (team_id) DO UPDATE SET
            line_count = EXCLUDED.line_count,
            cooldown_minutes = EXCLUDED.cooldown_minutes,
            updated_at = EXCLUDED.updated_at,
            updated_by = EXCLUDED.updated_by
        RETURNING `+settingsColumns,
		s.TeamID, s.LineCount, s.CooldownMinutes, s.UpdatedAt, s.UpdatedBy).StructScan(&settings)
	return settings, err
}
