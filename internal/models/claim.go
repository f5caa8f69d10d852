package models

import "time"

const (
	DefaultLineCount       = 5
	DefaultCooldownMinutes = 30.0

	MinLineCount       = 1
	MaxLineCount       = 100
	MinCooldownMinutes = 0.5
	MaxCooldownMinutes = 1440.0
)

// QueuedItem is a unit of work waiting to be claimed.
type QueuedItem struct {
	ID      string    `db:"id" json:"id"`
	TeamID  string    `db:"team_id" json:"team_id"`
	Content string    `db:"content" json:"content"`
	AddedBy string    `db:"added_by" json:"added_by"`
	AddedAt time.Time `db:"added_at" json:"added_at"`
	Seq     int64     `db:"seq" json:"-"`
}

// ClaimedItem is a queued item assigned to a user.
type ClaimedItem struct {
	ID            string    `db:"id" json:"id"`
	TeamID        string    `db:"team_id" json:"team_id"`
	SourceItemID  string    `db:"source_item_id" json:"source_item_id"`
	Content       string    `db:"content" json:"content"`
	ClaimedBy     string    `db:"claimed_by" json:"claimed_by"`
	ClaimedByName string    `db:"claimed_by_name" json:"claimed_by_name"`
	ClaimedAt     time.Time `db:"claimed_at" json:"claimed_at"`
	CooldownUntil time.Time `db:"cooldown_until" json:"cooldown_until"`
}

// HistoryEntry is the append-only audit record of a claim.
type HistoryEntry struct {
	ID              string    `db:"id" json:"id"`
	TeamID          string    `db:"team_id" json:"team_id"`
	SourceItemID    string    `db:"source_item_id" json:"source_item_id"`
	Content         string    `db:"content" json:"content"`
	ClaimedBy       string    `db:"claimed_by" json:"claimed_by"`
	ClaimedByUserID string    `db:"claimed_by_user_id" json:"claimed_by_user_id"`
	ClaimedAt       time.Time `db:"claimed_at" json:"claimed_at"`
}

// Claimant identifies who is claiming.
type Claimant struct {
	UserID string
	Name   string
}

// ClaimSettings is the per-team claim configuration.
type ClaimSettings struct {
	TeamID          string    `db:"team_id" json:"team_id"`
	LineCount       int       `db:"line_count" json:"line_count"`
	CooldownMinutes float64   `db:"cooldown_minutes" json:"cooldown_minutes"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
	UpdatedBy       string    `db:"updated_by" json:"updated_by,omitempty"`
}

// DefaultClaimSettings returns the settings a team starts with.
func DefaultClaimSettings(teamID string) ClaimSettings {
	return ClaimSettings{
		TeamID:          teamID,
		LineCount:       DefaultLineCount,
		CooldownMinutes: DefaultCooldownMinutes,
	}
}

// Cooldown converts CooldownMinutes to a duration.
func (s ClaimSettings) Cooldown() time.Duration {
	return time.Duration(s.CooldownMinutes * float64(time.Minute))
}

// QueueChange describes a mutation of a team's queue for subscribers.
type QueueChange struct {
	TeamID    string `json:"team_id"`
	Reason    string `json:"reason"`
	Claimed   int    `json:"claimed,omitempty"`
	Added     int    `json:"added,omitempty"`
	Released  int    `json:"released,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	Remaining int    `json:"remaining"`
}

// QueueStatus summarises a team queue.
type QueueStatus struct {
	TeamID          string  `json:"team_id"`
	Queued          int     `json:"queued"`
	LineCount       int     `json:"line_count"`
	CooldownMinutes float64 `json:"cooldown_minutes"`
}
