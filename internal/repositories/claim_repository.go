package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"collab-service/internal/models"
)

const (
	queuedColumns  = `id, team_id, content, added_by, added_at, seq`
	claimedColumns = `id, team_id, source_item_id, content, claimed_by, claimed_by_name, claimed_at, cooldown_until`
	historyColumns = `id, team_id, source_item_id, content, claimed_by, claimed_by_user_id, claimed_at`
)

// ClaimRepository persists the work queue, claimed items and claim history.
type ClaimRepository interface {
	AddQueuedItems(ctx context.Context, items []models.QueuedItem) error
	CountQueued(ctx context.Context, teamID string) (int, error)
	ListQueued(ctx context.Context, teamID string, limit int) ([]models.QueuedItem, error)
	ClaimQueued(ctx context.Context, teamID string, limit int, claimant models.Claimant, claimedAt time.Time, cooldownUntil time.Time) ([]models.ClaimedItem, error)
	ListClaimed(ctx context.Context, teamID string, userID string) ([]models.ClaimedItem, error)
	LatestCooldown(ctx context.Context, teamID string, userID string) (time.Time, bool, error)
	ReleaseClaimed(ctx context.Context, teamID string, userID string, ids []string) (int, error)
	ListHistory(ctx context.Context, teamID string, limit int) ([]models.HistoryEntry, error)
	RemoveClaimedFromQueue(ctx context.Context) (int, error)
}

// ClaimRepo is a sqlx implementation of ClaimRepository.
type ClaimRepo struct {
	db *sqlx.DB
}

// NewClaimRepo constructs a ClaimRepo.
func NewClaimRepo(db *sqlx.DB) *ClaimRepo {
	return &ClaimRepo{db: db}
}

// AddQueuedItems appends items to the tail of the queue in slice order.
func (r *ClaimRepo) AddQueuedItems(ctx context.Context, items []models.QueuedItem) error {
	if len(items) == 0 {
		return nil
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO queued_items (id, team_id, content, added_by, added_at)
        VALUES (:id, :team_id, :content, :added_by, :added_at)`, items)
	return err
}

// CountQueued returns the number of items waiting in the team queue.
func (r *ClaimRepo) CountQueued(ctx context.Context, teamID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM queued_items WHERE team_id=$1`, teamID)
	return count, err
}

// ListQueued returns up to limit items from the head of the queue.
func (r *ClaimRepo) ListQueued(ctx context.Context, teamID string, limit int) ([]models.QueuedItem, error) {
	var items []models.QueuedItem
	err := r.db.SelectContext(ctx, &items, `SELECT `+queuedColumns+` FROM queued_items WHERE team_id=$1 ORDER BY seq ASC LIMIT $2`, teamID, limit)
	return items, err
}

// ClaimQueued takes up to limit items from the head of the queue and assigns
// them to the claimant. Rows are locked with SKIP LOCKED so concurrent
// claimers never see the same item. Claimed and history rows are written
// before the queue rows are removed, and the claimant's cooldown is recorded
// in claim_cooldowns, all in one transaction.
func (r *ClaimRepo) ClaimQueued(ctx context.Context, teamID string, limit int, claimant models.Claimant, claimedAt time.Time, cooldownUntil time.Time) ([]models.ClaimedItem, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	var queued []models.QueuedItem
	err = tx.SelectContext(ctx, &queued, `SELECT `+queuedColumns+` FROM queued_items
        WHERE team_id=$1 ORDER BY seq ASC LIMIT $2 FOR UPDATE SKIP LOCKED`, teamID, limit)
	if err != nil {
		return nil, err
	}
	if len(queued) == 0 {
		return nil, nil
	}

	claimed := make([]models.ClaimedItem, 0, len(queued))
	ids := make([]string, 0, len(queued))
	for _, item := range queued {
		c := models.ClaimedItem{
			ID:            uuid.NewString(),
			TeamID:        teamID,
			SourceItemID:  item.ID,
			Content:       item.Content,
			ClaimedBy:     claimant.UserID,
			ClaimedByName: claimant.Name,
			ClaimedAt:     claimedAt,
			CooldownUntil: cooldownUntil,
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO claimed_items (`+claimedColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.TeamID, c.SourceItemID, c.Content, c.ClaimedBy, c.ClaimedByName, c.ClaimedAt, c.CooldownUntil); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO claim_history (`+historyColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.NewString(), teamID, item.ID, item.Content, claimant.Name, claimant.UserID, claimedAt); err != nil {
			return nil, err
		}
		claimed = append(claimed, c)
		ids = append(ids, item.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM queued_items WHERE team_id=$1 AND id = ANY($2)`, teamID, pq.Array(ids)); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO claim_cooldowns (team_id, user_id, cooldown_until) VALUES ($1, $2, $3)
        ON CONFLICT (team_id, user_id) DO UPDATE SET cooldown_until = GREATEST(claim_cooldowns.cooldown_until, EXCLUDED.cooldown_until)`,
		teamID, claimant.UserID, cooldownUntil); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return claimed, nil
}

// ListClaimed returns the items currently held by userID.
func (r *ClaimRepo) ListClaimed(ctx context.Context, teamID string, userID string) ([]models.ClaimedItem, error) {
	var items []models.ClaimedItem
	err := r.db.SelectContext(ctx, &items, `SELECT `+claimedColumns+` FROM claimed_items WHERE team_id=$1 AND claimed_by=$2 ORDER BY claimed_at ASC, id ASC`, teamID, userID)
	return items, err
}

// LatestCooldown returns the cooldown recorded by the user's last claim.
// Releasing claimed items does not clear it.
func (r *ClaimRepo) LatestCooldown(ctx context.Context, teamID string, userID string) (time.Time, bool, error) {
	var until time.Time
	err := r.db.GetContext(ctx, &until, `SELECT cooldown_until FROM claim_cooldowns WHERE team_id=$1 AND user_id=$2`, teamID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return until, true, nil
}

// ReleaseClaimed drops claimed items owned by userID. With no ids, every item
// the user holds is released.
func (r *ClaimRepo) ReleaseClaimed(ctx context.Context, teamID string, userID string, ids []string) (int, error) {
	var (
		res sql.Result
		err error
	)
	if len(ids) == 0 {
		res, err = r.db.ExecContext(ctx, `DELETE FROM claimed_items WHERE team_id=$1 AND claimed_by=$2`, teamID, userID)
	} else {
		res, err = r.db.ExecContext(ctx, `DELETE FROM claimed_items WHERE team_id=$1 AND claimed_by=$2 AND id = ANY($3)`, teamID, userID, pq.Array(ids))
	}
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}

// ListHistory returns the newest history entries of the team.
func (r *ClaimRepo) ListHistory(ctx context.Context, teamID string, limit int) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	err := r.db.SelectContext(ctx, &entries, `SELECT `+historyColumns+` FROM claim_history WHERE team_id=$1 ORDER BY claimed_at DESC, id DESC LIMIT $2`, teamID, limit)
	return entries, err
}

// RemoveClaimedFromQueue deletes queue rows that already have a history
// record, across all teams.
func (r *ClaimRepo) RemoveClaimedFromQueue(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM queued_items q
        WHERE EXISTS (SELECT 1 FROM claim_history h WHERE h.team_id = q.team_id AND h.source_item_id = q.id)`)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}
