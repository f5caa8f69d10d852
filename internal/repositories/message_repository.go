package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"collab-service/internal/models"
)

const messageColumns = `id, team_id, sender_id, sender_name, sender_avatar, recipient_id, group_id, content, created_at, edited_at, deleted, deleted_at, read_by, seq`

// MessageRepository defines interactions for chat messages. Every method is
// scoped to a team.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, teamID string, messageID string) (models.Message, error)
	ListDirectMessages(ctx context.Context, teamID string, userA string, userB string, limit int) ([]models.Message, error)
	ListGroupMessages(ctx context.Context, teamID string, groupID string, limit int) ([]models.Message, error)
	UpdateContent(ctx context.Context, teamID string, messageID string, content string, editedAt time.Time) (models.Message, error)
	SoftDelete(ctx context.Context, teamID string, messageID string, deletedAt time.Time) (models.Message, error)
	AddReader(ctx context.Context, teamID string, messageID string, userID string) (bool, error)
	MarkChatRead(ctx context.Context, teamID string, target models.Target, userID string) ([]string, error)
	CountUnread(ctx context.Context, teamID string, userID string, groupIDs []string) ([]models.UnreadCount, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message and returns it with its sequence number.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.ReadBy == nil {
		msg.ReadBy = pq.StringArray{}
	}
	var stored models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (id, team_id, sender_id, sender_name, sender_avatar, recipient_id, group_id, content, created_at, read_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING `+messageColumns,
		msg.ID, msg.TeamID, msg.SenderID, msg.SenderName, msg.SenderAvatar, msg.RecipientID, msg.GroupID, msg.Content, msg.CreatedAt, msg.ReadBy).
		StructScan(&stored)
	return stored, err
}

// GetMessage retrieves a single message within the team.
func (r *MessageRepo) GetMessage(ctx context.Context, teamID string, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1 AND team_id=$2`, messageID, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListDirectMessages returns the most recent messages exchanged between two
// users in either direction, oldest first.
func (r *MessageRepo) ListDirectMessages(ctx context.Context, teamID string, userA string, userB string, limit int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM (
            SELECT ` + messageColumns + ` FROM messages
            WHERE team_id=$1
            AND ((sender_id=$2 AND recipient_id=$3) OR (sender_id=$3 AND recipient_id=$2))
            ORDER BY created_at DESC, seq DESC
            LIMIT $4
        ) recent
        ORDER BY created_at ASC, seq ASC`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, teamID, userA, userB, limit)
	return msgs, err
}

// ListGroupMessages returns the most recent messages of a group, oldest first.
func (r *MessageRepo) ListGroupMessages(ctx context.Context, teamID string, groupID string, limit int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM (
            SELECT ` + messageColumns + ` FROM messages
            WHERE team_id=$1 AND group_id=$2
            ORDER BY created_at DESC, seq DESC
            LIMIT $3
        ) recent
        ORDER BY created_at ASC, seq ASC`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, teamID, groupID, limit)
	return msgs, err
}

// UpdateContent replaces the content and stamps edited_at.
func (r *MessageRepo) UpdateContent(ctx context.Context, teamID string, messageID string, content string, editedAt time.Time) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET content=$3, edited_at=$4 WHERE team_id=$1 AND id=$2 AND deleted=FALSE RETURNING `+messageColumns,
		teamID, messageID, content, editedAt).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM messages WHERE team_id=$1 AND id=$2)`, teamID, messageID); err != nil {
			return models.Message{}, err
		}
		if exists {
			return models.Message{}, ErrMessageDeleted
		}
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDelete flags the message deleted. The first deleted_at is kept.
func (r *MessageRepo) SoftDelete(ctx context.Context, teamID string, messageID string, deletedAt time.Time) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET deleted=TRUE, deleted_at=COALESCE(deleted_at, $3) WHERE team_id=$1 AND id=$2 RETURNING `+messageColumns,
		teamID, messageID, deletedAt).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// AddReader adds userID to read_by. It reports whether the set changed.
func (r *MessageRepo) AddReader(ctx context.Context, teamID string, messageID string, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET read_by = array_append(read_by, $3) WHERE team_id=$1 AND id=$2 AND NOT ($3 = ANY(read_by))`,
		teamID, messageID, userID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkChatRead marks every unread message of a chat addressed to userID as
// read and returns the ids that changed.
func (r *MessageRepo) MarkChatRead(ctx context.Context, teamID string, target models.Target, userID string) ([]string, error) {
	var query string
	if target.IsGroup() {
		query = `UPDATE messages SET read_by = array_append(read_by, $2)
            WHERE team_id=$1 AND group_id=$3 AND sender_id<>$2 AND deleted=FALSE AND NOT ($2 = ANY(read_by))
            RETURNING id`
	} else {
		query = `UPDATE messages SET read_by = array_append(read_by, $2)
            WHERE team_id=$1 AND recipient_id=$2 AND sender_id=$3 AND deleted=FALSE AND NOT ($2 = ANY(read_by))
            RETURNING id`
	}
	var ids []string
	err := r.db.SelectContext(ctx, &ids, query, teamID, userID, target.ID())
	return ids, err
}

// CountUnread returns per-chat unread counts for the user.
func (r *MessageRepo) CountUnread(ctx context.Context, teamID string, userID string, groupIDs []string) ([]models.UnreadCount, error) {
	var counts []models.UnreadCount
	err := r.db.SelectContext(ctx, &counts, `SELECT sender_id AS chat_id, 'direct' AS kind, COUNT(*) AS count FROM messages
        WHERE team_id=$1 AND recipient_id=$2 AND deleted=FALSE AND NOT ($2 = ANY(read_by))
        GROUP BY sender_id ORDER BY sender_id`, teamID, userID)
	if err != nil {
		return nil, err
	}
	if len(groupIDs) == 0 {
		return counts, nil
	}

	var groupCounts []models.UnreadCount
	err = r.db.SelectContext(ctx, &groupCounts, `SELECT group_id AS chat_id, 'group' AS kind, COUNT(*) AS count FROM messages
        WHERE team_id=$1 AND group_id = ANY($3) AND sender_id<>$2 AND deleted=FALSE AND NOT ($2 = ANY(read_by))
        GROUP BY group_id ORDER BY group_id`, teamID, userID, pq.Array(groupIDs))
	if err != nil {
		return nil, err
	}
	return append(counts, groupCounts...), nil
}
