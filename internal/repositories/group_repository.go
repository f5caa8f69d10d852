package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"collab-service/internal/models"
)

const groupColumns = `id, team_id, name, members, created_at`

// GroupRepository abstracts group persistence.
type GroupRepository interface {
	CreateGroup(ctx context.Context, group models.ChatGroup) (models.ChatGroup, error)
	GetGroup(ctx context.Context, teamID string, groupID string) (models.ChatGroup, error)
	FindGroupByName(ctx context.Context, teamID string, name string) (models.ChatGroup, error)
	AddMember(ctx context.Context, teamID string, groupID string, userID string) (models.ChatGroup, error)
	ListGroupsForUser(ctx context.Context, teamID string, userID string) ([]models.ChatGroup, error)
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// CreateGroup inserts a group. A name already taken in the team yields ErrDuplicate.
func (r *GroupRepo) CreateGroup(ctx context.Context, group models.ChatGroup) (models.ChatGroup, error) {
	if group.Members == nil {
		group.Members = pq.StringArray{}
	}
	var stored models.ChatGroup
	err := r.db.QueryRowxContext(ctx, `INSERT INTO chat_groups (id, team_id, name, members, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING `+groupColumns,
		group.ID, group.TeamID, group.Name, group.Members, group.CreatedAt).StructScan(&stored)
	if isUniqueViolation(err) {
		return models.ChatGroup{}, ErrDuplicate
	}
	return stored, err
}

// GetGroup fetches a single group.
func (r *GroupRepo) GetGroup(ctx context.Context, teamID string, groupID string) (models.ChatGroup, error) {
	var group models.ChatGroup
	err := r.db.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM chat_groups WHERE id=$1 AND team_id=$2`, groupID, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatGroup{}, ErrGroupNotFound
	}
	return group, err
}

// FindGroupByName fetches a group by its team-unique name.
func (r *GroupRepo) FindGroupByName(ctx context.Context, teamID string, name string) (models.ChatGroup, error) {
	var group models.ChatGroup
	err := r.db.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM chat_groups WHERE team_id=$1 AND name=$2`, teamID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatGroup{}, ErrGroupNotFound
	}
	return group, err
}

// AddMember appends userID to the member set if absent.
func (r *GroupRepo) AddMember(ctx context.Context, teamID string, groupID string, userID string) (models.ChatGroup, error) {
	var group models.ChatGroup
	err := r.db.QueryRowxContext(ctx, `UPDATE chat_groups SET members = array_append(members, $3)
        WHERE team_id=$1 AND id=$2 AND NOT ($3 = ANY(members)) RETURNING `+groupColumns,
		teamID, groupID, userID).StructScan(&group)
	if errors.Is(err, sql.ErrNoRows) {
		// already a member, or no such group
		return r.GetGroup(ctx, teamID, groupID)
	}
	return group, err
}

// ListGroupsForUser returns the team groups that include the user.
func (r *GroupRepo) ListGroupsForUser(ctx context.Context, teamID string, userID string) ([]models.ChatGroup, error) {
	var groups []models.ChatGroup
	err := r.db.SelectContext(ctx, &groups, `SELECT `+groupColumns+` FROM chat_groups WHERE team_id=$1 AND $2 = ANY(members) ORDER BY created_at ASC`, teamID, userID)
	return groups, err
}
