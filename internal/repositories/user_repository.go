package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"collab-service/internal/models"
)

// UserRepository reads team member accounts.
type UserRepository interface {
	GetUser(ctx context.Context, teamID string, userID string) (models.User, error)
	UpsertUser(ctx context.Context, user models.User) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a user that belongs to the team.
func (r *UserRepo) GetUser(ctx context.Context, teamID string, userID string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, team_id, name, COALESCE(avatar_url, '') AS avatar_url, role FROM users WHERE id=$1 AND team_id=$2`, userID, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// UpsertUser inserts the user or refreshes its profile fields.
func (r *UserRepo) UpsertUser(ctx context.Context, user models.User) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, team_id, name, avatar_url, role) VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET team_id = EXCLUDED.team_id, name = EXCLUDED.name, avatar_url = EXCLUDED.avatar_url, role = EXCLUDED.role`,
		user.ID, user.TeamID, user.Name, user.AvatarURL, user.Role)
	return err
}
