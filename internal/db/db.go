package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Connect opens the Postgres pool and runs migrations.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations applied", zap.Int("statements", len(migrations)))
	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY,
        team_id TEXT NOT NULL,
        name TEXT NOT NULL,
        avatar_url TEXT NOT NULL DEFAULT '',
        role TEXT NOT NULL DEFAULT 'member'
    );`,
	`CREATE INDEX IF NOT EXISTS users_team_idx ON users (team_id);`,
	`CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY,
        seq BIGSERIAL,
        team_id TEXT NOT NULL,
        sender_id TEXT NOT NULL,
        sender_name TEXT NOT NULL,
        sender_avatar TEXT NOT NULL DEFAULT '',
        recipient_id TEXT,
        group_id TEXT,
        content TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        edited_at TIMESTAMPTZ,
        deleted BOOLEAN NOT NULL DEFAULT FALSE,
        deleted_at TIMESTAMPTZ,
        read_by TEXT[] NOT NULL DEFAULT '{}',
        CHECK ((recipient_id IS NULL) <> (group_id IS NULL))
    );`,
	`CREATE INDEX IF NOT EXISTS messages_direct_idx ON messages (team_id, sender_id, recipient_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS messages_group_idx ON messages (team_id, group_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS chat_groups (
        id TEXT PRIMARY KEY,
        team_id TEXT NOT NULL,
        name TEXT NOT NULL,
        members TEXT[] NOT NULL DEFAULT '{}',
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        UNIQUE (team_id, name)
    );`,
	`CREATE TABLE IF NOT EXISTS queued_items (
        id TEXT PRIMARY KEY,
        seq BIGSERIAL,
        team_id TEXT NOT NULL,
        content TEXT NOT NULL,
        added_by TEXT NOT NULL DEFAULT '',
        added_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE INDEX IF NOT EXISTS queued_items_team_seq_idx ON queued_items (team_id, seq);`,
	`CREATE TABLE IF NOT EXISTS claimed_items (
        id TEXT PRIMARY KEY,
        team_id TEXT NOT NULL,
        source_item_id TEXT NOT NULL,
        content TEXT NOT NULL,
        claimed_by TEXT NOT NULL,
        claimed_by_name TEXT NOT NULL,
        claimed_at TIMESTAMPTZ NOT NULL,
        cooldown_until TIMESTAMPTZ NOT NULL
    );`,
	`CREATE INDEX IF NOT EXISTS claimed_items_owner_idx ON claimed_items (team_id, claimed_by);`,
	`CREATE TABLE IF NOT EXISTS claim_cooldowns (
        team_id TEXT NOT NULL,
        user_id TEXT NOT NULL,
        cooldown_until TIMESTAMPTZ NOT NULL,
        PRIMARY KEY (team_id, user_id)
    );`,
	`CREATE TABLE IF NOT EXISTS claim_history (
        id TEXT PRIMARY KEY,
        team_id TEXT NOT NULL,
        source_item_id TEXT NOT NULL,
        content TEXT NOT NULL,
        claimed_by TEXT NOT NULL,
        claimed_by_user_id TEXT NOT NULL,
        claimed_at TIMESTAMPTZ NOT NULL
    );`,
	`CREATE INDEX IF NOT EXISTS claim_history_team_idx ON claim_history (team_id, claimed_at DESC);`,
	`CREATE INDEX IF NOT EXISTS claim_history_source_idx ON claim_history (team_id, source_item_id);`,
	`CREATE TABLE IF NOT EXISTS claim_settings (
        team_id TEXT PRIMARY KEY,
        line_count INT NOT NULL,
        cooldown_minutes DOUBLE PRECISION NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_by TEXT NOT NULL DEFAULT ''
    );`,
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
