package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema statements are idempotent so `defender migrate` and startup
// can both run them safely.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS chats (
		chat_id BIGINT PRIMARY KEY,
		label TEXT NOT NULL DEFAULT '',
		registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS members (
		account_id BIGINT PRIMARY KEY,
		last_handle TEXT NOT NULL DEFAULT '',
		registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS exclusions (
		chat_id BIGINT NOT NULL REFERENCES chats(chat_id) ON DELETE CASCADE,
		account_id BIGINT NOT NULL REFERENCES members(account_id) ON DELETE CASCADE,
		state TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (chat_id, account_id)
	)`,
	`CREATE TABLE IF NOT EXISTS seen (
		chat_id BIGINT NOT NULL,
		account_id BIGINT NOT NULL,
		last_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (chat_id, account_id)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id BIGSERIAL PRIMARY KEY,
		chat_id BIGINT NOT NULL DEFAULT 0,
		account_id BIGINT NOT NULL DEFAULT 0,
		handle TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS exclusions_state_idx ON exclusions(state)`,
}

// InitSchema creates the registry tables if they do not exist.
func InitSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
