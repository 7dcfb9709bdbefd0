package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Rooyande/eclis-ninja/internal/registry/models"
	"github.com/Rooyande/eclis-ninja/pkg/platform/sentinel"
	"github.com/Rooyande/eclis-ninja/pkg/platform/tx"
)

// executor is the common surface of *sql.DB and *sql.Tx the stores
// write through.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// writer returns the context transaction when the caller opened one,
// so writes across stores can share it, and the pool otherwise.
func writer(ctx context.Context, db *sql.DB) executor {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return db
}

// PostgresChats persists registered chats in PostgreSQL.
type PostgresChats struct {
	db *sql.DB
}

// NewPostgresChats constructs a PostgreSQL-backed chat store.
func NewPostgresChats(db *sql.DB) *PostgresChats {
	return &PostgresChats{db: db}
}

var _ ChatStore = (*PostgresChats)(nil)

func (s *PostgresChats) Register(ctx context.Context, chat models.ChatRef) error {
	_, err := writer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO chats (chat_id, label)
		VALUES ($1, $2)
		ON CONFLICT (chat_id) DO UPDATE SET
			label = CASE WHEN EXCLUDED.label <> '' THEN EXCLUDED.label ELSE chats.label END`,
		chat.ChatID, chat.Label)
	if err != nil {
		return fmt.Errorf("register chat: %w", err)
	}
	return nil
}

func (s *PostgresChats) Remove(ctx context.Context, chatID int64) error {
	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("remove chat: %w", err)
	}
	defer txn.Rollback()
	ctx = tx.WithTx(ctx, txn)

	if _, err := writer(ctx, s.db).ExecContext(ctx, `DELETE FROM chats WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("remove chat: %w", err)
	}
	// seen has no FK on chats; clean it alongside the cascade.
	if _, err := writer(ctx, s.db).ExecContext(ctx, `DELETE FROM seen WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("remove chat seen records: %w", err)
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("remove chat: %w", err)
	}
	return nil
}

func (s *PostgresChats) List(ctx context.Context) ([]models.ChatRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, label, registered_at FROM chats ORDER BY registered_at, chat_id`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []models.ChatRef
	for rows.Next() {
		var chat models.ChatRef
		if err := rows.Scan(&chat.ChatID, &chat.Label, &chat.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

func (s *PostgresChats) Exists(ctx context.Context, chatID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM chats WHERE chat_id = $1)`, chatID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check chat: %w", err)
	}
	return exists, nil
}

// PostgresMembers persists banned members in PostgreSQL.
type PostgresMembers struct {
	db *sql.DB
}

// NewPostgresMembers constructs a PostgreSQL-backed member store.
func NewPostgresMembers(db *sql.DB) *PostgresMembers {
	return &PostgresMembers{db: db}
}

var _ MemberStore = (*PostgresMembers)(nil)

func (s *PostgresMembers) Register(ctx context.Context, member models.MemberIdentity) error {
	_, err := writer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO members (account_id, last_handle)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET
			last_handle = CASE WHEN EXCLUDED.last_handle <> ''
				THEN EXCLUDED.last_handle ELSE members.last_handle END,
			updated_at = CASE WHEN EXCLUDED.last_handle <> ''
				THEN NOW() ELSE members.updated_at END`,
		member.AccountID, member.LastKnownHandle)
	if err != nil {
		return fmt.Errorf("register member: %w", err)
	}
	return nil
}

func (s *PostgresMembers) Remove(ctx context.Context, accountID int64) error {
	if _, err := writer(ctx, s.db).ExecContext(ctx, `DELETE FROM members WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (s *PostgresMembers) List(ctx context.Context) ([]models.MemberIdentity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id, last_handle, updated_at FROM members ORDER BY registered_at, account_id`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []models.MemberIdentity
	for rows.Next() {
		var member models.MemberIdentity
		if err := rows.Scan(&member.AccountID, &member.LastKnownHandle, &member.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (s *PostgresMembers) Exists(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM members WHERE account_id = $1)`, accountID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check member: %w", err)
	}
	return exists, nil
}

// PostgresExclusions persists per-pair enforcement state in PostgreSQL.
// The (chat_id, account_id) primary key serializes concurrent writers
// on a pair.
type PostgresExclusions struct {
	db *sql.DB
}

// NewPostgresExclusions constructs a PostgreSQL-backed exclusion store.
func NewPostgresExclusions(db *sql.DB) *PostgresExclusions {
	return &PostgresExclusions{db: db}
}

var _ ExclusionStore = (*PostgresExclusions)(nil)

func (s *PostgresExclusions) Get(ctx context.Context, chatID, accountID int64) (models.Exclusion, error) {
	var exclusion models.Exclusion
	err := s.db.QueryRowContext(ctx, `
		SELECT chat_id, account_id, state, reason, updated_at
		FROM exclusions WHERE chat_id = $1 AND account_id = $2`,
		chatID, accountID).
		Scan(&exclusion.ChatID, &exclusion.AccountID, &exclusion.State, &exclusion.Reason, &exclusion.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Exclusion{}, sentinel.ErrNotFound
		}
		return models.Exclusion{}, fmt.Errorf("get exclusion: %w", err)
	}
	return exclusion, nil
}

func (s *PostgresExclusions) Upsert(ctx context.Context, exclusion models.Exclusion) error {
	_, err := writer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO exclusions (chat_id, account_id, state, reason, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (chat_id, account_id) DO UPDATE SET
			state = EXCLUDED.state,
			reason = EXCLUDED.reason,
			updated_at = NOW()`,
		exclusion.ChatID, exclusion.AccountID, string(exclusion.State), exclusion.Reason)
	if err != nil {
		return fmt.Errorf("upsert exclusion: %w", err)
	}
	return nil
}

func (s *PostgresExclusions) ListByState(ctx context.Context, state models.ExclusionState) ([]models.Exclusion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, account_id, state, reason, updated_at
		FROM exclusions WHERE state = $1 ORDER BY chat_id, account_id`,
		string(state))
	if err != nil {
		return nil, fmt.Errorf("list exclusions: %w", err)
	}
	defer rows.Close()

	var exclusions []models.Exclusion
	for rows.Next() {
		var exclusion models.Exclusion
		if err := rows.Scan(&exclusion.ChatID, &exclusion.AccountID, &exclusion.State,
			&exclusion.Reason, &exclusion.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan exclusion: %w", err)
		}
		exclusions = append(exclusions, exclusion)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list exclusions: %w", err)
	}
	return exclusions, nil
}

func (s *PostgresExclusions) ResetFailed(ctx context.Context, reason string) (int, error) {
	query := `UPDATE exclusions SET state = $1, reason = '', updated_at = NOW() WHERE state = $2`
	args := []any{string(models.ExclusionPending), string(models.ExclusionFailed)}
	if reason != "" {
		query += ` AND reason = $3`
		args = append(args, reason)
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset failed exclusions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset failed exclusions: %w", err)
	}
	return int(affected), nil
}

// PostgresSeen persists chat membership sightings in PostgreSQL.
type PostgresSeen struct {
	db *sql.DB
}

// NewPostgresSeen constructs a PostgreSQL-backed seen store.
func NewPostgresSeen(db *sql.DB) *PostgresSeen {
	return &PostgresSeen{db: db}
}

var _ SeenStore = (*PostgresSeen)(nil)

func (s *PostgresSeen) MarkSeen(ctx context.Context, chatID, accountID int64) error {
	_, err := writer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO seen (chat_id, account_id, last_seen)
		VALUES ($1, $2, NOW())
		ON CONFLICT (chat_id, account_id) DO UPDATE SET last_seen = NOW()`,
		chatID, accountID)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

func (s *PostgresSeen) SeenIn(ctx context.Context, chatID int64, limit int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id FROM seen WHERE chat_id = $1 ORDER BY last_seen DESC LIMIT $2`,
		chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list seen: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan seen: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list seen: %w", err)
	}
	return ids, nil
}

// NewPostgresRegistry bundles the PostgreSQL stores over one pool.
func NewPostgresRegistry(db *sql.DB) Registry {
	return Registry{
		Chats:      NewPostgresChats(db),
		Members:    NewPostgresMembers(db),
		Exclusions: NewPostgresExclusions(db),
		Seen:       NewPostgresSeen(db),
	}
}
