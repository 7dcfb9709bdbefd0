// Package store persists the defender registry. Stores are
// interface-driven so the engine and facade can run against the
// in-memory implementation in tests and the PostgreSQL implementation
// in production without rewiring.
package store

import (
	"context"

	"github.com/Rooyande/eclis-ninja/internal/registry/models"
)

// ChatStore holds the set of registered chats.
// All mutations are idempotent: repeating a call with the same
// arguments changes nothing further.
type ChatStore interface {
	// Register inserts the chat, or refreshes its label when the incoming
	// label is non-empty. Registration order is preserved for listing.
	Register(ctx context.Context, chat models.ChatRef) error
	// Remove deletes the chat and cascades its exclusion and seen
	// records. Removing an unknown chat is a no-op.
	Remove(ctx context.Context, chatID int64) error
	// List returns chats in registration order.
	List(ctx context.Context) ([]models.ChatRef, error)
	Exists(ctx context.Context, chatID int64) (bool, error)
}

// MemberStore holds the set of banned members.
type MemberStore interface {
	// Register inserts the member, or refreshes the stored handle when
	// the incoming one is non-empty (freshest wins). An empty incoming
	// handle never overwrites a known one.
	Register(ctx context.Context, member models.MemberIdentity) error
	// Remove deletes the member and cascades its exclusion records.
	Remove(ctx context.Context, accountID int64) error
	// List returns members in registration order.
	List(ctx context.Context) ([]models.MemberIdentity, error)
	Exists(ctx context.Context, accountID int64) (bool, error)
}

// ExclusionStore holds per-(chat, member) enforcement state. Rows are
// written only by the enforcement engine and the operator-triggered
// reset.
type ExclusionStore interface {
	// Get returns the record for the pair, or sentinel.ErrNotFound.
	Get(ctx context.Context, chatID, accountID int64) (models.Exclusion, error)
	// Upsert writes the record, serializing concurrent writers on the
	// pair's primary key.
	Upsert(ctx context.Context, exclusion models.Exclusion) error
	// ListByState returns all records in the given state.
	ListByState(ctx context.Context, state models.ExclusionState) ([]models.Exclusion, error)
	// ResetFailed moves failed records with the given reason back to
	// pending and returns how many were reset. An empty reason resets
	// every failed record.
	ResetFailed(ctx context.Context, reason string) (int, error)
}

// SeenStore tracks which accounts were observed in which chats, fed by
// membership events.
type SeenStore interface {
	MarkSeen(ctx context.Context, chatID, accountID int64) error
	// SeenIn returns up to limit account IDs most recently seen in a chat.
	SeenIn(ctx context.Context, chatID int64, limit int) ([]int64, error)
}

// Registry bundles the stores a fully wired defender needs.
type Registry struct {
	Chats      ChatStore
	Members    MemberStore
	Exclusions ExclusionStore
	Seen       SeenStore
}
