// Package audit keeps an append-only trail of defender actions: joins
// observed, bans applied, raids detected. Entries feed the /report
// command and post-incident review; a failed append never fails the
// operation that produced it.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Actions recorded in the trail.
const (
	ActionJoinObserved = "join_observed"
	ActionBanApplied   = "ban_applied"
	ActionRaidDetected = "raid_detected"
	ActionMemberAdded  = "member_added"
	ActionChatAdded    = "chat_added"
)

// Entry is one audit record.
type Entry struct {
	ID        int64
	ChatID    int64
	AccountID int64
	Handle    string
	Action    string
	Detail    string
	CreatedAt time.Time
}

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Recorder is the write-side facade over a Store. It swallows append
// failures after logging them.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder builds a Recorder.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record appends an entry, logging instead of returning on failure.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.store == nil {
		return
	}
	if err := r.store.Append(ctx, entry); err != nil {
		r.logger.WarnContext(ctx, "audit append failed",
			"action", entry.Action, "chat_id", entry.ChatID, "account_id", entry.AccountID, "error", err)
	}
}
