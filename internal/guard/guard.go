// Package guard watches membership events in registered chats. A
// registered (banned) member who reappears is excluded on the spot;
// join bursts above the raid threshold alert the administrators.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Rooyande/eclis-ninja/internal/audit"
	"github.com/Rooyande/eclis-ninja/internal/enforce"
	"github.com/Rooyande/eclis-ninja/internal/registry/store"
)

// Enforcer applies a single (chat, member) exclusion with the engine's
// classification and state recording.
type Enforcer interface {
	Apply(ctx context.Context, chatID, accountID int64) enforce.PairResult
}

// Notifier delivers out-of-band alerts to the administrators.
type Notifier interface {
	NotifyAdmins(ctx context.Context, text string) error
}

// Join is one observed membership event.
type Join struct {
	ChatID    int64
	AccountID int64
	Handle    string
	At        time.Time
}

// Guard reacts to joins in registered chats.
type Guard struct {
	chats    store.ChatStore
	members  store.MemberStore
	seen     store.SeenStore
	enforcer Enforcer
	notifier Notifier
	recorder *audit.Recorder
	raids    *raidWindow
	cooldown Cooldown
	logger   *slog.Logger
}

// Config holds the guard's tunables.
type Config struct {
	RaidWindow    time.Duration
	RaidThreshold int
}

// New builds a Guard. cooldown suppresses duplicate admin alerts;
// recorder may be nil when auditing is disabled.
func New(reg store.Registry, enforcer Enforcer, notifier Notifier, recorder *audit.Recorder,
	cooldown Cooldown, cfg Config, logger *slog.Logger) *Guard {
	return &Guard{
		chats:    reg.Chats,
		members:  reg.Members,
		seen:     reg.Seen,
		enforcer: enforcer,
		notifier: notifier,
		recorder: recorder,
		raids:    newRaidWindow(cfg.RaidWindow, cfg.RaidThreshold),
		cooldown: cooldown,
		logger:   logger,
	}
}

// OnJoin handles one membership event. Joins in unregistered chats are
// ignored. Errors are contained: a failed lookup or notification never
// propagates to the transport loop.
func (g *Guard) OnJoin(ctx context.Context, join Join) {
	registered, err := g.chats.Exists(ctx, join.ChatID)
	if err != nil {
		g.logger.ErrorContext(ctx, "chat lookup failed", "chat_id", join.ChatID, "error", err)
		return
	}
	if !registered {
		return
	}

	if err := g.seen.MarkSeen(ctx, join.ChatID, join.AccountID); err != nil {
		g.logger.WarnContext(ctx, "mark seen failed",
			"chat_id", join.ChatID, "account_id", join.AccountID, "error", err)
	}
	g.recorder.Record(ctx, audit.Entry{
		ChatID:    join.ChatID,
		AccountID: join.AccountID,
		Handle:    join.Handle,
		Action:    audit.ActionJoinObserved,
	})

	g.checkRaid(ctx, join)

	banned, err := g.members.Exists(ctx, join.AccountID)
	if err != nil {
		g.logger.ErrorContext(ctx, "member lookup failed",
			"account_id", join.AccountID, "error", err)
		return
	}
	if !banned {
		return
	}

	result := g.enforcer.Apply(ctx, join.ChatID, join.AccountID)
	switch result.Outcome {
	case enforce.OutcomeApplied, enforce.OutcomeSkipped:
		g.recorder.Record(ctx, audit.Entry{
			ChatID:    join.ChatID,
			AccountID: join.AccountID,
			Handle:    join.Handle,
			Action:    audit.ActionBanApplied,
		})
		g.notify(ctx,
			fmt.Sprintf("banned member %d rejoined chat %d and was excluded", join.AccountID, join.ChatID),
			fmt.Sprintf("ban:%d:%d", join.ChatID, join.AccountID))
	default:
		g.logger.WarnContext(ctx, "join enforcement failed",
			"chat_id", join.ChatID, "account_id", join.AccountID,
			"outcome", string(result.Outcome), "detail", result.Detail)
	}
}

func (g *Guard) checkRaid(ctx context.Context, join Join) {
	at := join.At
	if at.IsZero() {
		at = time.Now()
	}
	count, tripped := g.raids.registerJoin(join.ChatID, at)
	if !tripped {
		return
	}
	g.recorder.Record(ctx, audit.Entry{
		ChatID: join.ChatID,
		Action: audit.ActionRaidDetected,
		Detail: fmt.Sprintf("%d joins in window", count),
	})
	g.notify(ctx,
		fmt.Sprintf("possible raid on chat %d: %d joins in the last window", join.ChatID, count),
		fmt.Sprintf("raid:%d", join.ChatID))
}

func (g *Guard) notify(ctx context.Context, text, cooldownKey string) {
	if g.notifier == nil {
		return
	}
	if g.cooldown != nil && !g.cooldown.Allow(ctx, cooldownKey) {
		return
	}
	if err := g.notifier.NotifyAdmins(ctx, text); err != nil {
		g.logger.WarnContext(ctx, "admin notification failed", "error", err)
	}
}
