// Package enforce applies the ban registry across registered chats.
// One run snapshots the registry, computes the (chat, member) target
// set for its scope, and issues exclusion actions through the chat
// action capability, collecting per-pair outcomes without aborting the
// batch on individual failures.
package enforce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Rooyande/eclis-ninja/internal/enforce/metrics"
	"github.com/Rooyande/eclis-ninja/internal/registry/models"
	"github.com/Rooyande/eclis-ninja/internal/registry/store"
	"github.com/Rooyande/eclis-ninja/pkg/platform/sentinel"
)

// ErrScopeNotRegistered means the scope names a chat or member that is
// not in the registry. A structural precondition violation: the run
// issues zero actions.
var ErrScopeNotRegistered = errors.New("scope not registered")

// ChatAction excludes a member from a chat on the platform. The
// transport adapter supplies the implementation.
//
// Error classification contract: nil means the member is excluded
// (including "already absent"); sentinel.ErrPermissionDenied means the
// bot lacks rights in the chat; sentinel.ErrNotFound means the chat or
// member no longer resolves; anything else is treated as transient.
type ChatAction interface {
	Exclude(ctx context.Context, chatID, accountID int64) error
}

// Engine runs enforcement sweeps.
type Engine struct {
	chats      store.ChatStore
	members    store.MemberStore
	exclusions store.ExclusionStore
	action     ChatAction

	workers     int
	callTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the worker pool for a run. Values below 1 fall
// back to sequential processing.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithCallTimeout bounds each exclusion call; timeouts classify as
// transient.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) { e.callTimeout = d }
}

// WithMetrics attaches Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New builds an Engine over the registry stores and the chat action
// capability.
func New(reg store.Registry, action ChatAction, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		chats:       reg.Chats,
		members:     reg.Members,
		exclusions:  reg.Exclusions,
		action:      action,
		workers:     4,
		callTimeout: 10 * time.Second,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = 1
	}
	return e
}

type pair struct {
	chatID    int64
	accountID int64
}

// Run executes one enforcement sweep over the scope.
//
// The registry is snapshotted once at run start; registrations added
// mid-run are not picked up. Pairs already applied are skipped; pairs
// in failed(transient) re-enter pending and are retried; pairs in
// failed(permission_denied) or not_applicable wait for an explicit
// operator reset. Cancelling ctx stops scheduling new pairs; in-flight
// calls finish under their own timeout and report normally.
func (e *Engine) Run(ctx context.Context, scope Scope) (*Report, error) {
	pairs, err := e.targets(ctx, scope)
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: uuid.NewString(), Scope: scope.String()}
	start := time.Now()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, p := range pairs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result := e.enforcePair(ctx, p)
			mu.Lock()
			report.record(result)
			mu.Unlock()
			e.metrics.ObservePair(string(result.Outcome))
			return nil
		})
	}
	_ = g.Wait()

	e.metrics.ObserveRun(time.Since(start).Seconds())
	e.logger.InfoContext(ctx, "enforcement run finished",
		"run_id", report.RunID,
		"scope", report.Scope,
		"pairs", report.Pairs(),
		"applied", report.Applied,
		"skipped", report.Skipped,
		"failed", len(report.Failures),
	)
	return report, nil
}

// Apply enforces a single (chat, member) pair outside a sweep, with the
// same skip rules, outcome classification, and state recording as a
// run. Used by the join guard when a banned member reappears.
func (e *Engine) Apply(ctx context.Context, chatID, accountID int64) PairResult {
	result := e.enforcePair(ctx, pair{chatID: chatID, accountID: accountID})
	e.metrics.ObservePair(string(result.Outcome))
	return result
}

// targets validates the scope and snapshots the registered sets.
func (e *Engine) targets(ctx context.Context, scope Scope) ([]pair, error) {
	switch scope.kind {
	case scopeMember:
		ok, err := e.members.Exists(ctx, scope.accountID)
		if err != nil {
			return nil, fmt.Errorf("validate scope: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: member %d", ErrScopeNotRegistered, scope.accountID)
		}
	case scopeChat:
		ok, err := e.chats.Exists(ctx, scope.chatID)
		if err != nil {
			return nil, fmt.Errorf("validate scope: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: chat %d", ErrScopeNotRegistered, scope.chatID)
		}
	}

	chats, err := e.chats.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot chats: %w", err)
	}
	members, err := e.members.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot members: %w", err)
	}

	var pairs []pair
	for _, chat := range chats {
		if scope.kind == scopeChat && chat.ChatID != scope.chatID {
			continue
		}
		for _, member := range members {
			if scope.kind == scopeMember && member.AccountID != scope.accountID {
				continue
			}
			pairs = append(pairs, pair{chatID: chat.ChatID, accountID: member.AccountID})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].chatID != pairs[j].chatID {
			return pairs[i].chatID < pairs[j].chatID
		}
		return pairs[i].accountID < pairs[j].accountID
	})
	return pairs, nil
}

func (e *Engine) enforcePair(ctx context.Context, p pair) PairResult {
	result := PairResult{ChatID: p.chatID, AccountID: p.accountID}

	// Run-level cancellation stops scheduling, not pairs already started:
	// an in-flight pair finishes under its own call timeout and records
	// its state normally.
	ctx = context.WithoutCancel(ctx)

	existing, err := e.exclusions.Get(ctx, p.chatID, p.accountID)
	switch {
	case err == nil:
		switch {
		case existing.State == models.ExclusionApplied:
			result.Outcome = OutcomeSkipped
			return result
		case existing.State == models.ExclusionNotApplicable:
			result.Outcome = OutcomeNotApplicable
			result.Detail = "previously not applicable; reset required"
			return result
		case existing.State == models.ExclusionFailed && !existing.Retryable():
			result.Outcome = OutcomePermissionDenied
			result.Detail = "previously failed; reset required"
			return result
		}
	case errors.Is(err, sentinel.ErrNotFound):
		// unknown pair, proceed
	default:
		result.Outcome = OutcomeTransient
		result.Detail = fmt.Sprintf("read exclusion state: %v", err)
		return result
	}

	if err := e.writeState(ctx, p, models.ExclusionPending, ""); err != nil {
		result.Outcome = OutcomeTransient
		result.Detail = fmt.Sprintf("mark pending: %v", err)
		return result
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	err = e.action.Exclude(callCtx, p.chatID, p.accountID)
	cancel()

	switch {
	case err == nil:
		result.Outcome = OutcomeApplied
		err = e.writeState(ctx, p, models.ExclusionApplied, "")
	case errors.Is(err, sentinel.ErrPermissionDenied):
		result.Outcome = OutcomePermissionDenied
		result.Detail = err.Error()
		err = e.writeState(ctx, p, models.ExclusionFailed, models.ReasonPermissionDenied)
	case errors.Is(err, sentinel.ErrNotFound):
		result.Outcome = OutcomeNotApplicable
		result.Detail = err.Error()
		err = e.writeState(ctx, p, models.ExclusionNotApplicable, "")
	default:
		result.Outcome = OutcomeTransient
		result.Detail = err.Error()
		err = e.writeState(ctx, p, models.ExclusionFailed, models.ReasonTransient)
	}
	if err != nil {
		e.logger.ErrorContext(ctx, "record exclusion state failed",
			"chat_id", p.chatID, "account_id", p.accountID, "error", err)
	}
	return result
}

func (e *Engine) writeState(ctx context.Context, p pair, state models.ExclusionState, reason string) error {
	return e.exclusions.Upsert(ctx, models.Exclusion{
		ChatID:    p.chatID,
		AccountID: p.accountID,
		State:     state,
		Reason:    reason,
	})
}
