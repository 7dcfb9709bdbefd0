// Package models defines the registry's persisted entities: registered
// chats, banned members, and the per-(chat, member) exclusion relation.
package models

import "time"

// MemberIdentity is a banned member keyed by the platform's stable
// numeric account ID. The handle is informational only; it is never
// used as a lookup key once an account ID is known.
type MemberIdentity struct {
	AccountID       int64
	LastKnownHandle string
	UpdatedAt       time.Time
}

// ChatRef is a registered chat the defender is expected to act on.
type ChatRef struct {
	ChatID       int64
	Label        string
	RegisteredAt time.Time
}

// ExclusionState is the terminal-or-pending state of one (chat, member)
// enforcement pair.
type ExclusionState string

const (
	// ExclusionPending means the pair still needs an exclusion action.
	ExclusionPending ExclusionState = "pending"
	// ExclusionApplied means the member is excluded from the chat, either
	// because the action succeeded or the platform reported the member
	// already absent. The end state is what matters, not the transition.
	ExclusionApplied ExclusionState = "applied"
	// ExclusionFailed means the last action attempt failed; Reason says
	// whether the failure is transient or needs operator intervention.
	ExclusionFailed ExclusionState = "failed"
	// ExclusionNotApplicable means the chat or member is no longer
	// resolvable on the platform. Not retried automatically.
	ExclusionNotApplicable ExclusionState = "not_applicable"
)

// Failure reasons recorded alongside ExclusionFailed.
const (
	ReasonPermissionDenied = "permission_denied"
	ReasonTransient        = "transient"
)

// Exclusion is the ban-state record for one (chat, member) pair. Rows
// are created and mutated only by the enforcement engine.
type Exclusion struct {
	ChatID    int64
	AccountID int64
	State     ExclusionState
	Reason    string
	UpdatedAt time.Time
}

// Retryable reports whether the record should re-enter pending on the
// next enforcement run without operator action.
func (e Exclusion) Retryable() bool {
	return e.State == ExclusionFailed && e.Reason == ReasonTransient
}
