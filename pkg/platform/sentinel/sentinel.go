package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and transport adapters
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store, or the platform reports
//   the chat/account as gone
// - ErrPermissionDenied: the bot lacks rights to act in a chat
// - ErrUnavailable: service or resource temporarily unavailable; callers
//   may retry on a later run
//
// For validation errors (bad input, missing fields), use pkg/domainerrors.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnavailable      = errors.New("unavailable")
)
