// Package identity turns user-supplied member references (numeric ID or
// @handle) into the canonical MemberIdentity. Purely a translation
// stage: it never persists and never caches identity state beyond the
// optional short-TTL lookup memoization.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	platformredis "github.com/Rooyande/eclis-ninja/internal/platform/redis"
	"github.com/Rooyande/eclis-ninja/internal/registry/models"
	"github.com/Rooyande/eclis-ninja/pkg/platform/sentinel"
)

var (
	// ErrInvalidFormat means the reference is neither a numeric ID nor an
	// @handle.
	ErrInvalidFormat = errors.New("invalid member reference")
	// ErrUnresolvable means the handle could not be mapped to an account
	// ID: no public profile, lookup restricted, or handle unknown.
	ErrUnresolvable = errors.New("unresolvable handle")
)

// HandleLookup resolves a public handle to a stable account ID. The
// transport adapter supplies the implementation; it returns
// sentinel.ErrNotFound when the handle has no resolvable account.
type HandleLookup interface {
	ResolveHandle(ctx context.Context, handle string) (int64, error)
}

const lookupCacheTTL = 5 * time.Minute

// Resolver normalizes member references.
type Resolver struct {
	lookup HandleLookup
	cache  *platformredis.Client
	logger *slog.Logger
}

// NewResolver builds a Resolver. cache may be nil; memoization is then
// disabled and every handle reference hits the lookup capability.
func NewResolver(lookup HandleLookup, cache *platformredis.Client, logger *slog.Logger) *Resolver {
	return &Resolver{lookup: lookup, cache: cache, logger: logger}
}

// Resolve maps a reference to a canonical identity.
//
// Numeric references are trusted as-is with no external call; existence
// is discovered lazily when the engine acts on a chat. Handle
// references go through the lookup capability.
func (r *Resolver) Resolve(ctx context.Context, reference string) (models.MemberIdentity, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return models.MemberIdentity{}, ErrInvalidFormat
	}

	if accountID, err := strconv.ParseInt(reference, 10, 64); err == nil {
		if accountID <= 0 {
			return models.MemberIdentity{}, ErrInvalidFormat
		}
		return models.MemberIdentity{AccountID: accountID}, nil
	}

	if !strings.HasPrefix(reference, "@") {
		return models.MemberIdentity{}, ErrInvalidFormat
	}
	handle := strings.TrimPrefix(reference, "@")
	if handle == "" {
		return models.MemberIdentity{}, ErrInvalidFormat
	}

	accountID, err := r.resolveHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrPermissionDenied) {
			return models.MemberIdentity{}, fmt.Errorf("%w: @%s", ErrUnresolvable, handle)
		}
		return models.MemberIdentity{}, fmt.Errorf("resolve @%s: %w", handle, err)
	}

	return models.MemberIdentity{AccountID: accountID, LastKnownHandle: handle}, nil
}

func (r *Resolver) resolveHandle(ctx context.Context, handle string) (int64, error) {
	key := "defender:handle:" + strings.ToLower(handle)

	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, key).Result(); err == nil {
			if accountID, err := strconv.ParseInt(cached, 10, 64); err == nil {
				return accountID, nil
			}
		}
	}

	accountID, err := r.lookup.ResolveHandle(ctx, handle)
	if err != nil {
		return 0, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, strconv.FormatInt(accountID, 10), lookupCacheTTL).Err(); err != nil {
			r.logger.WarnContext(ctx, "handle cache write failed", "handle", handle, "error", err)
		}
	}
	return accountID, nil
}
