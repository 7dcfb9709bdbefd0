package identity

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rooyande/eclis-ninja/pkg/platform/sentinel"
)

type fakeLookup struct {
	handles map[string]int64
	err     error
	calls   int
}

func (f *fakeLookup) ResolveHandle(ctx context.Context, handle string) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	id, ok := f.handles[handle]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return id, nil
}

func newTestResolver(lookup *fakeLookup) *Resolver {
	return NewResolver(lookup, nil, slog.Default())
}

func TestResolveNumericReference(t *testing.T) {
	lookup := &fakeLookup{}
	r := newTestResolver(lookup)

	identity, err := r.Resolve(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), identity.AccountID)
	assert.Empty(t, identity.LastKnownHandle)
	assert.Zero(t, lookup.calls, "numeric references must not hit the lookup capability")
}

func TestResolveHandleReference(t *testing.T) {
	lookup := &fakeLookup{handles: map[string]int64{"alice": 12345}}
	r := newTestResolver(lookup)

	identity, err := r.Resolve(context.Background(), "@alice")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), identity.AccountID)
	assert.Equal(t, "alice", identity.LastKnownHandle)
}

func TestResolveCanonicalizes(t *testing.T) {
	// "12345" and "@alice" mapping to 12345 yield the same canonical key.
	lookup := &fakeLookup{handles: map[string]int64{"alice": 12345}}
	r := newTestResolver(lookup)

	byID, err := r.Resolve(context.Background(), "12345")
	require.NoError(t, err)
	byHandle, err := r.Resolve(context.Background(), "@alice")
	require.NoError(t, err)
	assert.Equal(t, byID.AccountID, byHandle.AccountID)
}

func TestResolveUnresolvableHandle(t *testing.T) {
	lookup := &fakeLookup{handles: map[string]int64{}}
	r := newTestResolver(lookup)

	_, err := r.Resolve(context.Background(), "@ghost")
	assert.ErrorIs(t, err, ErrUnresolvable)
}

func TestResolveRestrictedLookup(t *testing.T) {
	lookup := &fakeLookup{err: sentinel.ErrPermissionDenied}
	r := newTestResolver(lookup)

	_, err := r.Resolve(context.Background(), "@alice")
	assert.ErrorIs(t, err, ErrUnresolvable)
}

func TestResolveTransientLookupFailure(t *testing.T) {
	lookup := &fakeLookup{err: sentinel.ErrUnavailable}
	r := newTestResolver(lookup)

	_, err := r.Resolve(context.Background(), "@alice")
	require.Error(t, err)
	// Transient failures are not misreported as unresolvable.
	assert.NotErrorIs(t, err, ErrUnresolvable)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestResolveMalformedReferences(t *testing.T) {
	r := newTestResolver(&fakeLookup{})

	for _, ref := range []string{"", "   ", "@", "alice", "-5", "0", "12a45"} {
		_, err := r.Resolve(context.Background(), ref)
		assert.ErrorIs(t, err, ErrInvalidFormat, "reference %q", ref)
	}
}
