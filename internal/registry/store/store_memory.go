package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Rooyande/eclis-ninja/internal/registry/models"
	"github.com/Rooyande/eclis-ninja/pkg/platform/sentinel"
)

// Memory is the in-memory registry implementation. It backs unit tests
// and lets the bot start without a database (DB-less deployments keep
// registrations for the process lifetime only).
type Memory struct {
	mu sync.RWMutex

	chats     map[int64]models.ChatRef
	chatOrder []int64

	members     map[int64]models.MemberIdentity
	memberOrder []int64

	exclusions map[pairKey]models.Exclusion
	seen       map[pairKey]time.Time
}

type pairKey struct {
	chatID    int64
	accountID int64
}

var (
	_ ChatStore      = (*Memory)(nil)
	_ MemberStore    = memberFacet{}
	_ ExclusionStore = (*Memory)(nil)
	_ SeenStore      = (*Memory)(nil)
)

// NewMemory creates an empty in-memory registry store.
func NewMemory() *Memory {
	return &Memory{
		chats:      make(map[int64]models.ChatRef),
		members:    make(map[int64]models.MemberIdentity),
		exclusions: make(map[pairKey]models.Exclusion),
		seen:       make(map[pairKey]time.Time),
	}
}

// NewMemoryRegistry bundles a single Memory behind the Registry facets.
// Chat and member removal cascade into the shared exclusion and seen
// state, matching the relational schema's foreign keys.
func NewMemoryRegistry() (Registry, *Memory) {
	m := NewMemory()
	return Registry{Chats: m, Members: memberFacet{m}, Exclusions: m, Seen: m}, m
}

func (m *Memory) Register(ctx context.Context, chat models.ChatRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.chats[chat.ChatID]
	if !ok {
		if chat.RegisteredAt.IsZero() {
			chat.RegisteredAt = time.Now()
		}
		m.chats[chat.ChatID] = chat
		m.chatOrder = append(m.chatOrder, chat.ChatID)
		return nil
	}
	if chat.Label != "" && chat.Label != existing.Label {
		existing.Label = chat.Label
		m.chats[chat.ChatID] = existing
	}
	return nil
}

func (m *Memory) Remove(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chats[chatID]; !ok {
		return nil
	}
	delete(m.chats, chatID)
	for i, id := range m.chatOrder {
		if id == chatID {
			m.chatOrder = append(m.chatOrder[:i], m.chatOrder[i+1:]...)
			break
		}
	}
	m.cascadeChat(chatID)
	return nil
}

func (m *Memory) List(ctx context.Context) ([]models.ChatRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chats := make([]models.ChatRef, 0, len(m.chatOrder))
	for _, id := range m.chatOrder {
		chats = append(chats, m.chats[id])
	}
	return chats, nil
}

func (m *Memory) Exists(ctx context.Context, chatID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.chats[chatID]
	return ok, nil
}

// memberFacet adapts Memory to MemberStore; the method set of a single
// type cannot carry both the chat and member Register signatures.
type memberFacet struct{ m *Memory }

func (m *Memory) RegisterMember(ctx context.Context, member models.MemberIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.members[member.AccountID]
	if !ok {
		if member.UpdatedAt.IsZero() {
			member.UpdatedAt = time.Now()
		}
		m.members[member.AccountID] = member
		m.memberOrder = append(m.memberOrder, member.AccountID)
		return nil
	}
	if member.LastKnownHandle != "" && member.LastKnownHandle != existing.LastKnownHandle {
		existing.LastKnownHandle = member.LastKnownHandle
		existing.UpdatedAt = time.Now()
		m.members[member.AccountID] = existing
	}
	return nil
}

func (m *Memory) RemoveMember(ctx context.Context, accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.members[accountID]; !ok {
		return nil
	}
	delete(m.members, accountID)
	for i, id := range m.memberOrder {
		if id == accountID {
			m.memberOrder = append(m.memberOrder[:i], m.memberOrder[i+1:]...)
			break
		}
	}
	m.cascadeMember(accountID)
	return nil
}

func (m *Memory) ListMembers(ctx context.Context) ([]models.MemberIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := make([]models.MemberIdentity, 0, len(m.memberOrder))
	for _, id := range m.memberOrder {
		members = append(members, m.members[id])
	}
	return members, nil
}

func (m *Memory) MemberExists(ctx context.Context, accountID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.members[accountID]
	return ok, nil
}

func (f memberFacet) Register(ctx context.Context, member models.MemberIdentity) error {
	return f.m.RegisterMember(ctx, member)
}

func (f memberFacet) Remove(ctx context.Context, accountID int64) error {
	return f.m.RemoveMember(ctx, accountID)
}

func (f memberFacet) List(ctx context.Context) ([]models.MemberIdentity, error) {
	return f.m.ListMembers(ctx)
}

func (f memberFacet) Exists(ctx context.Context, accountID int64) (bool, error) {
	return f.m.MemberExists(ctx, accountID)
}

func (m *Memory) Get(ctx context.Context, chatID, accountID int64) (models.Exclusion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exclusion, ok := m.exclusions[pairKey{chatID, accountID}]
	if !ok {
		return models.Exclusion{}, sentinel.ErrNotFound
	}
	return exclusion, nil
}

func (m *Memory) Upsert(ctx context.Context, exclusion models.Exclusion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if exclusion.UpdatedAt.IsZero() {
		exclusion.UpdatedAt = time.Now()
	}
	m.exclusions[pairKey{exclusion.ChatID, exclusion.AccountID}] = exclusion
	return nil
}

func (m *Memory) ListByState(ctx context.Context, state models.ExclusionState) ([]models.Exclusion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Exclusion
	for _, exclusion := range m.exclusions {
		if exclusion.State == state {
			out = append(out, exclusion)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChatID != out[j].ChatID {
			return out[i].ChatID < out[j].ChatID
		}
		return out[i].AccountID < out[j].AccountID
	})
	return out, nil
}

func (m *Memory) ResetFailed(ctx context.Context, reason string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reset := 0
	for key, exclusion := range m.exclusions {
		if exclusion.State != models.ExclusionFailed {
			continue
		}
		if reason != "" && exclusion.Reason != reason {
			continue
		}
		exclusion.State = models.ExclusionPending
		exclusion.Reason = ""
		exclusion.UpdatedAt = time.Now()
		m.exclusions[key] = exclusion
		reset++
	}
	return reset, nil
}

func (m *Memory) MarkSeen(ctx context.Context, chatID, accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[pairKey{chatID, accountID}] = time.Now()
	return nil
}

func (m *Memory) SeenIn(ctx context.Context, chatID int64, limit int) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type seenAt struct {
		accountID int64
		at        time.Time
	}
	var entries []seenAt
	for key, at := range m.seen {
		if key.chatID == chatID {
			entries = append(entries, seenAt{key.accountID, at})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.After(entries[j].at) })

	ids := make([]int64, 0, len(entries))
	for _, entry := range entries {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, entry.accountID)
	}
	return ids, nil
}

func (m *Memory) cascadeChat(chatID int64) {
	for key := range m.exclusions {
		if key.chatID == chatID {
			delete(m.exclusions, key)
		}
	}
	for key := range m.seen {
		if key.chatID == chatID {
			delete(m.seen, key)
		}
	}
}

func (m *Memory) cascadeMember(accountID int64) {
	for key := range m.exclusions {
		if key.accountID == accountID {
			delete(m.exclusions, key)
		}
	}
}
