package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/Rooyande/eclis-ninja/internal/registry/models"
	"github.com/Rooyande/eclis-ninja/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	registry Registry
	ctx      context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.registry, _ = NewMemoryRegistry()
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) TestRegisterChatIdempotent() {
	chat := models.ChatRef{ChatID: -100123, Label: "ops"}
	s.Require().NoError(s.registry.Chats.Register(s.ctx, chat))
	s.Require().NoError(s.registry.Chats.Register(s.ctx, chat))

	chats, err := s.registry.Chats.List(s.ctx)
	s.Require().NoError(err)
	s.Len(chats, 1)
	s.Equal(int64(-100123), chats[0].ChatID)
	s.Equal("ops", chats[0].Label)
}

func (s *MemoryStoreSuite) TestChatListOrder() {
	for _, id := range []int64{-3, -1, -2} {
		s.Require().NoError(s.registry.Chats.Register(s.ctx, models.ChatRef{ChatID: id}))
	}
	chats, err := s.registry.Chats.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(chats, 3)
	s.Equal(int64(-3), chats[0].ChatID)
	s.Equal(int64(-1), chats[1].ChatID)
	s.Equal(int64(-2), chats[2].ChatID)
}

func (s *MemoryStoreSuite) TestRegisterMemberIdempotent() {
	member := models.MemberIdentity{AccountID: 12345, LastKnownHandle: "alice"}
	s.Require().NoError(s.registry.Members.Register(s.ctx, member))
	s.Require().NoError(s.registry.Members.Register(s.ctx, member))

	members, err := s.registry.Members.List(s.ctx)
	s.Require().NoError(err)
	s.Len(members, 1)
	s.Equal(int64(12345), members[0].AccountID)
}

func (s *MemoryStoreSuite) TestFreshestHandleWins() {
	s.Require().NoError(s.registry.Members.Register(s.ctx,
		models.MemberIdentity{AccountID: 12345, LastKnownHandle: "alice"}))
	s.Require().NoError(s.registry.Members.Register(s.ctx,
		models.MemberIdentity{AccountID: 12345, LastKnownHandle: "alice2"}))

	members, err := s.registry.Members.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(members, 1)
	s.Equal("alice2", members[0].LastKnownHandle)

	// An empty incoming handle never overwrites a known one.
	s.Require().NoError(s.registry.Members.Register(s.ctx,
		models.MemberIdentity{AccountID: 12345}))
	members, err = s.registry.Members.List(s.ctx)
	s.Require().NoError(err)
	s.Equal("alice2", members[0].LastKnownHandle)
}

func (s *MemoryStoreSuite) TestRemoveChatCascades() {
	s.Require().NoError(s.registry.Chats.Register(s.ctx, models.ChatRef{ChatID: -1}))
	s.Require().NoError(s.registry.Members.Register(s.ctx, models.MemberIdentity{AccountID: 7}))
	s.Require().NoError(s.registry.Exclusions.Upsert(s.ctx, models.Exclusion{
		ChatID: -1, AccountID: 7, State: models.ExclusionApplied,
	}))
	s.Require().NoError(s.registry.Seen.MarkSeen(s.ctx, -1, 7))

	s.Require().NoError(s.registry.Chats.Remove(s.ctx, -1))

	_, err := s.registry.Exclusions.Get(s.ctx, -1, 7)
	s.ErrorIs(err, sentinel.ErrNotFound)
	seen, err := s.registry.Seen.SeenIn(s.ctx, -1, 10)
	s.Require().NoError(err)
	s.Empty(seen)
}

func (s *MemoryStoreSuite) TestRemoveMemberCascades() {
	s.Require().NoError(s.registry.Chats.Register(s.ctx, models.ChatRef{ChatID: -1}))
	s.Require().NoError(s.registry.Members.Register(s.ctx, models.MemberIdentity{AccountID: 7}))
	s.Require().NoError(s.registry.Exclusions.Upsert(s.ctx, models.Exclusion{
		ChatID: -1, AccountID: 7, State: models.ExclusionPending,
	}))

	s.Require().NoError(s.registry.Members.Remove(s.ctx, 7))

	exists, err := s.registry.Members.Exists(s.ctx, 7)
	s.Require().NoError(err)
	s.False(exists)
	_, err = s.registry.Exclusions.Get(s.ctx, -1, 7)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestResetFailed() {
	s.Require().NoError(s.registry.Exclusions.Upsert(s.ctx, models.Exclusion{
		ChatID: -1, AccountID: 1, State: models.ExclusionFailed, Reason: models.ReasonPermissionDenied,
	}))
	s.Require().NoError(s.registry.Exclusions.Upsert(s.ctx, models.Exclusion{
		ChatID: -1, AccountID: 2, State: models.ExclusionFailed, Reason: models.ReasonTransient,
	}))
	s.Require().NoError(s.registry.Exclusions.Upsert(s.ctx, models.Exclusion{
		ChatID: -1, AccountID: 3, State: models.ExclusionApplied,
	}))

	reset, err := s.registry.Exclusions.ResetFailed(s.ctx, models.ReasonPermissionDenied)
	s.Require().NoError(err)
	s.Equal(1, reset)

	pending, err := s.registry.Exclusions.ListByState(s.ctx, models.ExclusionPending)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(int64(1), pending[0].AccountID)
	s.Empty(pending[0].Reason)

	// Unfiltered reset picks up the remaining transient failure.
	reset, err = s.registry.Exclusions.ResetFailed(s.ctx, "")
	s.Require().NoError(err)
	s.Equal(1, reset)
}

func (s *MemoryStoreSuite) TestSeenOrderAndLimit() {
	for _, id := range []int64{10, 20, 30} {
		s.Require().NoError(s.registry.Seen.MarkSeen(s.ctx, -1, id))
	}
	// Re-marking bumps recency.
	s.Require().NoError(s.registry.Seen.MarkSeen(s.ctx, -1, 10))

	seen, err := s.registry.Seen.SeenIn(s.ctx, -1, 2)
	s.Require().NoError(err)
	s.Require().Len(seen, 2)
	s.Equal(int64(10), seen[0])
}
