//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/Rooyande/eclis-ninja/internal/registry/models"
	"github.com/Rooyande/eclis-ninja/internal/registry/store"
	"github.com/Rooyande/eclis-ninja/pkg/platform/sentinel"
	"github.com/Rooyande/eclis-ninja/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	registry store.Registry
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(store.InitSchema(context.Background(), s.postgres.DB))
	s.registry = store.NewPostgresRegistry(s.postgres.DB)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.postgres != nil {
		_ = s.postgres.DB.Close()
		_ = s.postgres.Container.Terminate(context.Background())
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"exclusions", "seen", "audit_log", "members", "chats")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestChatRegisterIdempotent() {
	ctx := context.Background()
	chat := models.ChatRef{ChatID: -100200300, Label: "main"}

	s.Require().NoError(s.registry.Chats.Register(ctx, chat))
	s.Require().NoError(s.registry.Chats.Register(ctx, chat))

	chats, err := s.registry.Chats.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(chats, 1)
	s.Equal("main", chats[0].Label)
	s.False(chats[0].RegisteredAt.IsZero())
}

func (s *PostgresStoreSuite) TestMemberHandleRefresh() {
	ctx := context.Background()

	s.Require().NoError(s.registry.Members.Register(ctx,
		models.MemberIdentity{AccountID: 42, LastKnownHandle: "alice"}))
	s.Require().NoError(s.registry.Members.Register(ctx,
		models.MemberIdentity{AccountID: 42, LastKnownHandle: "alice2"}))
	s.Require().NoError(s.registry.Members.Register(ctx,
		models.MemberIdentity{AccountID: 42}))

	members, err := s.registry.Members.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(members, 1)
	s.Equal("alice2", members[0].LastKnownHandle)
}

func (s *PostgresStoreSuite) TestExclusionUpsertAndGet() {
	ctx := context.Background()
	s.Require().NoError(s.registry.Chats.Register(ctx, models.ChatRef{ChatID: -1}))
	s.Require().NoError(s.registry.Members.Register(ctx, models.MemberIdentity{AccountID: 7}))

	_, err := s.registry.Exclusions.Get(ctx, -1, 7)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.registry.Exclusions.Upsert(ctx, models.Exclusion{
		ChatID: -1, AccountID: 7, State: models.ExclusionPending,
	}))
	s.Require().NoError(s.registry.Exclusions.Upsert(ctx, models.Exclusion{
		ChatID: -1, AccountID: 7, State: models.ExclusionFailed, Reason: models.ReasonTransient,
	}))

	exclusion, err := s.registry.Exclusions.Get(ctx, -1, 7)
	s.Require().NoError(err)
	s.Equal(models.ExclusionFailed, exclusion.State)
	s.Equal(models.ReasonTransient, exclusion.Reason)
	s.True(exclusion.Retryable())
}

func (s *PostgresStoreSuite) TestRemoveChatCascadesExclusions() {
	ctx := context.Background()
	s.Require().NoError(s.registry.Chats.Register(ctx, models.ChatRef{ChatID: -1}))
	s.Require().NoError(s.registry.Members.Register(ctx, models.MemberIdentity{AccountID: 7}))
	s.Require().NoError(s.registry.Exclusions.Upsert(ctx, models.Exclusion{
		ChatID: -1, AccountID: 7, State: models.ExclusionApplied,
	}))
	s.Require().NoError(s.registry.Seen.MarkSeen(ctx, -1, 7))

	s.Require().NoError(s.registry.Chats.Remove(ctx, -1))

	_, err := s.registry.Exclusions.Get(ctx, -1, 7)
	s.ErrorIs(err, sentinel.ErrNotFound)
	seen, err := s.registry.Seen.SeenIn(ctx, -1, 10)
	s.Require().NoError(err)
	s.Empty(seen)
}

func (s *PostgresStoreSuite) TestResetFailedByReason() {
	ctx := context.Background()
	s.Require().NoError(s.registry.Chats.Register(ctx, models.ChatRef{ChatID: -1}))
	for _, m := range []models.MemberIdentity{{AccountID: 1}, {AccountID: 2}} {
		s.Require().NoError(s.registry.Members.Register(ctx, m))
	}
	s.Require().NoError(s.registry.Exclusions.Upsert(ctx, models.Exclusion{
		ChatID: -1, AccountID: 1, State: models.ExclusionFailed, Reason: models.ReasonPermissionDenied,
	}))
	s.Require().NoError(s.registry.Exclusions.Upsert(ctx, models.Exclusion{
		ChatID: -1, AccountID: 2, State: models.ExclusionFailed, Reason: models.ReasonTransient,
	}))

	reset, err := s.registry.Exclusions.ResetFailed(ctx, models.ReasonPermissionDenied)
	s.Require().NoError(err)
	s.Equal(1, reset)

	pending, err := s.registry.Exclusions.ListByState(ctx, models.ExclusionPending)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(int64(1), pending[0].AccountID)
}
