package telegram

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/Rooyande/eclis-ninja/internal/command"
	"github.com/Rooyande/eclis-ninja/internal/guard"
)

type fakeCommander struct {
	incoming []command.Incoming
	reply    command.Reply
}

func (f *fakeCommander) Dispatch(ctx context.Context, in command.Incoming) command.Reply {
	f.incoming = append(f.incoming, in)
	return f.reply
}

type fakeJoinSink struct {
	joins []guard.Join
}

func (f *fakeJoinSink) OnJoin(ctx context.Context, join guard.Join) {
	f.joins = append(f.joins, join)
}

type DispatcherSuite struct {
	suite.Suite
	api        *fakeBotAPI
	server     *httptest.Server
	commander  *fakeCommander
	joins      *fakeJoinSink
	dispatcher *Dispatcher
	ctx        context.Context
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.api = newFakeBotAPI()
	s.server = httptest.NewServer(s.api.handler(s.T()))
	client := NewClient("test-token", slog.Default(), WithBaseURL(s.server.URL))
	s.commander = &fakeCommander{}
	s.joins = &fakeJoinSink{}
	s.dispatcher = NewDispatcher(client, s.commander, s.joins, nil, slog.Default())
	s.ctx = context.Background()
}

func (s *DispatcherSuite) TearDownTest() {
	s.server.Close()
}

func (s *DispatcherSuite) TestCommandMessageGetsReply() {
	s.commander.reply = command.Reply{ChatID: 1000, Text: "done"}

	s.dispatcher.HandleUpdate(s.ctx, Update{
		UpdateID: 1,
		Message: &Message{
			Chat: Chat{ID: 1000, Type: "private"},
			From: &User{ID: 1000, Username: "boss"},
			Text: "/list_chats",
		},
	})

	s.Require().Len(s.commander.incoming, 1)
	in := s.commander.incoming[0]
	s.Equal(int64(1000), in.SenderID)
	s.Equal("private", in.ChatType)
	s.Equal("/list_chats", in.Text)

	s.Require().Len(s.api.bodies["sendMessage"], 1)
	s.Equal("done", s.api.bodies["sendMessage"][0]["text"])
}

func (s *DispatcherSuite) TestEmptyReplyIsNotSent() {
	s.dispatcher.HandleUpdate(s.ctx, Update{
		UpdateID: 1,
		Message: &Message{
			Chat: Chat{ID: -100, Type: "supergroup"},
			From: &User{ID: 55},
			Text: "/ban 7",
		},
	})
	s.Empty(s.api.bodies["sendMessage"])
}

func (s *DispatcherSuite) TestChatMemberJoinFeedsGuard() {
	s.dispatcher.HandleUpdate(s.ctx, Update{
		UpdateID: 2,
		ChatMember: &ChatMemberUpdated{
			Chat:          Chat{ID: -100, Type: "supergroup"},
			Date:          1700000000,
			OldChatMember: ChatMember{Status: StatusLeft},
			NewChatMember: ChatMember{User: User{ID: 7, Username: "ghost"}, Status: StatusMember},
		},
	})

	s.Require().Len(s.joins.joins, 1)
	s.Equal(int64(-100), s.joins.joins[0].ChatID)
	s.Equal(int64(7), s.joins.joins[0].AccountID)
	s.Equal("ghost", s.joins.joins[0].Handle)
}

func (s *DispatcherSuite) TestLeaveEventIgnored() {
	s.dispatcher.HandleUpdate(s.ctx, Update{
		UpdateID: 3,
		ChatMember: &ChatMemberUpdated{
			Chat:          Chat{ID: -100},
			OldChatMember: ChatMember{Status: StatusMember},
			NewChatMember: ChatMember{Status: StatusLeft},
		},
	})
	s.Empty(s.joins.joins)
}

func (s *DispatcherSuite) TestServiceMessageJoins() {
	s.dispatcher.HandleUpdate(s.ctx, Update{
		UpdateID: 4,
		Message: &Message{
			Chat: Chat{ID: -100, Type: "supergroup"},
			NewChatMembers: []User{
				{ID: 7, Username: "ghost"},
				{ID: 8, IsBot: true},
				{ID: 9},
			},
		},
	})

	s.Require().Len(s.joins.joins, 2, "bots are not guarded")
	s.Equal(int64(7), s.joins.joins[0].AccountID)
	s.Equal(int64(9), s.joins.joins[1].AccountID)
	s.Empty(s.commander.incoming)
}
