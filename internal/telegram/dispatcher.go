package telegram

import (
	"context"
	"log/slog"
	"time"

	"github.com/Rooyande/eclis-ninja/internal/command"
	"github.com/Rooyande/eclis-ninja/internal/guard"
	"github.com/Rooyande/eclis-ninja/internal/platform/metrics"
)

// Commander handles administrator command messages.
type Commander interface {
	Dispatch(ctx context.Context, in command.Incoming) command.Reply
}

// JoinSink consumes membership-join events.
type JoinSink interface {
	OnJoin(ctx context.Context, join guard.Join)
}

// Dispatcher routes incoming updates: command messages to the façade,
// membership events to the join guard. It is the single UpdateHandler
// behind both the poller and the webhook.
type Dispatcher struct {
	client   *Client
	commands Commander
	joins    JoinSink
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewDispatcher builds a Dispatcher. joins may be nil when the guard is
// disabled.
func NewDispatcher(client *Client, commands Commander, joins JoinSink,
	m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client:   client,
		commands: commands,
		joins:    joins,
		metrics:  m,
		logger:   logger,
	}
}

// HandleUpdate routes one update.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update Update) {
	switch {
	case update.ChatMember != nil:
		d.metrics.ObserveUpdate("chat_member")
		if d.joins != nil && update.ChatMember.Joined() {
			member := update.ChatMember.NewChatMember.User
			d.joins.OnJoin(ctx, guard.Join{
				ChatID:    update.ChatMember.Chat.ID,
				AccountID: member.ID,
				Handle:    member.Username,
				At:        time.Unix(update.ChatMember.Date, 0),
			})
		}
	case update.Message != nil:
		d.metrics.ObserveUpdate("message")
		d.handleMessage(ctx, update.Message)
	default:
		d.metrics.ObserveUpdate("other")
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *Message) {
	// Service messages about new members double as join events in chats
	// where chat_member updates are not delivered.
	if d.joins != nil && len(msg.NewChatMembers) > 0 {
		for _, member := range msg.NewChatMembers {
			if member.IsBot {
				continue
			}
			d.joins.OnJoin(ctx, guard.Join{
				ChatID:    msg.Chat.ID,
				AccountID: member.ID,
				Handle:    member.Username,
				At:        time.Unix(msg.Date, 0),
			})
		}
		return
	}

	if msg.From == nil || msg.Text == "" {
		return
	}

	reply := d.commands.Dispatch(ctx, command.Incoming{
		ChatID:       msg.Chat.ID,
		ChatType:     msg.Chat.Type,
		SenderID:     msg.From.ID,
		SenderHandle: msg.From.Username,
		Text:         msg.Text,
	})
	if reply.Text == "" {
		return
	}
	if err := d.client.SendMessage(ctx, reply.ChatID, reply.Text); err != nil {
		d.logger.WarnContext(ctx, "reply send failed", "chat_id", reply.ChatID, "error", err)
	}
}
