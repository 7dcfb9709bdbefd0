// Package command maps administrator commands onto the registry, the
// resolver, and the enforcement engine. The façade stays thin: parse,
// authorize, delegate, format a plain-text reply.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Rooyande/eclis-ninja/internal/audit"
	"github.com/Rooyande/eclis-ninja/internal/enforce"
	"github.com/Rooyande/eclis-ninja/internal/identity"
	"github.com/Rooyande/eclis-ninja/internal/platform/metrics"
	"github.com/Rooyande/eclis-ninja/internal/registry/models"
	"github.com/Rooyande/eclis-ninja/internal/registry/store"
	dErrors "github.com/Rooyande/eclis-ninja/pkg/domainerrors"
)

// Incoming is one command message as delivered by the transport.
type Incoming struct {
	ChatID       int64
	ChatType     string
	SenderID     int64
	SenderHandle string
	Text         string
}

// Reply is the façade's answer. An empty Text means nothing to send.
type Reply struct {
	ChatID int64
	Text   string
}

// Engine runs enforcement sweeps on behalf of commands.
type Engine interface {
	Run(ctx context.Context, scope enforce.Scope) (*enforce.Report, error)
}

// Resolver normalizes member references.
type Resolver interface {
	Resolve(ctx context.Context, reference string) (models.MemberIdentity, error)
}

// Facade dispatches administrator commands.
type Facade struct {
	registry store.Registry
	resolver Resolver
	engine   Engine
	auditLog audit.Store
	recorder *audit.Recorder
	metrics  *metrics.Metrics
	admins   map[int64]struct{}
	logger   *slog.Logger
}

// New builds a Facade. adminIDs is the allow-list; auditLog may be nil
// to disable the /report audit tail.
func New(registry store.Registry, resolver Resolver, engine Engine,
	auditLog audit.Store, recorder *audit.Recorder, m *metrics.Metrics,
	adminIDs []int64, logger *slog.Logger) *Facade {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Facade{
		registry: registry,
		resolver: resolver,
		engine:   engine,
		auditLog: auditLog,
		recorder: recorder,
		metrics:  m,
		admins:   admins,
		logger:   logger,
	}
}

// Dispatch handles one command message. Non-commands and commands in
// group chats are ignored; unauthorized senders get a rejection with no
// side effects. A command either fully succeeds with a confirmation or
// fully fails with a stated reason.
func (f *Facade) Dispatch(ctx context.Context, in Incoming) Reply {
	name, args := parse(in.Text)
	if name == "" {
		return Reply{}
	}
	if in.ChatType != "private" {
		// Commands are only honored in direct chats with the bot.
		return Reply{}
	}
	if _, ok := f.admins[in.SenderID]; !ok {
		f.logger.WarnContext(ctx, "command from non-admin",
			"sender_id", in.SenderID, "command", name)
		f.metrics.ObserveCommand(name, "unauthorized")
		return Reply{ChatID: in.ChatID, Text: "You are not authorized to use this bot."}
	}

	text, err := f.run(ctx, name, args, in)
	if err != nil {
		f.logger.WarnContext(ctx, "command failed",
			"sender_id", in.SenderID, "command", name, "error", err)
		f.metrics.ObserveCommand(name, "error")
		return Reply{ChatID: in.ChatID, Text: dErrors.UserMessage(err)}
	}
	f.metrics.ObserveCommand(name, "ok")
	return Reply{ChatID: in.ChatID, Text: text}
}

func (f *Facade) run(ctx context.Context, name string, args []string, in Incoming) (string, error) {
	switch name {
	case "start", "help":
		return helpText, nil
	case "add_chat":
		return f.addChat(ctx, args)
	case "remove_chat":
		return f.removeChat(ctx, args)
	case "add_member":
		return f.addMember(ctx, args, in)
	case "remove_member":
		return f.removeMember(ctx, args)
	case "ban":
		return f.ban(ctx, args, in)
	case "list_chats":
		return f.listChats(ctx)
	case "list_members":
		return f.listMembers(ctx)
	case "retry_failed":
		return f.retryFailed(ctx)
	case "report":
		return f.report(ctx)
	default:
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown command /%s, see /help", name)
	}
}

func (f *Facade) addChat(ctx context.Context, args []string) (string, error) {
	chatID, err := parseChatID(args)
	if err != nil {
		return "", err
	}
	var label string
	if len(args) > 1 {
		label = strings.Join(args[1:], " ")
	}
	if err := f.registry.Chats.Register(ctx, models.ChatRef{ChatID: chatID, Label: label}); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not register chat")
	}
	f.recorder.Record(ctx, audit.Entry{ChatID: chatID, Action: audit.ActionChatAdded, Detail: label})

	// Bring the new chat up to the registry's ban state right away.
	report, err := f.engine.Run(ctx, enforce.ForChat(chatID))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "chat registered but sweep failed")
	}
	return fmt.Sprintf("Chat %d registered. Sweep: %s", chatID, summarize(report)), nil
}

func (f *Facade) removeChat(ctx context.Context, args []string) (string, error) {
	chatID, err := parseChatID(args)
	if err != nil {
		return "", err
	}
	if err := f.registry.Chats.Remove(ctx, chatID); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not remove chat")
	}
	return fmt.Sprintf("Chat %d removed from the registry.", chatID), nil
}

func (f *Facade) addMember(ctx context.Context, args []string, in Incoming) (string, error) {
	member, err := f.resolveMember(ctx, args)
	if err != nil {
		return "", err
	}
	if err := f.registry.Members.Register(ctx, member); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not register member")
	}
	f.recorder.Record(ctx, audit.Entry{
		AccountID: member.AccountID,
		Handle:    member.LastKnownHandle,
		Action:    audit.ActionMemberAdded,
		Detail:    fmt.Sprintf("by admin %d", in.SenderID),
	})
	return fmt.Sprintf("Member %s registered.", describeMember(member)), nil
}

func (f *Facade) removeMember(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", dErrors.New(dErrors.CodeBadRequest, "usage: /remove_member <id>")
	}
	accountID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || accountID <= 0 {
		return "", dErrors.New(dErrors.CodeBadRequest, "member removal takes the numeric account ID")
	}
	if err := f.registry.Members.Remove(ctx, accountID); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not remove member")
	}
	return fmt.Sprintf("Member %d removed from the registry. Existing platform bans are left in place.", accountID), nil
}

func (f *Facade) ban(ctx context.Context, args []string, in Incoming) (string, error) {
	member, err := f.resolveMember(ctx, args)
	if err != nil {
		return "", err
	}
	if err := f.registry.Members.Register(ctx, member); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not register member")
	}
	f.recorder.Record(ctx, audit.Entry{
		AccountID: member.AccountID,
		Handle:    member.LastKnownHandle,
		Action:    audit.ActionMemberAdded,
		Detail:    fmt.Sprintf("banned by admin %d", in.SenderID),
	})

	report, err := f.engine.Run(ctx, enforce.ForMember(member.AccountID))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "member registered but enforcement failed")
	}
	return fmt.Sprintf("Member %s banned. %s", describeMember(member), summarize(report)), nil
}

func (f *Facade) listChats(ctx context.Context) (string, error) {
	chats, err := f.registry.Chats.List(ctx)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not list chats")
	}
	if len(chats) == 0 {
		return "No chats registered.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Registered chats (%d):\n", len(chats))
	for _, chat := range chats {
		if chat.Label != "" {
			fmt.Fprintf(&b, "  %d — %s\n", chat.ChatID, chat.Label)
		} else {
			fmt.Fprintf(&b, "  %d\n", chat.ChatID)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (f *Facade) listMembers(ctx context.Context) (string, error) {
	members, err := f.registry.Members.List(ctx)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not list members")
	}
	if len(members) == 0 {
		return "No members registered.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Registered members (%d):\n", len(members))
	for _, member := range members {
		fmt.Fprintf(&b, "  %s\n", describeMember(member))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (f *Facade) retryFailed(ctx context.Context) (string, error) {
	reset, err := f.registry.Exclusions.ResetFailed(ctx, models.ReasonPermissionDenied)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not reset failed pairs")
	}
	report, err := f.engine.Run(ctx, enforce.Everything())
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "reset done but sweep failed")
	}
	return fmt.Sprintf("Reset %d permission-denied pair(s). Sweep: %s", reset, summarize(report)), nil
}

func (f *Facade) report(ctx context.Context) (string, error) {
	chats, err := f.registry.Chats.List(ctx)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not read registry")
	}
	members, err := f.registry.Members.List(ctx)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not read registry")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Chats: %d, members: %d\n", len(chats), len(members))

	for _, state := range []models.ExclusionState{
		models.ExclusionApplied,
		models.ExclusionPending,
		models.ExclusionFailed,
		models.ExclusionNotApplicable,
	} {
		records, err := f.registry.Exclusions.ListByState(ctx, state)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not read exclusion state")
		}
		fmt.Fprintf(&b, "Exclusions %s: %d\n", state, len(records))
	}

	if f.auditLog != nil {
		entries, err := f.auditLog.Recent(ctx, 5)
		if err == nil && len(entries) > 0 {
			b.WriteString("Recent activity:\n")
			for _, entry := range entries {
				fmt.Fprintf(&b, "  %s chat=%d account=%d %s\n",
					entry.Action, entry.ChatID, entry.AccountID, entry.Detail)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// resolveMember maps a single <id|@handle> argument through the
// resolver, translating resolver errors into stated reasons.
func (f *Facade) resolveMember(ctx context.Context, args []string) (models.MemberIdentity, error) {
	if len(args) != 1 {
		return models.MemberIdentity{}, dErrors.New(dErrors.CodeBadRequest, "expected one member reference: a numeric ID or @handle")
	}
	member, err := f.resolver.Resolve(ctx, args[0])
	switch {
	case errors.Is(err, identity.ErrInvalidFormat):
		return models.MemberIdentity{}, dErrors.Newf(dErrors.CodeBadRequest, "%q is not a numeric ID or @handle", args[0])
	case errors.Is(err, identity.ErrUnresolvable):
		return models.MemberIdentity{}, dErrors.Newf(dErrors.CodeNotFound, "could not resolve %s to an account", args[0])
	case err != nil:
		return models.MemberIdentity{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "member lookup is unavailable, try again")
	}
	return member, nil
}

func parseChatID(args []string) (int64, error) {
	if len(args) < 1 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "expected a numeric chat ID")
	}
	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || chatID == 0 {
		return 0, dErrors.Newf(dErrors.CodeBadRequest, "%q is not a numeric chat ID", args[0])
	}
	return chatID, nil
}

// parse splits a message into a command name and its arguments. The
// leading slash and an optional @botname suffix are stripped; a message
// that is not a command parses to an empty name.
func parse(text string) (string, []string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), fields[1:]
}

func describeMember(member models.MemberIdentity) string {
	if member.LastKnownHandle != "" {
		return fmt.Sprintf("%d (@%s)", member.AccountID, member.LastKnownHandle)
	}
	return strconv.FormatInt(member.AccountID, 10)
}

func summarize(report *enforce.Report) string {
	return fmt.Sprintf("%d applied, %d skipped, %d permission denied, %d not applicable, %d transient",
		report.Applied, report.Skipped, report.PermissionDenied, report.NotApplicable, report.Transient)
}

const helpText = `Defender commands:
/add_chat <chat_id> [label] — register a chat and sweep it
/remove_chat <chat_id> — unregister a chat
/add_member <id|@handle> — register a member without enforcing
/ban <id|@handle> — register a member and enforce everywhere
/remove_member <id> — unregister a member (platform bans stay)
/list_chats — registered chats
/list_members — registered members
/retry_failed — reset permission-denied pairs and sweep
/report — registry and exclusion-state counts
/help — this text`
