package telegram

import "encoding/json"

// Wire types for the subset of the Bot API the defender uses.

// Update is one event delivered by long polling or the webhook.
type Update struct {
	UpdateID   int64              `json:"update_id"`
	Message    *Message           `json:"message,omitempty"`
	ChatMember *ChatMemberUpdated `json:"chat_member,omitempty"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID      int64   `json:"message_id"`
	From           *User   `json:"from,omitempty"`
	Chat           Chat    `json:"chat"`
	Text           string  `json:"text,omitempty"`
	NewChatMembers []User  `json:"new_chat_members,omitempty"`
	LeftChatMember *User   `json:"left_chat_member,omitempty"`
	Date           int64   `json:"date"`
}

// Chat identifies a conversation. Group and supergroup IDs are
// negative; private chat IDs equal the peer's user ID.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

// User is a Telegram account.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// ChatMemberUpdated reports a membership transition in a chat.
type ChatMemberUpdated struct {
	Chat          Chat       `json:"chat"`
	From          User       `json:"from"`
	Date          int64      `json:"date"`
	OldChatMember ChatMember `json:"old_chat_member"`
	NewChatMember ChatMember `json:"new_chat_member"`
}

// ChatMember is an account's standing in a chat.
type ChatMember struct {
	User   User   `json:"user"`
	Status string `json:"status"`
}

// Membership statuses of interest.
const (
	StatusMember = "member"
	StatusLeft   = "left"
	StatusKicked = "kicked"
)

// Joined reports whether the transition represents an account entering
// the chat.
func (u *ChatMemberUpdated) Joined() bool {
	wasIn := memberish(u.OldChatMember.Status)
	isIn := memberish(u.NewChatMember.Status)
	return !wasIn && isIn
}

func memberish(status string) bool {
	switch status {
	case StatusMember, "administrator", "creator", "restricted":
		return true
	}
	return false
}

// apiResponse is the Bot API envelope around every method result.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}
