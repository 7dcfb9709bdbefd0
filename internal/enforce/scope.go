package enforce

import "fmt"

type scopeKind int

const (
	scopeEverything scopeKind = iota
	scopeMember
	scopeChat
)

// Scope selects which (chat, member) pairs an enforcement run covers.
// The zero value is not a valid scope; use the constructors.
type Scope struct {
	kind      scopeKind
	accountID int64
	chatID    int64
}

// Everything covers all registered members across all registered chats.
func Everything() Scope {
	return Scope{kind: scopeEverything}
}

// ForMember covers one member across all registered chats.
func ForMember(accountID int64) Scope {
	return Scope{kind: scopeMember, accountID: accountID}
}

// ForChat covers all registered members in one chat.
func ForChat(chatID int64) Scope {
	return Scope{kind: scopeChat, chatID: chatID}
}

func (s Scope) String() string {
	switch s.kind {
	case scopeMember:
		return fmt.Sprintf("member(%d)", s.accountID)
	case scopeChat:
		return fmt.Sprintf("chat(%d)", s.chatID)
	default:
		return "everything"
	}
}
