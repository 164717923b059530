package domain

import "strings"

// ChatRole is the speaker of a conversation turn.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatTurn is one prior message of a conversation.
type ChatTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ParseChatRole maps external role names onto ChatRole.
// Model-side names such as "model" or "bot" count as the assistant.
func ParseChatRole(s string) (ChatRole, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "human":
		return RoleUser, true
	case "assistant", "model", "bot":
		return RoleAssistant, true
	}
	return "", false
}

// Answer is a generated reply and the documents it verifiably cites.
type Answer struct {
	Text       string
	References []DocumentRef
}
