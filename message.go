package forkline

import "go.jetify.com/typeid"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a conversation's message channel. The ID gives
// each entry a stable identity so that replayed updates are idempotent.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewMessageID returns a new prefixed message ID.
func NewMessageID() string {
	id, err := typeid.WithPrefix("msg")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// UserMessage returns a user message with a fresh ID.
func UserMessage(content string) Message {
	return Message{ID: NewMessageID(), Role: RoleUser, Content: content}
}

// AssistantMessage returns an assistant message with a fresh ID.
func AssistantMessage(content string) Message {
	return Message{ID: NewMessageID(), Role: RoleAssistant, Content: content}
}

// LastUserMessage returns the most recent user message in the sequence.
func LastUserMessage(msgs []Message) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i], true
		}
	}
	return Message{}, false
}

// LastAssistantMessage returns the most recent assistant message.
func LastAssistantMessage(msgs []Message) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleAssistant {
			return msgs[i], true
		}
	}
	return Message{}, false
}
