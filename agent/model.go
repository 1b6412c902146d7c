// Package agent builds workflow nodes around conversational language
// models. A ChatModel abstracts the provider SDK; an Agent wraps one
// into a graph handler that reads the conversation from workflow state
// and appends its reply as a FIPA inform envelope.
package agent

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of a model conversation.
type ChatMessage struct {
	Role    Role
	Content string
}

// ChatModel is the provider-neutral interface to a conversational
// model. Implementations live in the agent/anthropic, agent/openai,
// and agent/google subpackages; MockChatModel serves tests.
//
// Chat must respect context cancellation: the workflow runner derives
// a deadline from the node's timeout and relies on the call returning
// promptly once the context is done.
type ChatModel interface {
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
}
