package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/agentwalk/fipa"
	"github.com/dshills/agentwalk/graph"
)

// Agent turns a ChatModel into a graph node handler.
//
// On each execution it rebuilds the model conversation from the
// workflow state's message history, asks the model for the next turn,
// stores the raw reply in a state variable, and appends the reply to
// the history as a FIPA inform envelope addressed to Peer. Failures
// surface as handler errors, so the node's retry and timeout policy
// governs transient model trouble.
type Agent struct {
	// Name is the sender identity on produced envelopes. Required.
	Name string

	// Peer is the receiver of produced envelopes. Required.
	Peer string

	// Model produces replies. Required.
	Model ChatModel

	// System is an optional system prompt prepended to every call.
	System string

	// InputVar optionally names a state variable whose value is
	// appended as the final user turn. When empty, the message history
	// alone drives the model.
	InputVar string

	// OutputVar optionally names a state variable that receives the
	// raw reply text.
	OutputVar string
}

// Validate checks the agent's wiring.
func (a *Agent) Validate() error {
	if a.Name == "" {
		return errors.New("agent name is required")
	}
	if a.Peer == "" {
		return errors.New("agent peer is required")
	}
	if a.Model == nil {
		return errors.New("agent model is required")
	}
	return nil
}

// Execute implements graph.Handler.
func (a *Agent) Execute(ctx context.Context, state *graph.WorkflowState) error {
	if err := a.Validate(); err != nil {
		return err
	}

	messages := a.buildConversation(state)
	reply, err := a.Model.Chat(ctx, messages)
	if err != nil {
		return fmt.Errorf("agent %s: %w", a.Name, err)
	}

	if a.OutputVar != "" {
		state.Set(a.OutputVar, reply)
	}

	opts := []fipa.Option{}
	if last, ok := state.LastMessage(); ok {
		opts = append(opts, fipa.WithInReplyTo(last.MessageID))
	}
	msg, err := fipa.New(fipa.Inform, a.Name, a.Peer, reply, state.ConversationID, opts...)
	if err != nil {
		return fmt.Errorf("agent %s: build envelope: %w", a.Name, err)
	}
	return state.AddMessage(msg)
}

// buildConversation maps the state's envelope history onto chat turns.
// Envelopes this agent sent become assistant turns; everything else is
// a user turn. Non-string content is rendered with %v.
func (a *Agent) buildConversation(state *graph.WorkflowState) []ChatMessage {
	var messages []ChatMessage
	if a.System != "" {
		messages = append(messages, ChatMessage{Role: RoleSystem, Content: a.System})
	}
	for _, env := range state.Messages {
		role := RoleUser
		if env.Sender == a.Name {
			role = RoleAssistant
		}
		content, ok := env.Content.(string)
		if !ok {
			content = fmt.Sprintf("%v", env.Content)
		}
		messages = append(messages, ChatMessage{Role: role, Content: content})
	}
	if a.InputVar != "" {
		if v, ok := state.Get(a.InputVar); ok {
			messages = append(messages, ChatMessage{Role: RoleUser, Content: fmt.Sprintf("%v", v)})
		}
	}
	return messages
}

// Node builds a graph node running this agent under the given
// execution policy.
func (a *Agent) Node(id string, opts ...NodeOption) *graph.Node {
	node := &graph.Node{
		ID:         id,
		Handler:    a,
		MaxRetries: graph.UseDefaultRetries,
	}
	for _, opt := range opts {
		opt(node)
	}
	return node
}

// NodeOption customizes the execution policy of an agent node.
type NodeOption func(*graph.Node)

// WithTimeout bounds each execution attempt.
func WithTimeout(d time.Duration) NodeOption {
	return func(n *graph.Node) { n.Timeout = d }
}

// WithMaxRetries sets the retry count after the initial attempt.
func WithMaxRetries(n int) NodeOption {
	return func(node *graph.Node) { node.MaxRetries = n }
}

// WithBackoff sets the retry backoff curve.
func WithBackoff(p graph.BackoffPolicy) NodeOption {
	return func(n *graph.Node) { n.Backoff = p }
}
