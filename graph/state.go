package graph

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/agentwalk/fipa"
)

// WorkflowState is the evolving state of a single run: a variable
// mapping, the ordered trace of node ids already visited, the current
// node pointer, and the FIPA messages exchanged so far.
//
// A WorkflowState is owned exclusively by the Runner for the duration
// of a run and is deliberately not safe for concurrent use. It leaves
// the Runner only as an immutable snapshot handed to the checkpoint
// store. Independent runs each own their own instance.
type WorkflowState struct {
	// ConversationID scopes this run's state, checkpoints, and messages.
	ConversationID string `json:"conversation_id"`

	// Vars maps named variables to values. Values must be
	// JSON-serializable so snapshots round-trip.
	Vars map[string]any `json:"vars"`

	// Trace is the ordered sequence of node ids already visited.
	Trace []string `json:"trace"`

	// Current is the node being (or last) executed. Empty means the
	// run has not started.
	Current string `json:"current"`

	// Messages accumulates the inter-node envelopes produced during
	// the run.
	Messages []fipa.Message `json:"messages"`
}

// NewWorkflowState creates an empty state for the given conversation.
func NewWorkflowState(conversationID string) *WorkflowState {
	return &WorkflowState{
		ConversationID: conversationID,
		Vars:           make(map[string]any),
	}
}

// Get returns the value of a named variable.
func (s *WorkflowState) Get(key string) (any, bool) {
	v, ok := s.Vars[key]
	return v, ok
}

// Set stores a named variable.
func (s *WorkflowState) Set(key string, value any) {
	if s.Vars == nil {
		s.Vars = make(map[string]any)
	}
	s.Vars[key] = value
}

// AddMessage appends an envelope to the conversation history. The
// message's conversation id must match this state's conversation id;
// a mismatch fails with fipa.ErrConversationMismatch.
func (s *WorkflowState) AddMessage(msg fipa.Message) error {
	if err := msg.ValidateConversation(s.ConversationID); err != nil {
		return err
	}
	s.Messages = append(s.Messages, msg)
	return nil
}

// LastMessage returns the most recent envelope, if any.
func (s *WorkflowState) LastMessage() (fipa.Message, bool) {
	if len(s.Messages) == 0 {
		return fipa.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Snapshot returns an immutable deep copy of the state, suitable for
// handing to a checkpoint store or scratch execution.
func (s *WorkflowState) Snapshot() (*WorkflowState, error) {
	return deepCopy(s)
}

// Restore replaces this state wholesale with the given snapshot. The
// variable mapping, trace, messages, and current pointer are all
// overwritten, never merged. The snapshot itself is copied, so later
// mutation of s does not leak into it.
func (s *WorkflowState) Restore(snapshot *WorkflowState) error {
	copied, err := deepCopy(snapshot)
	if err != nil {
		return err
	}
	*s = *copied
	return nil
}

// deepCopy clones a state through a JSON round trip. JSON is also the
// checkpoint serialization format, so anything that survives deepCopy
// survives persistence.
func deepCopy(state *WorkflowState) (*WorkflowState, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	copied := &WorkflowState{}
	if err := json.Unmarshal(data, copied); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if copied.Vars == nil {
		copied.Vars = make(map[string]any)
	}
	return copied, nil
}
