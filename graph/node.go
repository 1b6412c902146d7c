package graph

import (
	"context"
	"time"
)

// Handler is the opaque unit of work a node performs.
//
// The Runner invokes Execute with a scratch copy of the workflow state;
// mutations are committed only if Execute returns nil. A handler must
// honor the context it is given: the Runner derives a deadline from the
// node's declared timeout and never forcibly terminates in-flight work.
type Handler interface {
	Execute(ctx context.Context, state *WorkflowState) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, state *WorkflowState) error

// Execute implements Handler.
func (f HandlerFunc) Execute(ctx context.Context, state *WorkflowState) error {
	return f(ctx, state)
}

// Node is a unit of work in the workflow graph together with its
// execution policy: a declared timeout, a maximum retry count, and a
// backoff curve for the retries.
//
// Zero values defer to the RunnerConfig defaults.
type Node struct {
	// ID uniquely identifies the node within its graph.
	ID string

	// Handler performs the node's work. Required.
	Handler Handler

	// Timeout bounds a single execution attempt. 0 uses
	// RunnerConfig.DefaultNodeTimeout.
	Timeout time.Duration

	// MaxRetries is the number of retries after the initial attempt,
	// so a node executes at most MaxRetries+1 times. Negative uses
	// RunnerConfig.DefaultMaxRetries.
	MaxRetries int

	// Backoff shapes the delay between retries. Zero value uses
	// RunnerConfig.DefaultBackoff.
	Backoff BackoffPolicy

	// successors holds outgoing edges in declaration order. Managed by
	// Graph.Connect.
	successors []Successor
}

// Successors returns the node's outgoing edges in declaration order.
func (n *Node) Successors() []Successor {
	return n.successors
}
