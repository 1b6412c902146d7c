// Package supervisor is the embedding facade for the workflow engine.
// It owns the shared infrastructure (checkpoint store, policy
// enforcement point, event emitter, metrics) and exposes the small
// surface callers need: run a graph, inspect checkpoint history, and
// roll a conversation back to an earlier checkpoint.
package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/agentwalk/graph"
	"github.com/dshills/agentwalk/graph/emit"
	"github.com/dshills/agentwalk/policy"
	"github.com/dshills/agentwalk/store"
)

// Config wires a Supervisor. Store and Enforcer are required; the
// policy decision is never optional, so callers that want an open
// system must say so explicitly with policy.Static{Allow: true}.
type Config struct {
	// Store persists checkpoints. Required.
	Store store.Store[*graph.WorkflowState]

	// Enforcer gates every transition. Required.
	Enforcer policy.Enforcer

	// Emitter receives execution events. Nil disables emission.
	Emitter emit.Emitter

	// Metrics records execution metrics. Nil disables recording.
	Metrics *graph.Metrics

	// Runner carries the execution defaults (step budget, default
	// timeout, retries, backoff).
	Runner graph.RunnerConfig
}

// Supervisor coordinates workflow runs over shared infrastructure. It
// is safe for concurrent use; each run owns its own state.
type Supervisor struct {
	cfg Config
}

// New validates the configuration and creates a Supervisor.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Store == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if cfg.Enforcer == nil {
		return nil, errors.New("policy enforcer is required")
	}
	return &Supervisor{cfg: cfg}, nil
}

// Run executes the graph for the given conversation from a fresh
// state, seeded with the given initial variables.
func (s *Supervisor) Run(ctx context.Context, g *graph.Graph, conversationID string, vars map[string]any) (graph.Result, error) {
	state := graph.NewWorkflowState(conversationID)
	for k, v := range vars {
		state.Set(k, v)
	}
	return s.RunState(ctx, g, state)
}

// RunState executes the graph against a caller-provided state, which
// may have been restored from a checkpoint via Rollback.
func (s *Supervisor) RunState(ctx context.Context, g *graph.Graph, state *graph.WorkflowState) (graph.Result, error) {
	runner, err := graph.NewRunner(g, s.cfg.Store, s.cfg.Enforcer, s.cfg.Emitter, s.cfg.Metrics, s.cfg.Runner)
	if err != nil {
		return graph.Result{}, fmt.Errorf("build runner: %w", err)
	}
	return runner.Run(ctx, state), nil
}

// ListCheckpoints returns the checkpoint metadata for a conversation
// in sequence order. An unknown conversation yields an empty list.
func (s *Supervisor) ListCheckpoints(ctx context.Context, conversationID string) ([]store.Checkpoint, error) {
	return s.cfg.Store.List(ctx, conversationID)
}

// Rollback materializes the state captured at the given checkpoint
// sequence (seq <= 0 selects the latest). The checkpoint history is
// untouched: rollback is a read, repeatable any number of times, and
// a subsequent RunState continues appending new checkpoints after the
// existing ones.
func (s *Supervisor) Rollback(ctx context.Context, conversationID string, seq int) (*graph.WorkflowState, error) {
	state, err := s.cfg.Store.Rollback(ctx, conversationID, seq)
	if err != nil {
		return nil, err
	}
	return state, nil
}
