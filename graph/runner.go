package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/agentwalk/graph/emit"
	"github.com/dshills/agentwalk/policy"
	"github.com/dshills/agentwalk/store"
)

// Status is the lifecycle state of a run:
// Pending -> Running -> {Completed, Failed, Denied, Aborted}.
type Status string

const (
	// StatusPending: graph and initial state validated, no node
	// executed yet.
	StatusPending Status = "pending"

	// StatusRunning: the run is traversing the graph.
	StatusRunning Status = "running"

	// StatusCompleted: a node with no matching successor finished and
	// declared no successors.
	StatusCompleted Status = "completed"

	// StatusFailed: retries exhausted, checkpoint write failed, step
	// budget exceeded, or no route matched.
	StatusFailed Status = "failed"

	// StatusDenied: the policy enforcement point denied a transition.
	// Never retried.
	StatusDenied Status = "denied"

	// StatusAborted: an external cancellation was observed at a node
	// boundary.
	StatusAborted Status = "aborted"
)

// Terminal reason codes, reported verbatim by the supervisor and CLI.
const (
	ReasonCompleted          = "completed"
	ReasonRetriesExhausted   = "retries_exhausted"
	ReasonPolicyDenied       = "policy_denied"
	ReasonStoreUnavailable   = "store_unavailable"
	ReasonStepBudgetExceeded = "step_budget_exceeded"
	ReasonNoRoute            = "no_route"
	ReasonAborted            = "aborted"
	ReasonInvalidGraph       = "invalid_graph"
	ReasonInvalidState       = "invalid_state"
)

// UseDefaultRetries on Node.MaxRetries defers to
// RunnerConfig.DefaultMaxRetries.
const UseDefaultRetries = -1

// Result is the terminal outcome of a run.
type Result struct {
	// Status is the terminal lifecycle state.
	Status Status

	// Reason is the machine-readable reason code (Reason* constants).
	Reason string

	// Err carries the underlying failure for non-Completed outcomes.
	Err error

	// State is the workflow state as of the last committed step.
	State *WorkflowState

	// Steps is the number of node visits attempted.
	Steps int

	// Checkpoints lists the metadata of checkpoints written during
	// this run, in sequence order.
	Checkpoints []store.Checkpoint
}

// RunnerConfig configures execution defaults. Zero values get
// conservative defaults in NewRunner.
type RunnerConfig struct {
	// MaxSteps is the global step budget: the maximum number of node
	// visits per run, bounding looping graphs. Default 100.
	MaxSteps int

	// DefaultNodeTimeout applies to nodes that declare no timeout.
	// Default 30s.
	DefaultNodeTimeout time.Duration

	// DefaultMaxRetries applies to nodes declaring
	// UseDefaultRetries. Default 3.
	DefaultMaxRetries int

	// DefaultBackoff applies to nodes with a zero backoff policy.
	// Default 1s base, 30s cap.
	DefaultBackoff BackoffPolicy

	// Actor is the identity reported to the policy enforcement point.
	// Default "agentwalk-runner".
	Actor string
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 100
	}
	if c.DefaultNodeTimeout <= 0 {
		c.DefaultNodeTimeout = 30 * time.Second
	}
	if c.DefaultMaxRetries < 0 {
		c.DefaultMaxRetries = 3
	}
	if c.DefaultBackoff.IsZero() {
		c.DefaultBackoff = BackoffPolicy{BaseDelay: time.Second, MaxDelay: 30 * time.Second}
	}
	if c.Actor == "" {
		c.Actor = "agentwalk-runner"
	}
	return c
}

// Runner walks a graph against a WorkflowState it exclusively owns,
// gating every node entry through the policy enforcement point,
// executing node work under the node's timeout and retry policy, and
// persisting a checkpoint after each committed transition.
//
// A Runner is safe to share across concurrent runs of distinct
// conversations; each Run call owns its own WorkflowState.
type Runner struct {
	graph    *Graph
	store    store.Store[*WorkflowState]
	enforcer policy.Enforcer
	emitter  emit.Emitter
	metrics  *Metrics
	cfg      RunnerConfig
}

// NewRunner wires a Runner. Graph, store, and enforcer are required;
// emitter and metrics may be nil.
func NewRunner(g *Graph, st store.Store[*WorkflowState], enforcer policy.Enforcer, emitter emit.Emitter, metrics *Metrics, cfg RunnerConfig) (*Runner, error) {
	if g == nil {
		return nil, errors.New("graph is required")
	}
	if st == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if enforcer == nil {
		return nil, errors.New("policy enforcer is required")
	}
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	return &Runner{
		graph:    g,
		store:    st,
		enforcer: enforcer,
		emitter:  emitter,
		metrics:  metrics,
		cfg:      cfg.withDefaults(),
	}, nil
}

// Run executes the graph against the given state: from the start node
// for a fresh state, or from the successors of the checkpointed node
// for a state restored from a checkpoint.
//
// The state must carry a conversation id; if it was restored from a
// checkpoint, its current-node pointer must name a node in the graph.
// Cancellation is cooperative: the context is observed before each
// node, during backoff waits, and after each checkpoint commits -
// never mid-node, so state is never left partially mutated.
func (r *Runner) Run(ctx context.Context, state *WorkflowState) Result {
	if state == nil || state.ConversationID == "" {
		return Result{
			Status: StatusFailed,
			Reason: ReasonInvalidState,
			Err:    errors.New("state with a conversation id is required"),
			State:  state,
		}
	}
	if state.Current != "" {
		if _, ok := r.graph.Node(state.Current); !ok {
			return Result{
				Status: StatusFailed,
				Reason: ReasonInvalidState,
				Err:    fmt.Errorf("state current node %q is not in the graph", state.Current),
				State:  state,
			}
		}
	}
	if err := r.graph.Validate(); err != nil {
		return Result{Status: StatusFailed, Reason: ReasonInvalidGraph, Err: err, State: state}
	}

	r.emitter.Emit(emit.Event{
		ConversationID: state.ConversationID,
		Msg:            emit.MsgRunStart,
		Meta:           map[string]any{"start_node": r.graph.Start()},
	})

	result := r.runLoop(ctx, state)
	r.metrics.recordRun(result.Status)
	r.emitter.Emit(emit.Event{
		ConversationID: state.ConversationID,
		Step:           result.Steps,
		Msg:            emit.MsgRunComplete,
		Meta:           map[string]any{"status": string(result.Status), "reason": result.Reason},
	})
	return result
}

func (r *Runner) runLoop(ctx context.Context, state *WorkflowState) Result {
	var checkpoints []store.Checkpoint
	previous := ""
	current := r.graph.Start()
	steps := 0

	// A state restored from a checkpoint resumes after the node it
	// recorded, not from the start: the checkpointed node's work is
	// already committed and must not repeat.
	if state.Current != "" {
		node, _ := r.graph.Node(state.Current)
		successors := node.Successors()
		if len(successors) == 0 {
			return Result{Status: StatusCompleted, Reason: ReasonCompleted, State: state}
		}
		next := ""
		for _, succ := range successors {
			if succ.When == nil || succ.When(state) {
				next = succ.To
				break
			}
		}
		if next == "" {
			return Result{
				Status: StatusFailed,
				Reason: ReasonNoRoute,
				Err:    fmt.Errorf("%w: node %s", ErrNoRoute, state.Current),
				State:  state,
			}
		}
		previous = state.Current
		current = next
	}

	finish := func(status Status, reason string, err error) Result {
		return Result{
			Status:      status,
			Reason:      reason,
			Err:         err,
			State:       state,
			Steps:       steps,
			Checkpoints: checkpoints,
		}
	}

	for {
		// Node boundary: the only place an abort is observed before
		// work starts.
		if err := ctx.Err(); err != nil {
			return finish(StatusAborted, ReasonAborted, err)
		}

		steps++
		if steps > r.cfg.MaxSteps {
			steps--
			return finish(StatusFailed, ReasonStepBudgetExceeded,
				fmt.Errorf("%w: budget %d", ErrStepBudgetExceeded, r.cfg.MaxSteps))
		}

		node, ok := r.graph.Node(current)
		if !ok {
			return finish(StatusFailed, ReasonInvalidGraph,
				fmt.Errorf("node not found during traversal: %s", current))
		}

		// Gate the transition before any work happens. A denial is
		// terminal and the node never executes.
		decision := r.enforcer.Evaluate(ctx, policy.Action{
			Actor:          r.cfg.Actor,
			Node:           node.ID,
			From:           previous,
			ConversationID: state.ConversationID,
			Context:        map[string]any{"step": steps},
		})
		r.metrics.recordPolicyDecision(decision.Mode)
		r.emitter.Emit(emit.Event{
			ConversationID: state.ConversationID,
			Step:           steps,
			NodeID:         node.ID,
			Msg:            emit.MsgPolicyDecision,
			Meta: map[string]any{
				"allowed": decision.Allowed,
				"mode":    string(decision.Mode),
				"reason":  decision.Reason,
			},
		})
		if !decision.Allowed {
			return finish(StatusDenied, ReasonPolicyDenied,
				fmt.Errorf("%w: node %s: %s (%s)", ErrPolicyDenied, node.ID, decision.Reason, decision.Mode))
		}

		committed, execErr, aborted := r.executeWithRetry(ctx, node, state, steps)
		if aborted {
			return finish(StatusAborted, ReasonAborted, ctx.Err())
		}
		if execErr != nil {
			return finish(StatusFailed, ReasonRetriesExhausted, execErr)
		}

		// Commit: record the visit and replace the run state
		// wholesale with the scratch copy the node mutated.
		committed.Current = node.ID
		committed.Trace = append(committed.Trace, node.ID)
		if err := state.Restore(committed); err != nil {
			return finish(StatusFailed, ReasonInvalidState,
				fmt.Errorf("commit state for node %s: %w", node.ID, err))
		}

		// A run must not proceed past an uncommitted checkpoint:
		// a write failure is terminal, never silently skipped.
		snapshot, err := state.Snapshot()
		if err != nil {
			r.metrics.recordCheckpointWrite("error")
			return finish(StatusFailed, ReasonStoreUnavailable,
				fmt.Errorf("%w: snapshot state: %v", store.ErrUnavailable, err))
		}
		cp, err := r.store.Save(ctx, state.ConversationID, snapshot, "")
		if err != nil {
			r.metrics.recordCheckpointWrite("error")
			return finish(StatusFailed, ReasonStoreUnavailable, err)
		}
		r.metrics.recordCheckpointWrite("ok")
		checkpoints = append(checkpoints, cp)
		r.emitter.Emit(emit.Event{
			ConversationID: state.ConversationID,
			Step:           steps,
			NodeID:         node.ID,
			Msg:            emit.MsgCheckpointSaved,
			Meta:           map[string]any{"sequence": cp.Seq},
		})
		r.emitter.Emit(emit.Event{
			ConversationID: state.ConversationID,
			Step:           steps,
			NodeID:         node.ID,
			Msg:            emit.MsgNodeComplete,
		})

		// Safe point: the checkpoint is durable, so an abort here
		// loses nothing.
		if err := ctx.Err(); err != nil {
			return finish(StatusAborted, ReasonAborted, err)
		}

		successors := node.Successors()
		if len(successors) == 0 {
			return finish(StatusCompleted, ReasonCompleted, nil)
		}
		next := ""
		for _, succ := range successors {
			if succ.When == nil || succ.When(state) {
				next = succ.To
				break
			}
		}
		if next == "" {
			return finish(StatusFailed, ReasonNoRoute,
				fmt.Errorf("%w: node %s", ErrNoRoute, node.ID))
		}
		previous = current
		current = next
	}
}

// executeWithRetry runs one node under its timeout and retry policy.
// It returns the mutated scratch state on success; on exhaustion it
// returns an error wrapping ErrRetriesExhausted and the last attempt
// failure. aborted reports a cancellation observed during a backoff
// wait.
func (r *Runner) executeWithRetry(ctx context.Context, node *Node, state *WorkflowState, step int) (committed *WorkflowState, err error, aborted bool) {
	timeout := node.Timeout
	if timeout <= 0 {
		timeout = r.cfg.DefaultNodeTimeout
	}
	maxRetries := node.MaxRetries
	if maxRetries < 0 {
		maxRetries = r.cfg.DefaultMaxRetries
	}
	backoff := node.Backoff
	if backoff.IsZero() {
		backoff = r.cfg.DefaultBackoff
	}
	attempts := maxRetries + 1

	r.emitter.Emit(emit.Event{
		ConversationID: state.ConversationID,
		Step:           step,
		NodeID:         node.ID,
		Msg:            emit.MsgNodeStart,
	})

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			r.metrics.recordRetry(node.ID)
			r.emitter.Emit(emit.Event{
				ConversationID: state.ConversationID,
				Step:           step,
				NodeID:         node.ID,
				Msg:            emit.MsgNodeRetry,
				Meta:           map[string]any{"attempt": attempt},
			})
			select {
			case <-time.After(computeBackoff(attempt-1, backoff, nil)):
			case <-ctx.Done():
				return nil, nil, true
			}
		}

		start := time.Now()
		scratch, attemptErr := r.executeAttempt(ctx, node, state, timeout)
		duration := time.Since(start)

		if attemptErr == nil {
			r.metrics.recordNodeExecution(node.ID, "success", duration)
			return scratch, nil, false
		}

		// A failure caused by external cancellation is an abort, not
		// a retryable error.
		if ctx.Err() != nil {
			return nil, nil, true
		}

		status := "error"
		if errors.Is(attemptErr, ErrNodeTimeout) {
			status = "timeout"
		}
		r.metrics.recordNodeExecution(node.ID, status, duration)
		lastErr = &NodeError{NodeID: node.ID, Attempt: attempt, Err: attemptErr}
		r.emitter.Emit(emit.Event{
			ConversationID: state.ConversationID,
			Step:           step,
			NodeID:         node.ID,
			Msg:            emit.MsgNodeError,
			Meta:           map[string]any{"attempt": attempt, "error": attemptErr.Error()},
		})
	}

	return nil, fmt.Errorf("%w: node %s after %d attempts: %w", ErrRetriesExhausted, node.ID, attempts, lastErr), false
}

// executeAttempt runs the handler once against a scratch copy of the
// state under the node's timeout. The run state is untouched on
// failure, so a retried or abandoned attempt never leaks partial
// mutations. The deadline is enforced cooperatively: an attempt that
// outlives it counts as a timeout failure even if the handler
// eventually returned nil.
func (r *Runner) executeAttempt(ctx context.Context, node *Node, state *WorkflowState, timeout time.Duration) (*WorkflowState, error) {
	scratch, err := state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot state: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execErr := node.Handler.Execute(execCtx, scratch)
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: node %s exceeded %v", ErrNodeTimeout, node.ID, timeout)
	}
	if execErr != nil {
		return nil, execErr
	}
	return scratch, nil
}
