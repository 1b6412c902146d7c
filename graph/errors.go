package graph

import "errors"

// ErrNodeTimeout indicates a single execution attempt exceeded the
// node's declared timeout. Timeouts are retryable failures: the Runner
// counts them against the node's retry budget like any other attempt
// failure.
var ErrNodeTimeout = errors.New("node execution timed out")

// ErrRetriesExhausted indicates a node failed its initial attempt and
// every declared retry. Terminal.
var ErrRetriesExhausted = errors.New("retries exhausted")

// ErrPolicyDenied indicates the policy enforcement point denied the
// transition into a node. Terminal and never retried: a denial is not
// transient, and denial-by-unavailability is indistinguishable from an
// explicit deny.
var ErrPolicyDenied = errors.New("policy denied transition")

// ErrStepBudgetExceeded indicates the run visited more nodes than the
// configured budget allows. It distinguishes runaway looping graphs
// from genuine node failures.
var ErrStepBudgetExceeded = errors.New("step budget exceeded")

// ErrNoRoute indicates a node declared successors but none of their
// predicates matched the committed state, so the run cannot continue.
var ErrNoRoute = errors.New("no successor predicate matched")

// ErrInvalidBackoff indicates an inconsistent backoff policy
// (negative delays, or a cap below the base delay).
var ErrInvalidBackoff = errors.New("invalid backoff policy")

// NodeError wraps a failure from a single node execution attempt with
// its provenance.
type NodeError struct {
	// NodeID identifies the failing node.
	NodeID string

	// Attempt is the zero-based attempt number that produced the error.
	Attempt int

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return "node " + e.NodeID + ": " + e.Err.Error()
}

// Unwrap supports errors.Is and errors.As against the underlying cause.
func (e *NodeError) Unwrap() error {
	return e.Err
}
