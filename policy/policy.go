// Package policy implements the policy enforcement point (PEP) that
// gates workflow transitions.
//
// Every state-mutating transition is described as an Action and
// submitted to an Enforcer before the node executes. The production
// enforcer queries an external HTTP decision authority with a bounded
// timeout and fails closed: if the authority cannot be reached, the
// verdict is deny, indistinguishable to callers from an explicit deny.
package policy

import "context"

// Mode records how a decision was produced.
type Mode string

const (
	// ModeLiveAllow: the decision authority explicitly allowed.
	ModeLiveAllow Mode = "live-allow"

	// ModeLiveDeny: the decision authority (or a local deny list)
	// explicitly denied.
	ModeLiveDeny Mode = "live-deny"

	// ModeFailClosedDeny: the authority was unreachable, timed out,
	// or answered malformed, and the default-deny applied. This is
	// the only mode ever produced by an outage; there is no implicit
	// allow.
	ModeFailClosedDeny Mode = "fail-closed-deny"
)

// Action describes a proposed transition submitted for evaluation.
type Action struct {
	// Actor is the identity proposing the transition.
	Actor string `json:"actor"`

	// Node is the target node the run wants to enter.
	Node string `json:"node"`

	// From is the node the run is leaving ("" at the start of a run).
	From string `json:"from,omitempty"`

	// ConversationID scopes the action to a run.
	ConversationID string `json:"conversation_id"`

	// Context carries additional decision inputs, such as the
	// proposed state delta.
	Context map[string]any `json:"context,omitempty"`
}

// Decision is the outcome of evaluating an Action.
type Decision struct {
	// Action is the action that was evaluated.
	Action Action

	// Allowed is the verdict.
	Allowed bool

	// Reason explains the verdict when available.
	Reason string

	// Mode records how the verdict was produced.
	Mode Mode
}

// Enforcer evaluates proposed transitions.
//
// Evaluate never returns an error: failure to obtain a live verdict is
// itself a verdict (deny, ModeFailClosedDeny), so no caller can
// special-case around an authority outage.
type Enforcer interface {
	Evaluate(ctx context.Context, action Action) Decision
}

// Static is an Enforcer with a fixed verdict. Useful for tests and for
// demo wiring where no decision authority is deployed.
type Static struct {
	// Allow is the fixed verdict.
	Allow bool

	// Reason is attached to every decision.
	Reason string
}

// Evaluate returns the fixed verdict with a live mode.
func (s Static) Evaluate(ctx context.Context, action Action) Decision {
	mode := ModeLiveDeny
	if s.Allow {
		mode = ModeLiveAllow
	}
	return Decision{Action: action, Allowed: s.Allow, Reason: s.Reason, Mode: mode}
}
