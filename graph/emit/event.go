package emit

// Event names emitted by the runner. Consumers can filter on Msg
// without parsing free text.
const (
	MsgRunStart        = "run_start"
	MsgRunComplete     = "run_complete"
	MsgNodeStart       = "node_start"
	MsgNodeComplete    = "node_complete"
	MsgNodeError       = "node_error"
	MsgNodeRetry       = "node_retry"
	MsgPolicyDecision  = "policy_decision"
	MsgCheckpointSaved = "checkpoint_saved"
)

// Event is a single observability record from workflow execution:
// node starts and completions, retries, policy verdicts, checkpoint
// writes, and run lifecycle transitions.
type Event struct {
	// ConversationID identifies the run that emitted this event.
	ConversationID string

	// Step is the 1-indexed node visit count at emission time. Zero
	// for run-level events.
	Step int

	// NodeID identifies the node concerned. Empty for run-level
	// events.
	NodeID string

	// Msg is the event name; use the Msg* constants.
	Msg string

	// Meta carries additional structured data. Common keys:
	// "error", "attempt", "duration_ms", "sequence", "mode",
	// "reason", "status".
	Meta map[string]any
}
