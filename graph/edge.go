package graph

// Predicate evaluates workflow state to decide whether an edge should
// be traversed. Predicates should be pure: deterministic and free of
// side effects.
type Predicate func(state *WorkflowState) bool

// Successor is an outgoing edge from a node.
//
// A nil When predicate makes the edge unconditional. When several
// successors could match, the one declared first wins: declaration
// order is the stable priority order, so selection is deterministic.
type Successor struct {
	// To is the destination node id.
	To string

	// When guards traversal. nil means always traverse.
	When Predicate
}
