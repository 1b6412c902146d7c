// Package graph provides the workflow execution engine: a directed
// graph of nodes walked by a Runner under per-node timeout and retry
// policy, with policy-gated transitions and a checkpoint after every
// committed step.
package graph

import "fmt"

// Graph is a set of nodes plus a designated start node.
//
// Structure is validated at construction time, not at traversal time:
// Add rejects duplicate ids, Connect rejects edges to unknown nodes,
// and Validate checks that every node is reachable from the start.
// Cycles are allowed; the Runner's step budget guarantees forward
// progress.
type Graph struct {
	nodes map[string]*Node
	start string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// Add registers a node. The id must be non-empty and unique, and the
// node must carry a handler.
func (g *Graph) Add(node *Node) error {
	if node == nil {
		return fmt.Errorf("node cannot be nil")
	}
	if node.ID == "" {
		return fmt.Errorf("node id cannot be empty")
	}
	if node.Handler == nil {
		return fmt.Errorf("node %q has no handler", node.ID)
	}
	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("duplicate node id: %s", node.ID)
	}
	g.nodes[node.ID] = node
	return nil
}

// StartAt designates the entry node. The node must already be
// registered.
func (g *Graph) StartAt(nodeID string) error {
	if _, exists := g.nodes[nodeID]; !exists {
		return fmt.Errorf("start node does not exist: %s", nodeID)
	}
	g.start = nodeID
	return nil
}

// Connect adds an edge from one node to another, appended after any
// edges already declared from the same node. Successor predicates are
// evaluated in declaration order and the first match wins; declaration
// order is the tie-breaking priority.
//
// Both endpoints must exist: edge validity is established here, at
// construction time, never during traversal.
func (g *Graph) Connect(from, to string, when Predicate) error {
	src, exists := g.nodes[from]
	if !exists {
		return fmt.Errorf("edge source does not exist: %s", from)
	}
	if _, exists := g.nodes[to]; !exists {
		return fmt.Errorf("edge destination does not exist: %s", to)
	}
	src.successors = append(src.successors, Successor{To: to, When: when})
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Start returns the designated start node id ("" if unset).
func (g *Graph) Start() string {
	return g.start
}

// Len returns the number of registered nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Validate checks that the graph is runnable: a start node is set and
// every registered node is reachable from it via successor edges.
func (g *Graph) Validate() error {
	if g.start == "" {
		return fmt.Errorf("start node not set (call StartAt before running)")
	}

	visited := make(map[string]bool, len(g.nodes))
	stack := []string{g.start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		for _, succ := range g.nodes[id].successors {
			if !visited[succ.To] {
				stack = append(stack, succ.To)
			}
		}
	}

	for id := range g.nodes {
		if !visited[id] {
			return fmt.Errorf("node %q is not reachable from start node %q", id, g.start)
		}
	}
	return nil
}
