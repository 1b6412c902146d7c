package policy

import "context"

// DenyList is a local fast path that can deny known-bad target nodes
// before the network call to the decision authority is attempted.
//
// It can only deny, never allow: actions that pass the list are
// forwarded to the wrapped enforcer for the real verdict, so an outage
// of the authority still fails closed for everything else.
type DenyList struct {
	next   Enforcer
	denied map[string]struct{}
}

// NewDenyList wraps next with a deny list over target node ids.
func NewDenyList(next Enforcer, nodeIDs ...string) *DenyList {
	denied := make(map[string]struct{}, len(nodeIDs))
	for _, id := range nodeIDs {
		denied[id] = struct{}{}
	}
	return &DenyList{next: next, denied: denied}
}

// Evaluate denies listed nodes locally and defers everything else.
func (d *DenyList) Evaluate(ctx context.Context, action Action) Decision {
	if _, listed := d.denied[action.Node]; listed {
		return Decision{
			Action:  action,
			Allowed: false,
			Reason:  "node on local deny list",
			Mode:    ModeLiveDeny,
		}
	}
	return d.next.Evaluate(ctx, action)
}
