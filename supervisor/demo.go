package supervisor

import (
	"context"
	"fmt"

	"github.com/dshills/agentwalk/fipa"
	"github.com/dshills/agentwalk/graph"
)

// DemoAgentName is the sender identity on demo envelopes.
const DemoAgentName = "agentwalk"

// DemoGraph builds the three-node demonstration workflow:
//
//	greeting -> processing -> finalize
//
// greeting sends an inform envelope opening the conversation,
// processing echoes the last message back with a "Processed:" prefix,
// and finalize closes the conversation with a farewell. Every
// transition is policy-gated and checkpointed like any other run, so
// the demo exercises the full engine surface.
func DemoGraph() (*graph.Graph, error) {
	g := graph.New()

	greeting := &graph.Node{
		ID: "greeting",
		Handler: graph.HandlerFunc(func(ctx context.Context, state *graph.WorkflowState) error {
			msg, err := fipa.New(fipa.Inform, DemoAgentName, "user",
				fmt.Sprintf("Hello! Starting conversation %s", state.ConversationID),
				state.ConversationID)
			if err != nil {
				return err
			}
			return state.AddMessage(msg)
		}),
	}

	processing := &graph.Node{
		ID: "processing",
		Handler: graph.HandlerFunc(func(ctx context.Context, state *graph.WorkflowState) error {
			last, ok := state.LastMessage()
			if !ok {
				return nil
			}
			reply, err := last.Reply(fipa.Inform, DemoAgentName,
				fmt.Sprintf("Processed: %v", last.Content))
			if err != nil {
				return err
			}
			state.Set("processed", true)
			return state.AddMessage(reply)
		}),
	}

	finalize := &graph.Node{
		ID: "finalize",
		Handler: graph.HandlerFunc(func(ctx context.Context, state *graph.WorkflowState) error {
			msg, err := fipa.New(fipa.Inform, DemoAgentName, "user",
				"Conversation complete. Goodbye!", state.ConversationID)
			if err != nil {
				return err
			}
			return state.AddMessage(msg)
		}),
	}

	for _, node := range []*graph.Node{greeting, processing, finalize} {
		if err := g.Add(node); err != nil {
			return nil, err
		}
	}
	if err := g.Connect("greeting", "processing", nil); err != nil {
		return nil, err
	}
	if err := g.Connect("processing", "finalize", nil); err != nil {
		return nil, err
	}
	if err := g.StartAt("greeting"); err != nil {
		return nil, err
	}
	return g, nil
}
