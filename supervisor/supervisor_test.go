package supervisor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dshills/agentwalk/fipa"
	"github.com/dshills/agentwalk/graph"
	"github.com/dshills/agentwalk/policy"
	"github.com/dshills/agentwalk/store"
)

func newDemoSupervisor(t *testing.T, enforcer policy.Enforcer) *Supervisor {
	t.Helper()
	sup, err := New(Config{
		Store:    store.NewMemStore[*graph.WorkflowState](),
		Enforcer: enforcer,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return sup
}

func TestNew_RequiredDeps(t *testing.T) {
	if _, err := New(Config{Enforcer: policy.Static{Allow: true}}); err == nil {
		t.Error("New should require a store")
	}
	if _, err := New(Config{Store: store.NewMemStore[*graph.WorkflowState]()}); err == nil {
		t.Error("New should require an enforcer")
	}
}

func TestSupervisor_DemoRun(t *testing.T) {
	sup := newDemoSupervisor(t, policy.Static{Allow: true})
	g, err := DemoGraph()
	if err != nil {
		t.Fatalf("DemoGraph failed: %v", err)
	}

	result, err := sup.Run(context.Background(), g, "demo-1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != graph.StatusCompleted {
		t.Fatalf("status = %s (%v), want completed", result.Status, result.Err)
	}

	want := []string{"greeting", "processing", "finalize"}
	if len(result.State.Trace) != len(want) {
		t.Fatalf("trace = %v, want %v", result.State.Trace, want)
	}
	for i, id := range want {
		if result.State.Trace[i] != id {
			t.Errorf("trace[%d] = %s, want %s", i, result.State.Trace[i], id)
		}
	}

	// Three envelopes: greeting, processed echo, farewell.
	msgs := result.State.Messages
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	for i, msg := range msgs {
		if msg.Performative != fipa.Inform {
			t.Errorf("message %d performative = %s, want inform", i, msg.Performative)
		}
		if msg.ConversationID != "demo-1" {
			t.Errorf("message %d conversation = %s, want demo-1", i, msg.ConversationID)
		}
	}
	if content, ok := msgs[1].Content.(string); !ok || !strings.HasPrefix(content, "Processed: ") {
		t.Errorf("processing envelope content = %v, want Processed: prefix", msgs[1].Content)
	}
	if msgs[1].InReplyTo != msgs[0].MessageID {
		t.Errorf("processing envelope in_reply_to = %q, want %q", msgs[1].InReplyTo, msgs[0].MessageID)
	}

	cps, err := sup.ListCheckpoints(context.Background(), "demo-1")
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(cps) != 3 {
		t.Fatalf("checkpoints = %d, want 3", len(cps))
	}
}

func TestSupervisor_RollbackAndResume(t *testing.T) {
	sup := newDemoSupervisor(t, policy.Static{Allow: true})
	g, err := DemoGraph()
	if err != nil {
		t.Fatalf("DemoGraph failed: %v", err)
	}

	ctx := context.Background()
	if _, err := sup.Run(ctx, g, "demo-1", nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Roll back to the state after the second node.
	restored, err := sup.Rollback(ctx, "demo-1", 2)
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if restored.Current != "processing" {
		t.Errorf("restored current = %q, want processing", restored.Current)
	}
	if len(restored.Trace) != 2 {
		t.Errorf("restored trace = %v, want [greeting processing]", restored.Trace)
	}
	if len(restored.Messages) != 2 {
		t.Errorf("restored messages = %d, want 2", len(restored.Messages))
	}

	// Rolling back again yields an identical state.
	again, err := sup.Rollback(ctx, "demo-1", 2)
	if err != nil {
		t.Fatalf("second Rollback failed: %v", err)
	}
	if len(again.Trace) != len(restored.Trace) || again.Current != restored.Current {
		t.Errorf("repeated rollback diverged: %+v vs %+v", again, restored)
	}

	// Resuming runs only the nodes after the checkpoint.
	result, err := sup.RunState(ctx, g, restored)
	if err != nil {
		t.Fatalf("RunState failed: %v", err)
	}
	if result.Status != graph.StatusCompleted {
		t.Fatalf("status = %s (%v), want completed", result.Status, result.Err)
	}
	if result.Steps != 1 {
		t.Errorf("resume steps = %d, want 1 (finalize only)", result.Steps)
	}
	wantTrace := []string{"greeting", "processing", "finalize"}
	for i, id := range wantTrace {
		if result.State.Trace[i] != id {
			t.Errorf("trace[%d] = %s, want %s", i, result.State.Trace[i], id)
		}
	}

	// History keeps growing: the resume appended sequence 4, the
	// original three are untouched.
	cps, err := sup.ListCheckpoints(ctx, "demo-1")
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(cps) != 4 {
		t.Fatalf("checkpoints = %d, want 4", len(cps))
	}
	for i, cp := range cps {
		if cp.Seq != i+1 {
			t.Errorf("checkpoint %d seq = %d, want %d", i, cp.Seq, i+1)
		}
	}
}

func TestSupervisor_RollbackUnknown(t *testing.T) {
	sup := newDemoSupervisor(t, policy.Static{Allow: true})
	_, err := sup.Rollback(context.Background(), "nobody", 1)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Rollback = %v, want ErrNotFound", err)
	}
}

func TestSupervisor_DeniedDemo(t *testing.T) {
	enforcer := policy.NewDenyList(policy.Static{Allow: true}, "processing")
	sup := newDemoSupervisor(t, enforcer)
	g, err := DemoGraph()
	if err != nil {
		t.Fatalf("DemoGraph failed: %v", err)
	}

	result, err := sup.Run(context.Background(), g, "demo-1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != graph.StatusDenied {
		t.Fatalf("status = %s, want denied", result.Status)
	}
	// Only greeting committed.
	cps, err := sup.ListCheckpoints(context.Background(), "demo-1")
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(cps) != 1 {
		t.Errorf("checkpoints = %d, want 1", len(cps))
	}
	if len(result.State.Trace) != 1 || result.State.Trace[0] != "greeting" {
		t.Errorf("trace = %v, want [greeting]", result.State.Trace)
	}
}

func TestSupervisor_UnreachableAuthorityFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // decision authority is down

	sup := newDemoSupervisor(t, policy.NewHTTPEnforcer(policy.Config{URL: srv.URL}))
	g, err := DemoGraph()
	if err != nil {
		t.Fatalf("DemoGraph failed: %v", err)
	}

	result, err := sup.Run(context.Background(), g, "demo-1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// With no reachable authority every transition is denied: the run
	// ends Denied at the first node, nothing executes, nothing commits.
	if result.Status != graph.StatusDenied {
		t.Fatalf("status = %s, want denied", result.Status)
	}
	if len(result.State.Trace) != 0 {
		t.Errorf("trace = %v, want empty", result.State.Trace)
	}
	cps, err := sup.ListCheckpoints(context.Background(), "demo-1")
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(cps) != 0 {
		t.Errorf("checkpoints = %d, want 0", len(cps))
	}
}

func TestSupervisor_InitialVars(t *testing.T) {
	sup := newDemoSupervisor(t, policy.Static{Allow: true})
	g, err := DemoGraph()
	if err != nil {
		t.Fatalf("DemoGraph failed: %v", err)
	}

	result, err := sup.Run(context.Background(), g, "demo-1", map[string]any{"who": "tester"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if v, _ := result.State.Get("who"); v != "tester" {
		t.Errorf("seeded var = %v, want tester", v)
	}
	if v, _ := result.State.Get("processed"); v != true {
		t.Errorf("processed var = %v, want true", v)
	}
}
