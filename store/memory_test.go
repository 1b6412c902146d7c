package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

type testState struct {
	ConversationID string         `json:"conversation_id"`
	Vars           map[string]any `json:"vars"`
	Trace          []string       `json:"trace"`
}

func TestMemStore_SaveSequencing(t *testing.T) {
	st := NewMemStore[*testState]()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		cp, err := st.Save(ctx, "conv-1", &testState{ConversationID: "conv-1"}, "")
		if err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
		if cp.Seq != i {
			t.Errorf("Save %d returned seq %d, want %d", i, cp.Seq, i)
		}
		if cp.ConversationID != "conv-1" {
			t.Errorf("Save returned conversation %q", cp.ConversationID)
		}
		if cp.CreatedAt.IsZero() {
			t.Error("Save returned zero CreatedAt")
		}
	}

	cps, err := st.List(ctx, "conv-1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(cps) != 3 {
		t.Fatalf("List returned %d checkpoints, want 3", len(cps))
	}
	// Strictly increasing, gap-free, from 1.
	for i, cp := range cps {
		if cp.Seq != i+1 {
			t.Errorf("checkpoint %d has seq %d, want %d", i, cp.Seq, i+1)
		}
	}
}

func TestMemStore_ConversationIsolation(t *testing.T) {
	st := NewMemStore[*testState]()
	ctx := context.Background()

	if _, err := st.Save(ctx, "conv-a", &testState{ConversationID: "conv-a"}, ""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	cp, err := st.Save(ctx, "conv-b", &testState{ConversationID: "conv-b"}, "")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	// Sequences are per conversation, not global.
	if cp.Seq != 1 {
		t.Errorf("first checkpoint of conv-b has seq %d, want 1", cp.Seq)
	}

	cps, err := st.List(ctx, "conv-a")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(cps) != 1 {
		t.Errorf("conv-a has %d checkpoints, want 1", len(cps))
	}
}

func TestMemStore_SnapshotImmutability(t *testing.T) {
	st := NewMemStore[*testState]()
	ctx := context.Background()

	state := &testState{ConversationID: "conv-1", Vars: map[string]any{"n": 1}}
	if _, err := st.Save(ctx, "conv-1", state, ""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Mutating the caller's value after Save must not change the
	// stored checkpoint.
	state.Vars["n"] = 99

	restored, err := st.Rollback(ctx, "conv-1", 1)
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if restored.Vars["n"] != float64(1) {
		t.Errorf("stored checkpoint mutated: n = %v, want 1", restored.Vars["n"])
	}
}

func TestMemStore_Rollback(t *testing.T) {
	st := NewMemStore[*testState]()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		s := &testState{ConversationID: "conv-1", Trace: make([]string, i)}
		if _, err := st.Save(ctx, "conv-1", s, ""); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	t.Run("by sequence", func(t *testing.T) {
		restored, err := st.Rollback(ctx, "conv-1", 2)
		if err != nil {
			t.Fatalf("Rollback failed: %v", err)
		}
		if len(restored.Trace) != 2 {
			t.Errorf("restored trace length = %d, want 2", len(restored.Trace))
		}
	})

	t.Run("latest when seq <= 0", func(t *testing.T) {
		restored, err := st.Rollback(ctx, "conv-1", 0)
		if err != nil {
			t.Fatalf("Rollback failed: %v", err)
		}
		if len(restored.Trace) != 3 {
			t.Errorf("restored trace length = %d, want 3 (latest)", len(restored.Trace))
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		first, err := st.Rollback(ctx, "conv-1", 2)
		if err != nil {
			t.Fatalf("Rollback failed: %v", err)
		}
		second, err := st.Rollback(ctx, "conv-1", 2)
		if err != nil {
			t.Fatalf("Rollback failed: %v", err)
		}
		if fmt.Sprintf("%+v", first) != fmt.Sprintf("%+v", second) {
			t.Errorf("repeated rollback diverged: %+v vs %+v", first, second)
		}
	})

	t.Run("history intact after rollback", func(t *testing.T) {
		// Rollback is a read, not a truncation.
		if _, err := st.Rollback(ctx, "conv-1", 1); err != nil {
			t.Fatalf("Rollback failed: %v", err)
		}
		cps, err := st.List(ctx, "conv-1")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(cps) != 3 {
			t.Errorf("history truncated by rollback: %d checkpoints, want 3", len(cps))
		}
	})

	t.Run("unknown sequence", func(t *testing.T) {
		_, err := st.Rollback(ctx, "conv-1", 42)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Rollback(42) = %v, want ErrNotFound", err)
		}
	})

	t.Run("unknown conversation", func(t *testing.T) {
		_, err := st.Rollback(ctx, "nobody", 1)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Rollback on unknown conversation = %v, want ErrNotFound", err)
		}
	})
}

func TestMemStore_EmptyConversationID(t *testing.T) {
	st := NewMemStore[*testState]()
	_, err := st.Save(context.Background(), "", &testState{}, "")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Save with empty conversation id = %v, want ErrUnavailable", err)
	}
}

func TestMemStore_ConcurrentSaves(t *testing.T) {
	st := NewMemStore[*testState]()
	ctx := context.Background()

	const perConv = 20
	var wg sync.WaitGroup
	for _, conv := range []string{"conv-a", "conv-b", "conv-c"} {
		wg.Add(1)
		go func(conv string) {
			defer wg.Done()
			for i := 0; i < perConv; i++ {
				if _, err := st.Save(ctx, conv, &testState{ConversationID: conv}, ""); err != nil {
					t.Errorf("Save failed: %v", err)
					return
				}
			}
		}(conv)
	}
	wg.Wait()

	for _, conv := range []string{"conv-a", "conv-b", "conv-c"} {
		cps, err := st.List(ctx, conv)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(cps) != perConv {
			t.Fatalf("%s has %d checkpoints, want %d", conv, len(cps), perConv)
		}
		for i, cp := range cps {
			if cp.Seq != i+1 {
				t.Errorf("%s checkpoint %d has seq %d, want %d", conv, i, cp.Seq, i+1)
			}
		}
	}
}
