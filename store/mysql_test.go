package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
)

// newMySQLTestStore connects to the MySQL instance named by
// TEST_MYSQL_DSN, skipping when none is configured:
//
//	TEST_MYSQL_DSN="user:pass@tcp(localhost:3306)/agentwalk_test?parseTime=true" go test ./store/
func newMySQLTestStore(t *testing.T) *MySQLStore[*testState] {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("Skipping MySQL test: TEST_MYSQL_DSN not set")
	}
	st, err := NewMySQLStore[*testState](dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestMySQLStore_SaveListRollback(t *testing.T) {
	st := newMySQLTestStore(t)
	ctx := context.Background()
	conv := fmt.Sprintf("mysql-test-%s", uuid.NewString())

	for i := 1; i <= 3; i++ {
		cp, err := st.Save(ctx, conv, &testState{ConversationID: conv, Vars: map[string]any{"step": i}}, "")
		if err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
		if cp.Seq != i {
			t.Errorf("Save %d returned seq %d, want %d", i, cp.Seq, i)
		}
	}

	cps, err := st.List(ctx, conv)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(cps) != 3 {
		t.Fatalf("List returned %d checkpoints, want 3", len(cps))
	}

	restored, err := st.Rollback(ctx, conv, 2)
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if restored.Vars["step"] != float64(2) {
		t.Errorf("restored step = %v, want 2", restored.Vars["step"])
	}

	latest, err := st.Rollback(ctx, conv, 0)
	if err != nil {
		t.Fatalf("Rollback to latest failed: %v", err)
	}
	if latest.Vars["step"] != float64(3) {
		t.Errorf("latest step = %v, want 3", latest.Vars["step"])
	}

	if _, err := st.Rollback(ctx, conv, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("Rollback(99) = %v, want ErrNotFound", err)
	}
}
