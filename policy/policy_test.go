package policy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testAction() Action {
	return Action{
		Actor:          "runner",
		Node:           "processing",
		From:           "greeting",
		ConversationID: "demo-1",
		Context:        map[string]any{"step": 2},
	}
}

func decisionServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPEnforcer_Allow(t *testing.T) {
	var received decisionRequest
	srv := decisionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"result": true}`))
	})

	enforcer := NewHTTPEnforcer(Config{URL: srv.URL})
	decision := enforcer.Evaluate(context.Background(), testAction())

	if !decision.Allowed {
		t.Fatalf("decision = %+v, want allowed", decision)
	}
	if decision.Mode != ModeLiveAllow {
		t.Errorf("mode = %s, want live-allow", decision.Mode)
	}
	if received.Input.Node != "processing" || received.Input.ConversationID != "demo-1" {
		t.Errorf("authority received %+v, want the submitted action", received.Input)
	}
}

func TestHTTPEnforcer_Deny(t *testing.T) {
	srv := decisionServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result": false}`))
	})

	enforcer := NewHTTPEnforcer(Config{URL: srv.URL})
	decision := enforcer.Evaluate(context.Background(), testAction())

	if decision.Allowed {
		t.Fatal("explicit deny was allowed")
	}
	if decision.Mode != ModeLiveDeny {
		t.Errorf("mode = %s, want live-deny", decision.Mode)
	}
}

func TestHTTPEnforcer_FailClosed(t *testing.T) {
	t.Run("unreachable authority", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // nothing is listening anymore

		enforcer := NewHTTPEnforcer(Config{URL: srv.URL})
		decision := enforcer.Evaluate(context.Background(), testAction())

		if decision.Allowed {
			t.Fatal("unreachable authority produced an allow")
		}
		if decision.Mode != ModeFailClosedDeny {
			t.Errorf("mode = %s, want fail-closed-deny", decision.Mode)
		}
	})

	t.Run("non-200 status", func(t *testing.T) {
		srv := decisionServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		enforcer := NewHTTPEnforcer(Config{URL: srv.URL})
		decision := enforcer.Evaluate(context.Background(), testAction())

		if decision.Allowed || decision.Mode != ModeFailClosedDeny {
			t.Errorf("decision = %+v, want fail-closed deny", decision)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := decisionServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		})

		enforcer := NewHTTPEnforcer(Config{URL: srv.URL})
		decision := enforcer.Evaluate(context.Background(), testAction())

		if decision.Allowed || decision.Mode != ModeFailClosedDeny {
			t.Errorf("decision = %+v, want fail-closed deny", decision)
		}
	})

	t.Run("missing result field", func(t *testing.T) {
		srv := decisionServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"something": "else"}`))
		})

		enforcer := NewHTTPEnforcer(Config{URL: srv.URL})
		decision := enforcer.Evaluate(context.Background(), testAction())

		if decision.Allowed || decision.Mode != ModeFailClosedDeny {
			t.Errorf("decision = %+v, want fail-closed deny", decision)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := decisionServer(t, func(w http.ResponseWriter, r *http.Request) {
			<-release
		})
		defer close(release)

		enforcer := NewHTTPEnforcer(Config{URL: srv.URL, Timeout: 50 * time.Millisecond})
		start := time.Now()
		decision := enforcer.Evaluate(context.Background(), testAction())

		if decision.Allowed || decision.Mode != ModeFailClosedDeny {
			t.Errorf("decision = %+v, want fail-closed deny", decision)
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("timeout took %v, want ~50ms", elapsed)
		}
	})
}

func TestStatic(t *testing.T) {
	allow := Static{Allow: true, Reason: "open"}
	d := allow.Evaluate(context.Background(), testAction())
	if !d.Allowed || d.Mode != ModeLiveAllow || d.Reason != "open" {
		t.Errorf("allow decision = %+v", d)
	}

	deny := Static{Allow: false, Reason: "shut"}
	d = deny.Evaluate(context.Background(), testAction())
	if d.Allowed || d.Mode != ModeLiveDeny || d.Reason != "shut" {
		t.Errorf("deny decision = %+v", d)
	}
}

func TestDenyList(t *testing.T) {
	enforcer := NewDenyList(Static{Allow: true}, "forbidden-node")

	t.Run("listed node denied locally", func(t *testing.T) {
		action := testAction()
		action.Node = "forbidden-node"
		d := enforcer.Evaluate(context.Background(), action)
		if d.Allowed {
			t.Fatal("listed node was allowed")
		}
		if d.Mode != ModeLiveDeny {
			t.Errorf("mode = %s, want live-deny", d.Mode)
		}
	})

	t.Run("unlisted node forwarded", func(t *testing.T) {
		d := enforcer.Evaluate(context.Background(), testAction())
		if !d.Allowed {
			t.Errorf("unlisted node denied: %+v", d)
		}
	})

	t.Run("cannot override an inner deny", func(t *testing.T) {
		// The list only denies; passing it never converts an inner
		// deny into an allow.
		strict := NewDenyList(Static{Allow: false, Reason: "inner"}, "forbidden-node")
		d := strict.Evaluate(context.Background(), testAction())
		if d.Allowed {
			t.Error("deny list converted an inner deny into an allow")
		}
	})
}
