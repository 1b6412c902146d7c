package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds the decision request when Config.Timeout is
// unset.
const DefaultTimeout = 5 * time.Second

// Config configures an HTTPEnforcer.
type Config struct {
	// URL is the decision endpoint, e.g. an OPA data API path like
	// "http://localhost:8181/v1/data/agentwalk/allow".
	URL string

	// Timeout bounds each decision request. 0 uses DefaultTimeout.
	Timeout time.Duration

	// Client optionally overrides the HTTP client (the request
	// timeout is still enforced via context).
	Client *http.Client
}

// HTTPEnforcer queries an external decision authority over HTTP.
//
// The request body is OPA-shaped, `{"input": <action>}`, and the
// response is expected to be `{"result": true|false}`. Any failure to
// obtain a well-formed verdict within the timeout - connection errors,
// non-200 status, malformed body - produces a fail-closed deny. There
// is no retry and no caching of verdicts: a changed policy takes
// effect on the next call.
type HTTPEnforcer struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPEnforcer creates an enforcer for the given decision endpoint.
func NewHTTPEnforcer(cfg Config) *HTTPEnforcer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPEnforcer{url: cfg.URL, timeout: timeout, client: client}
}

// decisionRequest is the authority's expected request shape.
type decisionRequest struct {
	Input Action `json:"input"`
}

// decisionResponse is the authority's expected response shape.
type decisionResponse struct {
	Result *bool `json:"result"`
}

// Evaluate submits the action to the decision authority.
func (e *HTTPEnforcer) Evaluate(ctx context.Context, action Action) Decision {
	body, err := json.Marshal(decisionRequest{Input: action})
	if err != nil {
		return failClosed(action, fmt.Sprintf("serialize action: %v", err))
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return failClosed(action, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return failClosed(action, fmt.Sprintf("decision authority unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failClosed(action, fmt.Sprintf("decision authority returned status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return failClosed(action, fmt.Sprintf("read response: %v", err))
	}

	var decoded decisionResponse
	if err := json.Unmarshal(data, &decoded); err != nil || decoded.Result == nil {
		return failClosed(action, "malformed decision response")
	}

	if *decoded.Result {
		return Decision{Action: action, Allowed: true, Mode: ModeLiveAllow}
	}
	return Decision{Action: action, Allowed: false, Reason: "denied by policy", Mode: ModeLiveDeny}
}

// failClosed is the default-deny outcome for any failure to obtain a
// definitive verdict.
func failClosed(action Action, reason string) Decision {
	return Decision{Action: action, Allowed: false, Reason: reason, Mode: ModeFailClosedDeny}
}
