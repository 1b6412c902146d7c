package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dshills/agentwalk/policy"
)

// Metrics collects Prometheus metrics for workflow execution.
//
// All metrics use the "agentwalk" namespace:
//
//   - node_executions_total (counter): node execution attempts by
//     node_id and status (success, error, timeout).
//   - node_retries_total (counter): retry attempts by node_id.
//   - node_duration_seconds (histogram): execution attempt duration
//     by node_id.
//   - policy_decisions_total (counter): PEP verdicts by mode
//     (live-allow, live-deny, fail-closed-deny).
//   - checkpoint_writes_total (counter): checkpoint saves by status
//     (ok, error).
//   - runs_total (counter): completed runs by terminal status.
//
// A nil *Metrics is valid and records nothing, so the Runner can be
// wired without metrics.
type Metrics struct {
	nodeExecutions   *prometheus.CounterVec
	nodeRetries      *prometheus.CounterVec
	nodeDuration     *prometheus.HistogramVec
	policyDecisions  *prometheus.CounterVec
	checkpointWrites *prometheus.CounterVec
	runs             *prometheus.CounterVec
}

// NewMetrics creates and registers the execution metrics with the
// given registry. A nil registry uses prometheus.DefaultRegisterer;
// pass a private prometheus.NewRegistry() for isolation (and in tests,
// to avoid duplicate registration).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		nodeExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentwalk",
			Name:      "node_executions_total",
			Help:      "Node execution attempts by node and outcome status",
		}, []string{"node_id", "status"}),
		nodeRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentwalk",
			Name:      "node_retries_total",
			Help:      "Retry attempts by node",
		}, []string{"node_id"}),
		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentwalk",
			Name:      "node_duration_seconds",
			Help:      "Node execution attempt duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node_id"}),
		policyDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentwalk",
			Name:      "policy_decisions_total",
			Help:      "Policy enforcement point verdicts by decision mode",
		}, []string{"mode"}),
		checkpointWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentwalk",
			Name:      "checkpoint_writes_total",
			Help:      "Checkpoint store writes by status",
		}, []string{"status"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentwalk",
			Name:      "runs_total",
			Help:      "Finished runs by terminal status",
		}, []string{"status"}),
	}
}

func (m *Metrics) recordNodeExecution(nodeID, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.nodeExecutions.WithLabelValues(nodeID, status).Inc()
	m.nodeDuration.WithLabelValues(nodeID).Observe(duration.Seconds())
}

func (m *Metrics) recordRetry(nodeID string) {
	if m == nil {
		return
	}
	m.nodeRetries.WithLabelValues(nodeID).Inc()
}

func (m *Metrics) recordPolicyDecision(mode policy.Mode) {
	if m == nil {
		return
	}
	m.policyDecisions.WithLabelValues(string(mode)).Inc()
}

func (m *Metrics) recordCheckpointWrite(status string) {
	if m == nil {
		return
	}
	m.checkpointWrites.WithLabelValues(status).Inc()
}

func (m *Metrics) recordRun(status Status) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(status)).Inc()
}
