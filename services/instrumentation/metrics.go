// Package instrumentation exposes prometheus counters for the session and
// telemetry services. A nil *Metrics is valid and records nothing.
package instrumentation

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "condoaccess"

type Metrics struct {
	registry *prometheus.Registry

	sessionOps          *prometheus.CounterVec
	sessionsEvicted     prometheus.Counter
	auditWrites         *prometheus.CounterVec
	snapshotsCreated    prometheus.Counter
	prunedRows          *prometheus.CounterVec
	lastFailureRate     prometheus.Gauge
	lastSnapshotAttempt prometheus.Gauge
}

// New registers all collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		sessionOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_operations_total",
			Help:      "Refresh session operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		sessionsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Sessions revoked by the per-user active session cap",
		}),
		auditWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_writes_total",
			Help:      "Audit event writes by event type and outcome",
		}, []string{"event_type", "outcome"}),
		snapshotsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "security_snapshots_created_total",
			Help:      "Security metric snapshots persisted",
		}),
		prunedRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_pruned_rows_total",
			Help:      "Rows deleted by retention pruning",
		}, []string{"table"}),
		lastFailureRate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "login_failure_rate_percent",
			Help:      "Login failure rate of the most recent snapshot",
		}),
		lastSnapshotAttempt: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "login_attempts_last_snapshot",
			Help:      "Login attempts counted by the most recent snapshot",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (m *Metrics) SessionOperation(operation string, ok bool) {
	if m == nil {
		return
	}
	m.sessionOps.WithLabelValues(operation, outcome(ok)).Inc()
}

func (m *Metrics) SessionsEvicted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsEvicted.Add(float64(n))
}

func (m *Metrics) AuditWrite(eventType string, ok bool) {
	if m == nil {
		return
	}
	m.auditWrites.WithLabelValues(eventType, outcome(ok)).Inc()
}

func (m *Metrics) SnapshotCreated(loginAttempts int64, failureRate float64) {
	if m == nil {
		return
	}
	m.snapshotsCreated.Inc()
	m.lastSnapshotAttempt.Set(float64(loginAttempts))
	m.lastFailureRate.Set(failureRate)
}

func (m *Metrics) RowsPruned(table string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.prunedRows.WithLabelValues(table).Add(float64(n))
}
