package crewkit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors exported by the engine.
type Metrics struct {
	roleChanges         *prometheus.CounterVec
	bulkBatchSize       prometheus.Histogram
	auditAppendFailures prometheus.Counter
	permissionChecks    *prometheus.CounterVec
	workflowTransitions *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests usually want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		roleChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "crewkit",
				Name:      "role_changes_total",
				Help:      "Role change attempts by mode and outcome code.",
			},
			[]string{"mode", "outcome"},
		),
		bulkBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crewkit",
			Name:      "bulk_role_change_batch_size",
			Help:      "Number of targets per accepted bulk role change.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50},
		}),
		auditAppendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crewkit",
			Name:      "audit_append_failures_total",
			Help:      "Audit entries that could not be stored after a committed change.",
		}),
		permissionChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "crewkit",
				Name:      "permission_checks_total",
				Help:      "Permission checks answered by the service.",
			},
			[]string{"result"},
		),
		workflowTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "crewkit",
				Name:      "workflow_transitions_total",
				Help:      "Role change request status transitions by resulting status.",
			},
			[]string{"status"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "crewkit",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "crewkit",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latencies in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.roleChanges,
			m.bulkBatchSize,
			m.auditAppendFailures,
			m.permissionChecks,
			m.workflowTransitions,
			m.httpRequests,
			m.httpDuration,
		)
	}
	return m
}

func (m *Metrics) observeRoleChange(mode string, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(Code(err))
	}
	m.roleChanges.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) observeBulkBatch(size int) {
	m.bulkBatchSize.Observe(float64(size))
}

func (m *Metrics) observeAuditFailure() {
	m.auditAppendFailures.Inc()
}

func (m *Metrics) observePermissionCheck(granted bool) {
	result := "denied"
	if granted {
		result = "granted"
	}
	m.permissionChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) observeWorkflow(status WorkflowStatus) {
	m.workflowTransitions.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) observeHTTPRequest(method, route, status string, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}
