// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the agentstore service.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// RequestsTotal counts all HTTP requests by method, status class, and entity kind.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentstore_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "kind"},
	)

	// RequestDuration records HTTP request duration in seconds by method and kind.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentstore_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "kind"},
	)

	// GuardDecisionsTotal counts policy guard decisions by kind, verb, and outcome.
	GuardDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentstore_guard_decisions_total",
			Help: "Policy guard decisions",
		},
		[]string{"kind", "verb", "outcome"},
	)

	// TriggerRejectionsTotal counts writes rejected at the storage boundary,
	// independent of the guard layer.
	TriggerRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentstore_trigger_rejections_total",
			Help: "Storage boundary write rejections",
		},
		[]string{"kind", "reason"},
	)

	// MigrationPhasesTotal counts migration phase runs by phase and outcome.
	MigrationPhasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentstore_migration_phases_total",
			Help: "Migration phase outcomes",
		},
		[]string{"phase", "outcome"},
	)

	// AuthRejectedTotal counts requests rejected before a tenant was bound.
	AuthRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentstore_auth_rejected_total",
			Help: "Authentication rejections",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		GuardDecisionsTotal,
		TriggerRejectionsTotal,
		MigrationPhasesTotal,
		AuthRejectedTotal,
	)
}
