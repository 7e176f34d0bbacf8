// Package metrics defines Prometheus metrics for the tenant guard.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenantguard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantguard_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantguard_errors_total",
			Help: "Total errors by code",
		},
		[]string{"code"},
	)

	IsolationDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantguard_isolation_decisions_total",
			Help: "Isolation pipeline decisions by outcome",
		},
		[]string{"outcome"},
	)

	IsolationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tenantguard_isolation_duration_seconds",
			Help:    "Time spent in the isolation pipeline per request",
			Buckets: prometheus.DefBuckets,
		},
	)

	ViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantguard_violations_total",
			Help: "Cross-tenant violations by type",
		},
		[]string{"type"},
	)

	QuotaDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantguard_quota_denials_total",
			Help: "Requests denied by the resource quota guard",
		},
		[]string{"resource_type"},
	)

	AuditFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenantguard_audit_failures_total",
			Help: "Audit entries that failed to persist",
		},
	)

	AuditDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenantguard_audit_dropped_total",
			Help: "Audit entries dropped because the queue was full",
		},
	)

	FeedConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenantguard_feed_connections",
			Help: "Active audit feed WebSocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		IsolationDecisions, IsolationDuration, ViolationsTotal,
		QuotaDenials,
		AuditFailures, AuditDropped,
		FeedConnections,
	)
}
