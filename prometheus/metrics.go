package prometheus

import (
	"time"

	"github.com/Creedyfish/multitenant-backend/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   prometheus.CounterVec
	HttpRequestDuration prometheus.HistogramVec

	// Authentication metrics
	AuthAttemptsCounter prometheus.Counter
	AuthSuccessCounter  prometheus.Counter
	AuthErrorsCounter   prometheus.Counter

	// Tenant resolution metrics
	TenantContextMissingCounter prometheus.Counter
	TenantMismatchCounter       prometheus.Counter

	// Authorization metrics
	AuthzDeniedCounter prometheus.CounterVec

	// Workflow metrics
	WorkflowTransitionsCounter prometheus.CounterVec
	WorkflowStaleStateCounter  prometheus.Counter

	// Event publishing metrics
	EventsPublishedCounter prometheus.CounterVec
	EventPublishErrors     prometheus.Counter

	// Rate limiter metrics
	RateLimitTrippedCounter prometheus.Counter

	// Database operation metrics
	DbOperationDuration prometheus.HistogramVec
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(config *config.Config) {
	// Use metric prefix from configuration
	prefix := config.Metrics.Prefix

	HttpRequestsTotal = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	AuthAttemptsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
	)

	AuthSuccessCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_success_total",
			Help: "Total number of successful authentications",
		},
	)

	AuthErrorsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of authentication errors",
		},
	)

	TenantContextMissingCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_tenant_context_missing_total",
			Help: "Total number of requests without tenant context",
		},
	)

	TenantMismatchCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_tenant_identity_mismatch_total",
			Help: "Total number of requests rejected for tenant identity mismatch",
		},
	)

	AuthzDeniedCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_authz_denied_total",
			Help: "Total number of denied authorization decisions",
		},
		[]string{"action", "reason"},
	)

	WorkflowTransitionsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_workflow_transitions_total",
			Help: "Total number of purchase request state transitions",
		},
		[]string{"to_state"},
	)

	WorkflowStaleStateCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_workflow_stale_state_total",
			Help: "Total number of transitions lost to a concurrent attempt",
		},
	)

	EventsPublishedCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_events_published_total",
			Help: "Total number of events published to the org channel",
		},
		[]string{"type"},
	)

	EventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_event_publish_errors_total",
			Help: "Total number of event publish failures after retries",
		},
	)

	RateLimitTrippedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_rate_limit_tripped_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	DbOperationDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)
}

// TrackDBOperation returns a function that records the duration of a
// database operation when invoked, intended to be used with defer
func TrackDBOperation(operationType string) func(time.Time) {
	return func(start time.Time) {
		DbOperationDuration.WithLabelValues(operationType).Observe(time.Since(start).Seconds())
	}
}
