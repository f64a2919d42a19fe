package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// SSOExchangesTotal counts SSO token exchanges by result (success,
	// validation_error, unauthorized, forbidden, not_found, internal_error).
	SSOExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_sso_exchanges_total",
			Help: "Total SSO token exchanges by result",
		},
		[]string{"result"},
	)

	// TenantContextMissing counts tenant-scoped operations attempted without
	// an established context. Anything above zero is a bug.
	TenantContextMissing = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_tenant_context_missing_total",
			Help: "Tenant-scoped operations attempted without a tenant context",
		},
	)

	// UnreadStoreErrors counts Redis errors swallowed by the unread counter
	// engine while failing open to zero.
	UnreadStoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_unread_store_errors_total",
			Help: "Redis errors degraded to safe defaults by the unread engine",
		},
	)
)
