// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// ActiveConnections tracks current in-flight requests.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of active connections",
		},
	)

	// StoreOperationDuration measures store call latency by backend and operation.
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"backend", "operation"},
	)

	// MappingsAllocatedTotal counts mappings created by the allocator.
	MappingsAllocatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mappings_allocated_total",
			Help: "Total number of short code mappings allocated",
		},
	)

	// AllocationCollisionsTotal counts candidate codes that were already taken.
	AllocationCollisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_collisions_total",
			Help: "Total number of short code collisions by detection stage",
		},
		[]string{"stage"},
	)

	// AllocationFallbacksTotal counts allocations that needed the long code.
	AllocationFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_fallbacks_total",
			Help: "Total number of allocations that fell back to a longer code",
		},
	)

	// AllocationExhaustedTotal counts allocations that failed outright.
	AllocationExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_exhausted_total",
			Help: "Total number of allocations that exhausted the code space",
		},
	)

	// RedirectsTotal counts resolved redirects.
	RedirectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redirects_total",
			Help: "Total number of redirect requests",
		},
	)

	// RateLimitDecisionsTotal counts rate checks by outcome.
	RateLimitDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Total number of rate limit decisions by outcome",
		},
		[]string{"decision"},
	)

	// RateWindowsSweptTotal counts expired rate windows removed by the janitor.
	RateWindowsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_windows_swept_total",
			Help: "Total number of expired rate windows removed",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records an HTTP request metric.
func RecordRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStoreOperation records how long a store call took.
func RecordStoreOperation(backend, operation string, duration time.Duration) {
	StoreOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordMappingAllocated records a successful allocation.
func RecordMappingAllocated() {
	MappingsAllocatedTotal.Inc()
}

// RecordAllocationCollision records a taken candidate code.
func RecordAllocationCollision(stage string) {
	AllocationCollisionsTotal.WithLabelValues(stage).Inc()
}

// RecordAllocationFallback records a fallback to the long code.
func RecordAllocationFallback() {
	AllocationFallbacksTotal.Inc()
}

// RecordAllocationExhausted records a failed allocation.
func RecordAllocationExhausted() {
	AllocationExhaustedTotal.Inc()
}

// RecordRedirect records a redirect.
func RecordRedirect() {
	RedirectsTotal.Inc()
}

// RecordRateDecision records an allowed or denied rate check.
func RecordRateDecision(allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	RateLimitDecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordRateError records a rate check that could not be decided.
func RecordRateError() {
	RateLimitDecisionsTotal.WithLabelValues("error").Inc()
}

// RecordWindowsSwept records expired rate windows removed in one sweep.
func RecordWindowsSwept(n int64) {
	RateWindowsSweptTotal.Add(float64(n))
}
