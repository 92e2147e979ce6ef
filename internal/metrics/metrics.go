// Package metrics exposes Prometheus collectors for the proxy, the rate
// limiter, the upstream client and the caches.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "moviehub"

var (
	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_active_requests",
			Help:      "Number of requests currently being served",
		},
	)

	// Rate limiting
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limit admissions by outcome",
		},
		[]string{"outcome"}, // "admitted", "refused", "error"
	)

	// Upstream
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests sent to the upstream catalog API by outcome",
		},
		[]string{"category", "outcome"}, // outcome: "success", "upstream_error", "transport_error"
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of upstream catalog API calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"category"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Caches
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by layer and result",
		},
		[]string{"layer", "result"}, // layer: "upstream", "page"; result: "hit", "miss"
	)

	// Aggregation
	AggregationUpstreamPages = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_upstream_pages",
			Help:      "Upstream pages fetched per aggregated page",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
	)
)

// RecordAPIRequest records one served request
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimit records an admission decision
func RecordRateLimit(outcome string) {
	RateLimitDecisions.WithLabelValues(outcome).Inc()
}

// RecordUpstream records one upstream call
func RecordUpstream(category, outcome string, duration time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(category, outcome).Inc()
	UpstreamRequestDuration.WithLabelValues(category).Observe(duration.Seconds())
}

// RecordCacheLookup records a hit or miss for a cache layer
func RecordCacheLookup(layer string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(layer, result).Inc()
}
