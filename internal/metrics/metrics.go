package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts cache reads by namespace and result (hit|miss).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_cache_lookups_total",
			Help: "Cache lookups by namespace and result.",
		},
		[]string{"namespace", "result"},
	)

	// CacheEvictions counts capacity evictions by namespace.
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_cache_evictions_total",
			Help: "Entries evicted to make room for new ones, by namespace.",
		},
		[]string{"namespace"},
	)

	// CacheWarmSteps counts warm-up step outcomes.
	CacheWarmSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_cache_warm_steps_total",
			Help: "Cache warm-up steps by step name and status.",
		},
		[]string{"step", "status"},
	)

	// CacheWarmDuration measures whole warm-up runs.
	CacheWarmDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricing_cache_warm_duration_seconds",
			Help:    "Duration of cache warm-up runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms → ~10s
		},
		[]string{"trigger"},
	)

	// CacheWarmSkipped counts ticks dropped because a run was still in flight.
	CacheWarmSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_cache_warm_skipped_total",
			Help: "Warm-up ticks skipped because the previous run had not finished.",
		},
	)

	// CacheInvalidations counts external invalidation messages by source and outcome.
	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_cache_invalidations_total",
			Help: "Invalidation requests by source (api|nats|rabbitmq) and outcome.",
		},
		[]string{"source", "outcome"},
	)

	// ResolverStoreErrors counts store failures swallowed by the price resolver.
	ResolverStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_resolver_store_errors_total",
			Help: "Store errors encountered while walking price levels.",
		},
		[]string{"level"},
	)

	// CalculationErrors counts calculation failures by endpoint and error type.
	CalculationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_calculation_errors_total",
			Help: "Failed calculations by endpoint and error type.",
		},
		[]string{"endpoint", "error_type"},
	)

	// APIRequestDuration measures handler latency.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricing_api_request_duration_seconds",
			Help:    "Duration of pricing API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms → ~4s
		},
		[]string{"endpoint", "status"},
	)

	// NATSPublishErrors tracks NATS publish failures by subject.
	NATSPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_publish_errors_total",
			Help: "Number of NATS publish failures by subject.",
		},
		[]string{"subject"},
	)
)

// IncCacheLookup records a cache hit or miss.
func IncCacheLookup(namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(namespace, result).Inc()
}

func IncCacheEviction(namespace string) {
	CacheEvictions.WithLabelValues(namespace).Inc()
}

func IncWarmStep(step, status string) {
	CacheWarmSteps.WithLabelValues(step, status).Inc()
}

func IncInvalidation(source, outcome string) {
	CacheInvalidations.WithLabelValues(source, outcome).Inc()
}

func IncResolverStoreError(level string) {
	ResolverStoreErrors.WithLabelValues(level).Inc()
}

func IncCalculationError(endpoint, errorType string) {
	CalculationErrors.WithLabelValues(endpoint, errorType).Inc()
}

// IncNATSPublishError increments the NATS publish error counter for the given subject.
func IncNATSPublishError(subject string) {
	NATSPublishErrors.WithLabelValues(subject).Inc()
}

// ObserveDuration records elapsed time since start into a HistogramVec or SummaryVec.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()
	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	}
}
