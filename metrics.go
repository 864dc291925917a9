package rawi

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector exposes Prometheus metrics for the fetch lifecycle and the
// cache, dedup and throttle layers. It is safe for concurrent use.
type MetricsCollector struct {
	fetchesTotal    *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	fetchesInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheSizeBytes     *prometheus.GaugeVec
	cacheEvictions     *prometheus.CounterVec
	cacheWriteFailures *prometheus.CounterVec

	dedupHits *prometheus.CounterVec

	throttleWait prometheus.Histogram

	errorsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		fetchesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawi_fetches_total",
				Help: "Total number of logical fetches by outcome status code",
			},
			[]string{"endpoint", "status_code"},
		),
		fetchDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rawi_fetch_duration_seconds",
				Help:    "Duration of logical fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		fetchesInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rawi_fetches_in_flight",
				Help: "Number of logical fetches currently executing",
			},
			[]string{"endpoint"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawi_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"endpoint", "attempt"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawi_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"endpoint"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawi_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"endpoint"},
		),
		cacheSizeBytes: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rawi_cache_size_bytes",
				Help: "Current total size of cached entries in bytes",
			},
			[]string{"name"},
		),
		cacheEvictions: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawi_cache_evictions_total",
				Help: "Total number of size-triggered cache evictions",
			},
			[]string{"name"},
		),
		cacheWriteFailures: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawi_cache_write_failures_total",
				Help: "Total number of swallowed cache write failures",
			},
			[]string{"name"},
		),
		dedupHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawi_dedup_hits_total",
				Help: "Total number of fetches coalesced onto an in-flight call",
			},
			[]string{"endpoint"},
		),
		throttleWait: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rawi_throttle_wait_seconds",
				Help:    "Time spent waiting for a transport permit",
				Buckets: prometheus.DefBuckets,
			},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawi_errors_total",
				Help: "Total number of errors by kind",
			},
			[]string{"kind", "endpoint"},
		),
	}
}

// RecordFetchStart marks a logical fetch as executing.
func (mc *MetricsCollector) RecordFetchStart(endpoint string) {
	mc.fetchesInFlight.WithLabelValues(endpoint).Inc()
}

// RecordFetchEnd marks a logical fetch as no longer executing.
func (mc *MetricsCollector) RecordFetchEnd(endpoint string) {
	mc.fetchesInFlight.WithLabelValues(endpoint).Dec()
}

// RecordFetch records the outcome and duration of one logical fetch.
func (mc *MetricsCollector) RecordFetch(endpoint string, statusCode int, duration time.Duration) {
	mc.fetchesTotal.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	mc.fetchDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordRetry records one retry attempt.
func (mc *MetricsCollector) RecordRetry(endpoint string, attempt int) {
	mc.retriesTotal.WithLabelValues(endpoint, strconv.Itoa(attempt)).Inc()
}

// RecordCacheHit records a cache hit.
func (mc *MetricsCollector) RecordCacheHit(endpoint string) {
	mc.cacheHits.WithLabelValues(endpoint).Inc()
}

// RecordCacheMiss records a cache miss.
func (mc *MetricsCollector) RecordCacheMiss(endpoint string) {
	mc.cacheMisses.WithLabelValues(endpoint).Inc()
}

// RecordCacheSizeBytes updates the cache size gauge.
func (mc *MetricsCollector) RecordCacheSizeBytes(name string, size int64) {
	mc.cacheSizeBytes.WithLabelValues(name).Set(float64(size))
}

// RecordCacheEviction records one size-triggered eviction.
func (mc *MetricsCollector) RecordCacheEviction(name string) {
	mc.cacheEvictions.WithLabelValues(name).Inc()
}

// RecordCacheWriteFailure records one swallowed cache write failure.
func (mc *MetricsCollector) RecordCacheWriteFailure(name string) {
	mc.cacheWriteFailures.WithLabelValues(name).Inc()
}

// RecordDedupHit records a fetch coalesced onto an in-flight call.
func (mc *MetricsCollector) RecordDedupHit(endpoint string) {
	mc.dedupHits.WithLabelValues(endpoint).Inc()
}

// RecordThrottleWait records time spent waiting for a transport permit.
func (mc *MetricsCollector) RecordThrottleWait(d time.Duration) {
	mc.throttleWait.Observe(d.Seconds())
}

// RecordError records one error by kind.
func (mc *MetricsCollector) RecordError(kind Kind, endpoint string) {
	mc.errorsTotal.WithLabelValues(string(kind), endpoint).Inc()
}

// endpointFromURL reduces a URL to host+path for metric labels, keeping
// cardinality independent of query parameters.
func endpointFromURL(rawURL string) string {
	if rawURL == "" {
		return "unknown"
	}
	trimmed := rawURL
	if i := strings.Index(trimmed, "://"); i >= 0 {
		trimmed = trimmed[i+3:]
	}
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
