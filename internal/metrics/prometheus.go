// Package metrics defines the Prometheus metrics for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Dataset operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec

	// Resilience metrics
	RetryAttemptsTotal    *prometheus.CounterVec
	RetriesExhaustedTotal *prometheus.CounterVec
	BreakerTransitions    *prometheus.CounterVec
	BreakerRejections     *prometheus.CounterVec

	// Download metrics
	DownloadsTotal  *prometheus.CounterVec
	DownloadedBytes prometheus.Counter

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		OperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarry_operations_total",
				Help: "Total number of dataset operations processed",
			},
			[]string{"operation", "tenant"},
		),

		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quarry_operation_duration_seconds",
				Help:    "Duration of dataset operations",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
			},
			[]string{"operation"},
		),

		OperationErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarry_operation_errors_total",
				Help: "Total number of dataset operation errors",
			},
			[]string{"operation", "kind"},
		),

		RetryAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarry_retry_attempts_total",
				Help: "Total number of attempts made against external systems",
			},
			[]string{"operation"},
		),

		RetriesExhaustedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarry_retries_exhausted_total",
				Help: "Total number of operations that exhausted their retry budget",
			},
			[]string{"operation"},
		),

		BreakerTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarry_circuit_breaker_transitions_total",
				Help: "Total number of circuit breaker state transitions",
			},
			[]string{"breaker", "from", "to"},
		),

		BreakerRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarry_circuit_breaker_rejections_total",
				Help: "Total number of calls rejected by an open circuit breaker",
			},
			[]string{"breaker"},
		),

		DownloadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarry_file_downloads_total",
				Help: "Total number of file reference downloads",
			},
			[]string{"status"},
		),

		DownloadedBytes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "quarry_file_downloaded_bytes_total",
				Help: "Total bytes of file reference content downloaded",
			},
		),

		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarry_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),

		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quarry_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
	}
}

// RetryAttempt implements the resilience observer.
func (m *Metrics) RetryAttempt(operation string, attempt int) {
	m.RetryAttemptsTotal.WithLabelValues(operation).Inc()
}

// RetriesExhausted implements the resilience observer.
func (m *Metrics) RetriesExhausted(operation string, attempts int) {
	m.RetriesExhaustedTotal.WithLabelValues(operation).Inc()
}

// BreakerTransition implements the resilience observer.
func (m *Metrics) BreakerTransition(name, from, to string) {
	m.BreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// BreakerRejection implements the resilience observer.
func (m *Metrics) BreakerRejection(name string) {
	m.BreakerRejections.WithLabelValues(name).Inc()
}
