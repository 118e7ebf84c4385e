package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vigila"

var (
	// RequestsTotal counts HTTP requests by route and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration observes HTTP request latency by route.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// IngestTotal counts ingestion outcomes (stored, skipped_storage, rejected, storage_failed, persist_failed).
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_total",
			Help:      "Video ingestion attempts by outcome",
		},
		[]string{"outcome"},
	)

	// IngestBytes counts bytes of successfully ingested videos.
	IngestBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_bytes_total",
			Help:      "Bytes of successfully ingested videos",
		},
	)

	// OrphansTotal counts objects left without a metadata row, by applied policy.
	OrphansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphaned_objects_total",
			Help:      "Objects written whose metadata insert failed",
		},
		[]string{"policy"},
	)

	// OrphanJobsTotal counts orphan cleanup jobs handled by the worker, by result.
	OrphanJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_jobs_total",
			Help:      "Orphan cleanup jobs by result (deleted, retried, dead_lettered)",
		},
		[]string{"result"},
	)

	// StorageOperations observes object store call latency by operation and status.
	StorageOperations = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_duration_seconds",
			Help:      "Object store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	// DatabaseUp is 1 while a relational session is established.
	DatabaseUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "database_up",
			Help:      "Whether the PostgreSQL session is established",
		},
	)

	// DatabaseConnectAttempts counts connection attempts by result.
	DatabaseConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_connect_attempts_total",
			Help:      "PostgreSQL connection attempts by result",
		},
		[]string{"result"},
	)
)

// RecordRequest records one HTTP request.
func RecordRequest(method, route, status string, d time.Duration) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveStorage records an object store call. Use with defer and a named error result.
func ObserveStorage(operation string, start time.Time, err *error) {
	status := "ok"
	if err != nil && *err != nil {
		status = "error"
	}
	StorageOperations.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}
