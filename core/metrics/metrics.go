// Package metrics exposes Prometheus collectors for the sync pipeline.
//
// Collectors are registered on the default registry at package init through
// promauto and served by the start command at /metrics. Components never touch
// the collectors directly; they receive one of the small observer types below,
// which keeps the discovery and reconcile packages free of Prometheus imports.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "discovery_sync"

var (
	// UpstreamRequests counts HTTP exchanges with the appliance by endpoint and status code.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Requests sent to the discovery API",
	}, []string{"endpoint", "code"})

	// UpstreamLatency tracks request latency by endpoint.
	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Latency of discovery API requests",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"endpoint"})

	// RowsWritten counts rows accepted by the database per table.
	RowsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_written_total",
		Help:      "Rows written to the mirror",
	}, []string{"table"})

	// RowFailures counts rows dropped after the per-row fallback failed.
	RowFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "row_failures_total",
		Help:      "Rows that could not be written",
	}, []string{"table"})

	// WriteRetries counts batch retries caused by write conflicts.
	WriteRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "write_retries_total",
		Help:      "Batch write retries after a deadlock or lock timeout",
	}, []string{"table"})

	// BatchFallbacks counts batches that degraded to per-row writes.
	BatchFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batch_fallbacks_total",
		Help:      "Batches that fell back to per-row writes",
	}, []string{"table"})

	// Runs counts finished sync runs by status.
	Runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Finished sync runs",
	}, []string{"status"})

	// RunDuration tracks the wall time of sync runs.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of sync runs",
		Buckets:   prometheus.ExponentialBuckets(30, 2, 10),
	})

	// LastRunTimestamp is the unix time the last run finished.
	LastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last finished run",
	})

	// RelationshipsDiscarded counts edges filtered out by target kind.
	RelationshipsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relationships_discarded_total",
		Help:      "Edges whose target kind is not allowed",
	})
)

// Upstream implements discovery.Observer.
type Upstream struct{}

// ObserveRequest records one HTTP exchange. A zero status means a transport error.
func (Upstream) ObserveRequest(endpoint string, status int, elapsed time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	UpstreamRequests.WithLabelValues(endpoint, code).Inc()
	UpstreamLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// Writes implements reconcile.Observer.
type Writes struct{}

func (Writes) ObserveWritten(table string, rows int) {
	RowsWritten.WithLabelValues(table).Add(float64(rows))
}

func (Writes) ObserveRetry(table string) {
	WriteRetries.WithLabelValues(table).Inc()
}

func (Writes) ObserveFallback(table string) {
	BatchFallbacks.WithLabelValues(table).Inc()
}

func (Writes) ObserveRowFailure(table string) {
	RowFailures.WithLabelValues(table).Inc()
}

// Edges implements relationships.Observer.
type Edges struct{}

// ObserveDiscarded records edges dropped by the target kind filter.
func (Edges) ObserveDiscarded(n int) {
	RelationshipsDiscarded.Add(float64(n))
}

// ObserveRun records a finished run.
func ObserveRun(status string, elapsed time.Duration) {
	Runs.WithLabelValues(status).Inc()
	RunDuration.Observe(elapsed.Seconds())
	LastRunTimestamp.SetToCurrentTime()
}

// Handler serves the default registry on a Fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
