// Package metrics exposes Prometheus collectors for the API and ingestion.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Record outcomes used as the "outcome" label of ingestRecordsTotal.
const (
	OutcomeSaved   = "saved"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method, route and code.",
		},
		[]string{"method", "route", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
		},
		[]string{"method", "route"},
	)

	ingestFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_keyword_fetches_total",
			Help: "Provider fetches per keyword, labeled by provider and status.",
		},
		[]string{"provider", "status"},
	)

	ingestRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_records_total",
			Help: "Raw provider records handled, labeled by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	ingestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_runs_total",
			Help: "Ingestion runs finished, labeled by provider and status.",
		},
		[]string{"provider", "status"},
	)

	ingestRunDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_run_duration_seconds",
			Help:    "Wall time of a full keyword batch.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider"},
	)

	ingestActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_active_runs",
			Help: "Number of ingestion runs currently executing.",
		},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency per matched gin route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveFetch counts one keyword fetch; ok is false for failed fetches.
func ObserveFetch(provider string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	ingestFetchesTotal.WithLabelValues(provider, status).Inc()
}

// ObserveRecord counts one raw record by outcome.
func ObserveRecord(provider, outcome string) {
	ingestRecordsTotal.WithLabelValues(provider, outcome).Inc()
}

// ObserveRun records a finished run.
func ObserveRun(provider, status string, duration time.Duration) {
	ingestRunsTotal.WithLabelValues(provider, status).Inc()
	ingestRunDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
}

// IncActiveRuns increments the active runs gauge.
func IncActiveRuns() {
	ingestActiveRuns.Inc()
}

// DecActiveRuns decrements the active runs gauge.
func DecActiveRuns() {
	ingestActiveRuns.Dec()
}
