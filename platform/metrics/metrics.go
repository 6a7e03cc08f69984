// Package metrics provides Prometheus collectors for the service.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leadfunnel"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	leadsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leads",
			Name:      "created_total",
			Help:      "Leads captured by classification",
		},
		[]string{"classification"},
	)

	nurtureJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "nurture",
			Name:      "jobs_total",
			Help:      "Nurture jobs processed by outcome",
		},
		[]string{"outcome"},
	)

	nurtureRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "nurture",
			Name:      "run_duration_seconds",
			Help:      "Duration of one dispatcher run",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	trackingEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracking",
			Name:      "events_total",
			Help:      "Tracking callbacks by kind and result",
		},
		[]string{"kind", "result"},
	)

	detachedDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detached",
			Name:      "dropped_total",
			Help:      "Detached tasks dropped because the queue was full",
		},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, path string, status int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// RecordLeadCreated counts a captured lead.
func RecordLeadCreated(classification string) {
	leadsCreated.WithLabelValues(classification).Inc()
}

// RecordNurtureJob counts one dispatched job outcome (sent, failed, cancelled).
func RecordNurtureJob(outcome string) {
	nurtureJobs.WithLabelValues(outcome).Inc()
}

// ObserveNurtureRun records the duration of one dispatcher run.
func ObserveNurtureRun(elapsed time.Duration) {
	nurtureRunDuration.Observe(elapsed.Seconds())
}

// RecordTracking counts an open or click side effect.
func RecordTracking(kind, result string) {
	trackingEvents.WithLabelValues(kind, result).Inc()
}

// RecordDetachedDropped counts a task rejected by a saturated runner.
func RecordDetachedDropped() {
	detachedDropped.Inc()
}
