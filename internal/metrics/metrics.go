// Package metrics wires the hub's runtime counters to Prometheus via
// promauto, following the teacher's own metrics.go shape.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingress metrics: one counter per event kind / outcome, and a
	// latency histogram for the whole handler.
	IngressEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_ingress_events_total",
			Help: "Webhook events accepted by the ingress, by event kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	IngressDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hub_ingress_duration_seconds",
			Help:    "Time spent validating and dispatching a webhook delivery.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	IngressDuplicates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_ingress_duplicate_deliveries_total",
			Help: "Webhook deliveries rejected as duplicates by delivery id.",
		},
	)

	// Worker pool metrics: per-job-kind queue depth, processed count and
	// duration.
	WorkerJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_worker_jobs_total",
			Help: "Jobs processed by the worker pool, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hub_worker_job_duration_seconds",
			Help:    "Job execution duration, by kind.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	WorkerQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hub_worker_queue_depth",
			Help: "Number of jobs currently queued, by kind.",
		},
		[]string{"kind"},
	)

	// Adapter call metrics: source-host/tracker/chat outbound calls.
	AdapterCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_adapter_calls_total",
			Help: "Outbound adapter calls, by adapter and outcome.",
		},
		[]string{"adapter", "outcome"},
	)

	AdapterCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hub_adapter_call_duration_seconds",
			Help:    "Outbound adapter call duration, by adapter.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"adapter"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hub_circuit_breaker_state",
			Help: "Circuit breaker state by adapter: 0=closed, 1=open, 2=half-open.",
		},
		[]string{"adapter"},
	)

	// Directory pool metrics.
	DirPoolLeased = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_dirpool_leased",
			Help: "Number of directory-pool leases currently held.",
		},
	)

	DirPoolWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hub_dirpool_wait_duration_seconds",
			Help:    "Time spent waiting to acquire a directory-pool lease.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// ObserveAdapterCall records an outbound adapter call's outcome and
// duration; used by the retry wrapper around source-host/tracker/chat
// calls.
func ObserveAdapterCall(adapter string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	AdapterCallsTotal.WithLabelValues(adapter, outcome).Inc()
	AdapterCallDuration.WithLabelValues(adapter).Observe(d.Seconds())
}

// ObserveWorkerJob records a completed job's outcome and duration.
func ObserveWorkerJob(kind string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	WorkerJobsTotal.WithLabelValues(kind, outcome).Inc()
	WorkerJobDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveIngressEvent records an ingress outcome for a webhook delivery.
func ObserveIngressEvent(kind, outcome string, d time.Duration) {
	IngressEventsTotal.WithLabelValues(kind, outcome).Inc()
	IngressDuration.WithLabelValues(kind).Observe(d.Seconds())
}
