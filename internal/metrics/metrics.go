package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deleterr_runs_total",
			Help: "Total number of cleanup runs by outcome",
		},
		[]string{"outcome"}, // "success", "failed"
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deleterr_run_duration_seconds",
			Help:    "Duration of cleanup runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deleterr_last_run_timestamp_seconds",
			Help: "Unix time the last cleanup run finished",
		},
	)

	// Library metrics
	BytesFreed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deleterr_bytes_freed_total",
			Help: "Total bytes freed by deletions",
		},
		[]string{"library"},
	)

	Deletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deleterr_deletions_total",
			Help: "Total number of deletions by result",
		},
		[]string{"library", "result"}, // "deleted", "dry_run", "failed"
	)

	Protected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deleterr_protected_total",
			Help: "Items kept because a rule protected them",
		},
		[]string{"library", "rule"},
	)

	Unmatched = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deleterr_unmatched_items",
			Help: "Items with files that could not be matched to a media server item in the last pass",
		},
		[]string{"library"},
	)

	PreviewItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deleterr_leaving_soon_items",
			Help: "Items scheduled for deletion on the next run",
		},
		[]string{"library"},
	)

	LibrariesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deleterr_libraries_skipped_total",
			Help: "Library passes skipped before evaluation",
		},
		[]string{"library", "reason"}, // "disk_space", "config", "error"
	)

	// Integration metrics
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deleterr_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	BreakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deleterr_circuit_breaker_rejections_total",
			Help: "Calls refused because a circuit breaker was open",
		},
		[]string{"name"},
	)
)
