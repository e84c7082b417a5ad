// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AutomationJobsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_jobs_started_total",
			Help: "Total number of automation jobs started",
		},
		[]string{"registration_type"},
	)

	AutomationJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_jobs_completed_total",
			Help: "Total number of automation jobs completed",
		},
		[]string{"strategy"},
	)

	AutomationJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_jobs_failed_total",
			Help: "Total number of automation jobs failed",
		},
		[]string{"stage", "error_code"},
	)

	AutomationStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automation_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	AutomationStageRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_stage_retries_total",
			Help: "Retries of transient stage failures",
		},
		[]string{"stage"},
	)

	AutomationRunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "automation_runs_active",
			Help: "Number of pipeline runs currently executing",
		},
	)

	AutomationQueueOverflow = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "automation_queue_overflow_total",
			Help: "Runs dispatched outside the worker pool because the queue was full",
		},
	)

	AutomationTerminalWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_terminal_write_failures_total",
			Help: "Terminal job writes abandoned after the retry budget",
		},
		[]string{"status"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_http_requests_total",
			Help: "HTTP requests served by the polling API",
		},
		[]string{"method", "route", "status"},
	)
)
