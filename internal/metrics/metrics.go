package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DetectionRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arbiter_detection_runs_total",
			Help: "Total number of overlap detection runs",
		},
	)

	DetectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arbiter_detection_duration_seconds",
			Help:    "Duration of overlap detection runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	OverlapsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arbiter_overlaps_detected_total",
			Help: "Total number of overlap cases emitted by detection",
		},
	)

	ScoreCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arbiter_score_cache_hits_total",
			Help: "Total number of composite scores served from the memo",
		},
	)

	ScoreCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arbiter_score_cache_misses_total",
			Help: "Total number of composite scores computed",
		},
	)

	ResolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arbiter_resolution_duration_seconds",
			Help:    "Duration of auto-resolve batches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	DecisionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_decisions_recorded_total",
			Help: "Total number of decisions recorded by strategy",
		},
		[]string{"strategy"},
	)

	JournalSinkFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arbiter_journal_sink_failures_total",
			Help: "Total number of journal entries the sink failed to persist",
		},
	)

	SweepsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_sweeps_completed_total",
			Help: "Total number of broker sweeps by outcome",
		},
		[]string{"outcome"},
	)

	RequestsRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_requests_rate_limited_total",
			Help: "Total number of API requests rejected by a rate limit, by route scope",
		},
		[]string{"scope"},
	)
)
