package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event intake metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackwatch_collector_events_total",
			Help: "Total number of events received",
		},
		[]string{"status"},
	)

	EventBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stackwatch_collector_event_bytes_total",
			Help: "Total bytes of event data received",
		},
	)

	// Admission metrics
	PostsBlockedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stackwatch_collector_posts_blocked_total",
			Help: "Total number of submissions blocked by the admission gate",
		},
	)

	PostsTooBigTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stackwatch_collector_posts_too_big_total",
			Help: "Total number of submissions rejected for exceeding the maximum payload size",
		},
	)

	PostsDiscardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stackwatch_collector_posts_discarded_total",
			Help: "Total number of submissions discarded because the organization was over its plan quota",
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackwatch_collector_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"identifier_kind"},
	)

	// Parsing metrics
	ParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stackwatch_collector_parse_errors_total",
			Help: "Total number of payloads that matched no format plugin",
		},
	)

	// Pipeline metrics
	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stackwatch_collector_pipeline_duration_seconds",
			Help:    "Duration of a single event pipeline run in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PipelineErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stackwatch_collector_pipeline_errors_total",
			Help: "Total number of events that failed in the pipeline",
		},
	)

	StacksCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stackwatch_collector_stacks_created_total",
			Help: "Total number of new stacks created",
		},
	)

	StackRegressions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stackwatch_collector_stack_regressions_total",
			Help: "Total number of fixed stacks that regressed",
		},
	)

	// Storage metrics
	StorageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stackwatch_collector_storage_duration_seconds",
			Help:    "Duration of event persistence operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StorageErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stackwatch_collector_storage_errors_total",
			Help: "Total number of event persistence errors",
		},
	)
)
