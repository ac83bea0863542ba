package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_messages_consumed_total",
			Help: "Total number of messages consumed from the broker (count)",
		},
		[]string{"topic"},
	)

	BufferDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_buffer_depth",
			Help: "Number of messages currently held in the message buffer (count)",
		},
	)

	BatchesCollectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_batches_collected_total",
			Help: "Total number of batches collected (count)",
		},
		[]string{"close_reason"},
	)

	BatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stream_batch_size",
			Help:    "Number of messages per collected batch (count)",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	TransformErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_transform_errors_total",
			Help: "Total number of per-message transform failures (count)",
		},
		[]string{"topic", "kind"},
	)

	DerivedMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_derived_messages_total",
			Help: "Total number of derived messages produced (count)",
		},
		[]string{"stream"},
	)

	PublishRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_publish_retries_total",
			Help: "Total number of publish retry attempts (count)",
		},
		[]string{"topic"},
	)

	PublishFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_publish_failures_total",
			Help: "Total number of publishes abandoned after exhausting retries (count)",
		},
		[]string{"topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_dlq_messages_total",
			Help: "Total number of messages diverted to the dead-letter topic (count)",
		},
		[]string{"target_topic"},
	)

	AggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stream_aggregation_duration_ms",
			Help:    "Batch aggregation duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	FeederExitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_feeder_exits_total",
			Help: "Total number of feeder task exits (count)",
		},
		[]string{"topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	RateLimitWaitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_rate_limit_waits_total",
			Help: "Total number of publishes delayed by the rate limiter (count)",
		},
	)
)

func RegisterPipelineMetrics() {
	prometheus.MustRegister(
		MessagesConsumedTotal,
		BufferDepth,
		BatchesCollectedTotal,
		BatchSize,
		TransformErrorsTotal,
		DerivedMessagesTotal,
		PublishRetriesTotal,
		PublishFailuresTotal,
		DLQMessagesTotal,
		AggregationDuration,
		FeederExitsTotal,
	)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
}

func RegisterRateLimitMetrics() {
	prometheus.MustRegister(RateLimitWaitsTotal)
}

func ObserveAggregationDuration(d time.Duration) {
	AggregationDuration.Observe(float64(d.Milliseconds()))
}
