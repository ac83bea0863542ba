package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	EnrichedTopicSuffix = "_enriched"
	FilteredTopicSuffix = "_filtered"
	AggregationTopic    = "aggregated_metrics"
	AggregationKey      = "aggregation"
)

const (
	MessageSource = "stream-processor"
)

const (
	DefaultBufferSize     = 1000
	DefaultBatchMaxSize   = 50
	DefaultBatchMaxWait   = 5 * time.Second
	DefaultPublishTimeout = 1 * time.Second
	DefaultPublishRetries = 3
)

const (
	ShutdownTimeout   = 5 * time.Second
	FeederJoinTimeout = 5 * time.Second
	DrainTakeTimeout  = 50 * time.Millisecond
)

// Consecutive fetch failures a subscriber tolerates before it gives up and
// reports a connection error to its feeder.
const MaxConsecutiveFetchFailures = 5
