package models

import "time"

// Envelope is the wire format for everything this service publishes back to
// the broker. Payload carries the business data; Metadata carries pipeline
// provenance so downstream consumers can tell derived streams apart.
type Envelope struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Key       string                 `json:"key,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  Metadata               `json:"metadata,omitempty"`
}

type Metadata struct {
	Stream      string   `json:"stream,omitempty"`
	SourceTopic string   `json:"source_topic,omitempty"`
	DLQ         *DLQInfo `json:"dlq,omitempty"`
}

// DLQInfo is attached when a derived message exhausted its publish retries
// and was diverted to the dead-letter topic.
type DLQInfo struct {
	Reason      string    `json:"reason"`
	TargetTopic string    `json:"target_topic"`
	FailedAt    time.Time `json:"failed_at"`
}

const (
	StreamEnriched   = "enriched"
	StreamFiltered   = "filtered"
	StreamAggregated = "aggregated"
)
