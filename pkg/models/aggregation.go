package models

import "time"

// AggregationResult summarizes one batch. WindowStart/WindowEnd are the
// min/max receipt timestamps of the contained messages and are zero when
// MessageCount is zero; callers must check the count first.
type AggregationResult struct {
	MessageCount   int                     `json:"message_count"`
	TopicCounts    map[string]int          `json:"topics"`
	WindowStart    time.Time               `json:"start_time"`
	WindowEnd      time.Time               `json:"end_time"`
	NumericSummary map[string]FieldSummary `json:"numeric_summary,omitempty"`
}

// FieldSummary describes one field over the subset of batch messages where
// that field held a numeric value.
type FieldSummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// ToPayload flattens the result into a publishable value mapping.
func (r AggregationResult) ToPayload() map[string]interface{} {
	topics := make(map[string]interface{}, len(r.TopicCounts))
	for t, n := range r.TopicCounts {
		topics[t] = n
	}

	payload := map[string]interface{}{
		"message_count": r.MessageCount,
		"topics":        topics,
	}
	if r.MessageCount > 0 {
		payload["start_time"] = r.WindowStart.Format(time.RFC3339Nano)
		payload["end_time"] = r.WindowEnd.Format(time.RFC3339Nano)
	}
	if len(r.NumericSummary) > 0 {
		summary := make(map[string]interface{}, len(r.NumericSummary))
		for field, s := range r.NumericSummary {
			summary[field] = map[string]interface{}{
				"count": s.Count,
				"mean":  s.Mean,
				"min":   s.Min,
				"max":   s.Max,
				"p50":   s.P50,
				"p95":   s.P95,
				"p99":   s.P99,
			}
		}
		payload["numeric_summary"] = summary
	}
	return payload
}
