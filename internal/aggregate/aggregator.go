package aggregate

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"streampipe/internal/logger"
	"streampipe/pkg/metrics"
	"streampipe/pkg/models"
)

// Aggregator computes per-batch summary statistics. It performs no I/O and
// its output is fully determined by the batch contents.
type Aggregator struct {
	logger logger.Logger
}

func NewAggregator(log logger.Logger) *Aggregator {
	return &Aggregator{logger: log}
}

// Aggregate summarizes one batch: total and per-topic counts, the window
// covered by the messages' receipt timestamps, and a statistical summary for
// every field that is numeric on at least one message. For each such field
// only the messages where the value is numeric contribute; non-numeric and
// missing values are excluded, never coerced.
func (a *Aggregator) Aggregate(batch models.Batch) models.AggregationResult {
	start := time.Now()
	defer func() {
		metrics.ObserveAggregationDuration(time.Since(start))
	}()

	result := models.AggregationResult{
		MessageCount: batch.Size(),
		TopicCounts:  make(map[string]int),
	}
	if batch.IsEmpty() {
		return result
	}

	samples := make(map[string][]float64)

	for i, msg := range batch.Messages {
		result.TopicCounts[msg.Topic]++

		if i == 0 || msg.ReceivedAt.Before(result.WindowStart) {
			result.WindowStart = msg.ReceivedAt
		}
		if i == 0 || msg.ReceivedAt.After(result.WindowEnd) {
			result.WindowEnd = msg.ReceivedAt
		}

		for field, raw := range msg.Value {
			if n, ok := models.NumericValue(raw); ok {
				samples[field] = append(samples[field], n)
			}
		}
	}

	if len(samples) > 0 {
		result.NumericSummary = make(map[string]models.FieldSummary, len(samples))

		fields := make([]string, 0, len(samples))
		for field := range samples {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		for _, field := range fields {
			result.NumericSummary[field] = summarize(samples[field])
		}
	}

	return result
}

func summarize(values []float64) models.FieldSummary {
	data := stats.Float64Data(values)

	// These cannot fail on a non-empty sample; the zero value is fine on the
	// off chance they do.
	mean, _ := stats.Mean(data)
	min, _ := stats.Min(data)
	max, _ := stats.Max(data)
	p50, _ := stats.Percentile(data, 50)
	p95, _ := stats.Percentile(data, 95)
	p99, _ := stats.Percentile(data, 99)

	return models.FieldSummary{
		Count: len(values),
		Mean:  mean,
		Min:   min,
		Max:   max,
		P50:   p50,
		P95:   p95,
		P99:   p99,
	}
}
