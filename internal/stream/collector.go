package stream

import (
	"context"
	"time"

	"streampipe/internal/logger"
	"streampipe/pkg/metrics"
	"streampipe/pkg/models"
)

const (
	closeReasonSize     = "size"
	closeReasonTime     = "time"
	closeReasonShutdown = "shutdown"
)

// BatchCollector drains the buffer into batches bounded by maxSize and
// maxWait. The window timer starts when the first message arrives, so an
// idle pipeline produces no empty batches.
type BatchCollector struct {
	buffer *MessageBuffer
	logger logger.Logger
}

func NewBatchCollector(buffer *MessageBuffer, log logger.Logger) *BatchCollector {
	return &BatchCollector{
		buffer: buffer,
		logger: log,
	}
}

// Collect blocks until a batch closes. It returns early with whatever has
// been gathered (possibly nothing) when ctx is canceled; no message that was
// taken from the buffer is ever discarded.
func (c *BatchCollector) Collect(ctx context.Context, maxSize int, maxWait time.Duration) models.Batch {
	batch := models.Batch{
		Messages: make([]models.StreamMessage, 0, maxSize),
	}

	first, ok := c.buffer.Take(ctx, 0)
	if !ok {
		batch.ClosedAt = time.Now()
		metrics.BatchesCollectedTotal.WithLabelValues(closeReasonShutdown).Inc()
		return batch
	}

	batch.OpenedAt = time.Now()
	batch.Messages = append(batch.Messages, first)
	deadline := batch.OpenedAt.Add(maxWait)

	reason := closeReasonSize
	for len(batch.Messages) < maxSize {
		if ctx.Err() != nil {
			reason = closeReasonShutdown
			break
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			reason = closeReasonTime
			break
		}

		msg, ok := c.buffer.Take(ctx, remaining)
		if !ok {
			if ctx.Err() != nil {
				reason = closeReasonShutdown
			} else {
				reason = closeReasonTime
			}
			break
		}
		batch.Messages = append(batch.Messages, msg)
	}

	batch.ClosedAt = time.Now()
	metrics.BatchesCollectedTotal.WithLabelValues(reason).Inc()
	metrics.BatchSize.Observe(float64(len(batch.Messages)))

	c.logger.DebugwCtx(ctx, "Batch closed",
		"size", len(batch.Messages),
		"reason", reason,
		"age_ms", batch.ClosedAt.Sub(batch.OpenedAt).Milliseconds(),
	)

	return batch
}
