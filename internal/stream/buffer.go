package stream

import (
	"context"
	"time"

	"streampipe/pkg/metrics"
	"streampipe/pkg/models"
)

// MessageBuffer decouples the per-topic feeders from the batch collector. It
// is a fixed-capacity FIFO: Put blocks when full, which is the backpressure
// that keeps ingestion from outrunning processing. Messages are never
// dropped or reordered relative to a single producer.
type MessageBuffer struct {
	ch chan models.StreamMessage
}

func NewMessageBuffer(capacity int) *MessageBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &MessageBuffer{
		ch: make(chan models.StreamMessage, capacity),
	}
}

// Put appends a message, blocking while the buffer is at capacity. The only
// failure mode is ctx expiring while blocked.
func (b *MessageBuffer) Put(ctx context.Context, msg models.StreamMessage) error {
	select {
	case b.ch <- msg:
		metrics.BufferDepth.Set(float64(len(b.ch)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Take removes and returns the oldest message. A timeout <= 0 means wait
// until a message arrives or ctx is canceled. The second return value is
// false when the wait ended without a message.
func (b *MessageBuffer) Take(ctx context.Context, timeout time.Duration) (models.StreamMessage, bool) {
	if timeout <= 0 {
		select {
		case msg := <-b.ch:
			metrics.BufferDepth.Set(float64(len(b.ch)))
			return msg, true
		case <-ctx.Done():
			return models.StreamMessage{}, false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-b.ch:
		metrics.BufferDepth.Set(float64(len(b.ch)))
		return msg, true
	case <-timer.C:
		return models.StreamMessage{}, false
	case <-ctx.Done():
		return models.StreamMessage{}, false
	}
}

func (b *MessageBuffer) Len() int {
	return len(b.ch)
}

func (b *MessageBuffer) Cap() int {
	return cap(b.ch)
}
