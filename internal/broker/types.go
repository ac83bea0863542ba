package broker

import (
	"context"

	"streampipe/pkg/models"
)

// Producer publishes envelopes to the broker. Publish blocks until the write
// is acknowledged or ctx expires.
type Producer interface {
	Publish(ctx context.Context, topic string, env models.Envelope) error
	Close() error
}

// Subscriber delivers messages from one topic to a handler. Subscribe blocks
// the calling goroutine until ctx is canceled, Close is called, or the
// connection is lost for good.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
}

type HandlerFunc func(ctx context.Context, msg models.StreamMessage) error
