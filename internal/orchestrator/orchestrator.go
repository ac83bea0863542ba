package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"streampipe/internal/aggregate"
	"streampipe/internal/broker"
	"streampipe/internal/constants"
	"streampipe/internal/logger"
	"streampipe/internal/stream"
	"streampipe/internal/transform"
	"streampipe/pkg/logging"
	"streampipe/pkg/metrics"
	"streampipe/pkg/models"
	"streampipe/pkg/retry"
	"streampipe/pkg/tracing"
)

type State int

const (
	StateStopped State = iota
	StateRunning
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Config is the subset of pipeline configuration the orchestrator acts on.
type Config struct {
	Topics            []string
	BatchMaxSize      int
	BatchMaxWait      time.Duration
	PublishAckTimeout time.Duration
	PublishMaxRetries int
	DLQTopic          string
}

// Orchestrator owns the buffer and the transform registry for its lifetime
// and drives the collect, transform, aggregate, publish loop. One feeder
// goroutine per subscribed topic moves messages into the buffer; everything
// downstream of the buffer runs on the orchestrator's own goroutine.
type Orchestrator struct {
	cfg        Config
	buffer     *stream.MessageBuffer
	collector  *stream.BatchCollector
	registry   *transform.Registry
	aggregator *aggregate.Aggregator
	producer   broker.Producer
	subscriber broker.Subscriber
	logger     logger.Logger

	mu       sync.Mutex
	state    State
	feederWG sync.WaitGroup
}

func New(cfg Config, bufferSize int, producer broker.Producer, subscriber broker.Subscriber, log logger.Logger) *Orchestrator {
	buffer := stream.NewMessageBuffer(bufferSize)
	return &Orchestrator{
		cfg:        cfg,
		buffer:     buffer,
		collector:  stream.NewBatchCollector(buffer, log),
		registry:   transform.NewRegistry(log),
		aggregator: aggregate.NewAggregator(log),
		producer:   producer,
		subscriber: subscriber,
		logger:     log,
	}
}

// Registry exposes the transform registry so pipelines can be set up before
// Run is called.
func (o *Orchestrator) Registry() *transform.Registry {
	return o.registry
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run drives the pipeline until ctx is canceled, then drains the buffer,
// flushes the final batch, and joins the feeders with a bounded timeout.
// It is not re-entrant: a second call while running or draining fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateStopped {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("orchestrator is %s, cannot start", state)
	}
	o.state = StateRunning
	o.mu.Unlock()
	defer o.setState(StateStopped)

	o.logger.InfowCtx(ctx, "Orchestrator starting",
		"topics", o.cfg.Topics,
		"batch_max_size", o.cfg.BatchMaxSize,
		"batch_max_wait", o.cfg.BatchMaxWait,
	)

	for _, topic := range o.cfg.Topics {
		o.feederWG.Add(1)
		go o.runFeeder(ctx, topic)
	}

	// Publishes outlive the run context so shutdown never cuts off an
	// in-flight batch; each individual publish is still bounded by the ack
	// timeout.
	pubCtx := context.WithoutCancel(ctx)

	for {
		batch := o.collector.Collect(ctx, o.cfg.BatchMaxSize, o.cfg.BatchMaxWait)
		o.processBatch(pubCtx, batch)
		if ctx.Err() != nil {
			break
		}
	}

	o.setState(StateDraining)
	o.logger.InfowCtx(pubCtx, "Shutdown signal observed, draining buffer",
		"buffered", o.buffer.Len(),
	)
	o.drain(pubCtx)
	o.joinFeeders(pubCtx)

	o.logger.InfowCtx(pubCtx, "Orchestrator stopped")
	return nil
}

func (o *Orchestrator) runFeeder(ctx context.Context, topic string) {
	defer o.feederWG.Done()
	fCtx := logging.WithTopic(ctx, topic)

	err := o.subscriber.Subscribe(ctx, topic, func(mCtx context.Context, msg models.StreamMessage) error {
		if err := o.buffer.Put(mCtx, msg); err != nil {
			return err
		}
		metrics.MessagesConsumedTotal.WithLabelValues(topic).Inc()
		return nil
	})
	if err != nil {
		// Fatal to this feeder only; the rest of the pipeline keeps going
		// on the remaining topics.
		metrics.FeederExitsTotal.WithLabelValues(topic, "error").Inc()
		o.logger.ErrorwCtx(fCtx, "Feeder exited with error",
			"error", err,
		)
		return
	}

	metrics.FeederExitsTotal.WithLabelValues(topic, "shutdown").Inc()
	o.logger.InfowCtx(fCtx, "Feeder exited")
}

func (o *Orchestrator) processBatch(ctx context.Context, batch models.Batch) {
	if batch.IsEmpty() {
		return
	}

	bCtx := logging.WithBatchID(ctx, uuid.NewString())
	bCtx, span := tracing.GetTracer("orchestrator").Start(bCtx, "pipeline.process_batch")
	defer span.End()

	for _, msg := range batch.Messages {
		for _, d := range o.registry.Apply(bCtx, msg) {
			o.publishDerived(bCtx, msg.Topic, d)
		}
	}

	result := o.aggregator.Aggregate(batch)
	env := models.NewEnvelopeBuilder().
		WithSource(constants.MessageSource).
		WithKey(constants.AggregationKey).
		WithPayload(result.ToPayload()).
		WithStream(models.StreamAggregated).
		Build()
	o.publishEnvelope(bCtx, constants.AggregationTopic, *env)

	o.logger.InfowCtx(bCtx, "Batch processed",
		"size", batch.Size(),
		"topics", result.TopicCounts,
	)
}

func (o *Orchestrator) publishDerived(ctx context.Context, sourceTopic string, d models.DerivedMessage) {
	env := models.NewEnvelopeBuilder().
		WithSource(constants.MessageSource).
		WithKey(d.Key).
		WithPayload(d.Value).
		WithStream(d.Stream).
		WithSourceTopic(sourceTopic).
		Build()
	o.publishEnvelope(ctx, d.Topic, *env)
}

// publishEnvelope retries a timed-out publish up to the configured bound.
// Publishes from the same batch stay in order because retries happen inline,
// never concurrently. A publish that still fails is reported for that one
// message and, when a dead-letter topic is configured, diverted there.
func (o *Orchestrator) publishEnvelope(ctx context.Context, topic string, env models.Envelope) {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = o.cfg.PublishMaxRetries + 1

	err := retry.RetryWithCallback(ctx, policy, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.PublishAckTimeout)
		defer cancel()
		return o.producer.Publish(attemptCtx, topic, env)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.PublishRetriesTotal.WithLabelValues(topic).Inc()
		o.logger.WarnwCtx(ctx, "Retrying publish",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"target_topic", topic,
		)
	})
	if err == nil {
		return
	}

	metrics.PublishFailuresTotal.WithLabelValues(topic).Inc()
	o.logger.ErrorwCtx(ctx, "Publish failed after retries",
		"error", err,
		"target_topic", topic,
		"envelope_id", env.ID,
	)
	o.sendToDLQ(ctx, topic, env, err)
}

func (o *Orchestrator) sendToDLQ(ctx context.Context, targetTopic string, env models.Envelope, cause error) {
	if o.cfg.DLQTopic == "" {
		return
	}

	env.Metadata.DLQ = &models.DLQInfo{
		Reason:      cause.Error(),
		TargetTopic: targetTopic,
		FailedAt:    time.Now(),
	}

	dlqCtx, cancel := context.WithTimeout(ctx, o.cfg.PublishAckTimeout)
	defer cancel()
	if err := o.producer.Publish(dlqCtx, o.cfg.DLQTopic, env); err != nil {
		o.logger.ErrorwCtx(ctx, "Failed to publish to DLQ",
			"error", err,
			"dlq_topic", o.cfg.DLQTopic,
			"envelope_id", env.ID,
		)
		return
	}

	metrics.DLQMessagesTotal.WithLabelValues(targetTopic).Inc()
	o.logger.InfowCtx(ctx, "Message diverted to DLQ",
		"dlq_topic", o.cfg.DLQTopic,
		"target_topic", targetTopic,
		"envelope_id", env.ID,
	)
}

// drain empties whatever the feeders managed to buffer before they observed
// the shutdown signal, processing full batches as it goes.
func (o *Orchestrator) drain(pubCtx context.Context) {
	drainCtx := context.Background()
	for {
		batch := models.Batch{
			Messages: make([]models.StreamMessage, 0, o.cfg.BatchMaxSize),
		}
		batch.OpenedAt = time.Now()
		for len(batch.Messages) < o.cfg.BatchMaxSize {
			msg, ok := o.buffer.Take(drainCtx, constants.DrainTakeTimeout)
			if !ok {
				break
			}
			batch.Messages = append(batch.Messages, msg)
		}
		batch.ClosedAt = time.Now()

		if batch.IsEmpty() {
			return
		}
		o.processBatch(pubCtx, batch)
		if batch.Size() < o.cfg.BatchMaxSize {
			// The last take timed out, so the buffer is empty.
			return
		}
	}
}

func (o *Orchestrator) joinFeeders(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		o.feederWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.InfowCtx(ctx, "All feeders joined")
	case <-time.After(constants.FeederJoinTimeout):
		o.logger.WarnwCtx(ctx, "Feeder join timed out, abandoning remaining feeders",
			"timeout", constants.FeederJoinTimeout,
		)
	}
}
