package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"streampipe/internal/config"
	"streampipe/internal/constants"
	"streampipe/internal/logger"
	"streampipe/pkg/errors"
	"streampipe/pkg/models"
	"streampipe/pkg/tracing"
)

type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
	return &KafkaProducer{writer: w, logger: log}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, env models.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(fmt.Errorf("marshal envelope: %w", err), errors.ErrValidation)
	}

	key := env.Key
	if key == "" {
		key = env.ID
	}

	headers := tracing.InjectTraceContext(ctx, nil)

	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     []byte(key),
			Value:   body,
			Headers: headers,
			Time:    time.Now(),
		},
	)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(err, errors.ErrPublishTimeout)
		}
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type KafkaSubscriber struct {
	cfg     config.KafkaConfig
	logger  logger.Logger
	mu      sync.Mutex
	readers []*kafka.Reader
	closed  bool
}

func NewKafkaSubscriber(cfg config.KafkaConfig, log logger.Logger) *KafkaSubscriber {
	return &KafkaSubscriber{
		cfg:    cfg,
		logger: log,
	}
}

// Subscribe consumes one topic until ctx is canceled. Messages whose value is
// not a JSON object are logged, committed, and skipped. Consecutive fetch
// failures past the threshold are treated as a lost connection.
func (s *KafkaSubscriber) Subscribe(ctx context.Context, topic string, handler HandlerFunc) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  s.cfg.Brokers,
		GroupID:  s.cfg.GroupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		reader.Close()
		return errors.ErrConnection.WithCause(fmt.Errorf("subscriber already closed"))
	}
	s.readers = append(s.readers, reader)
	s.mu.Unlock()

	s.logger.InfowCtx(ctx, "Started consuming",
		"topic", topic,
		"brokers", s.cfg.Brokers,
		"group_id", s.cfg.GroupID,
	)

	consecutiveFailures := 0
	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.InfowCtx(ctx, "Stopped consuming",
					"topic", topic,
					"reason", "context canceled",
				)
				return nil
			}
			consecutiveFailures++
			if consecutiveFailures >= constants.MaxConsecutiveFetchFailures {
				return errors.Wrap(fmt.Errorf("fetch from topic %s: %w", topic, err), errors.ErrConnection)
			}
			s.logger.ErrorwCtx(ctx, "Error fetching kafka message",
				"error", err,
				"topic", topic,
				"consecutive_failures", consecutiveFailures,
			)
			time.Sleep(time.Second)
			continue
		}
		consecutiveFailures = 0

		var value map[string]interface{}
		if err := json.Unmarshal(m.Value, &value); err != nil {
			s.logger.ErrorwCtx(ctx, "Failed to unmarshal message value",
				"error", err,
				"topic", topic,
				"offset", m.Offset,
			)
			_ = reader.CommitMessages(ctx, m)
			continue
		}

		msg := models.StreamMessage{
			Topic:      m.Topic,
			Key:        string(m.Key),
			Value:      value,
			ReceivedAt: time.Now(),
			Partition:  m.Partition,
			Offset:     m.Offset,
		}

		msgCtx, span := tracing.StartSpanFromKafkaMessage(ctx, "broker.consume", m.Headers)
		err = handler(msgCtx, msg)
		span.End()
		if err != nil {
			// The handler only fails when the pipeline is shutting down;
			// leave the message uncommitted for redelivery.
			if ctx.Err() != nil {
				return nil
			}
			s.logger.ErrorwCtx(ctx, "Handler rejected message",
				"error", err,
				"topic", topic,
				"offset", m.Offset,
			)
			continue
		}

		if err := reader.CommitMessages(ctx, m); err != nil {
			s.logger.ErrorwCtx(ctx, "Failed to commit message",
				"error", err,
				"topic", topic,
				"offset", m.Offset,
			)
		}
	}
}

func (s *KafkaSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true

	var err error
	for _, reader := range s.readers {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	s.readers = nil
	return err
}
