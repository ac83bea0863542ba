package bootstrap

import (
	"context"
	"fmt"

	"streampipe/internal/broker"
	"streampipe/internal/config"
	"streampipe/internal/logger"
	"streampipe/pkg/circuitbreaker"
	"streampipe/pkg/ratelimit"
)

type Base struct {
	Config     *config.Config
	Logger     logger.Logger
	Producer   broker.Producer
	Subscriber broker.Subscriber
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitBroker builds the producer and subscriber, layering the configured
// rate limiter and circuit breaker around the producer.
func (b *Base) InitBroker(serviceName string) error {
	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}

	subscriber, err := broker.NewSubscriber(b.Config.Broker, b.Logger)
	if err != nil {
		producer.Close()
		return fmt.Errorf("failed to create subscriber: %w", err)
	}

	wrapped := producer
	if b.Config.RateLimit.Enabled {
		wrapped = ratelimit.WrapProducer(wrapped, b.Config.RateLimit)
	}
	if b.Config.CircuitBreaker.Enabled {
		wrapped = circuitbreaker.WrapProducer(wrapped, serviceName+"-producer", b.Config.CircuitBreaker)
	}

	b.Producer = wrapped
	b.Subscriber = subscriber
	return nil
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	if b.Subscriber != nil {
		if err := b.Subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("subscriber close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Infow("Shutting down application")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Infow("Application exited successfully")
	return nil
}
