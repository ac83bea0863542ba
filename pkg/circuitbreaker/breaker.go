package circuitbreaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"streampipe/internal/broker"
	"streampipe/internal/config"
	"streampipe/pkg/metrics"
	"streampipe/pkg/models"
)

// BreakerProducer wraps a broker.Producer so that a broker outage trips the
// circuit instead of stalling the processing loop on every publish.
type BreakerProducer struct {
	inner broker.Producer
	cb    *gobreaker.CircuitBreaker
}

func WrapProducer(inner broker.Producer, name string, cfg config.CircuitBreakerConfig) *BreakerProducer {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
	}

	failureRatio := cfg.FailureRatio
	if failureRatio <= 0 {
		failureRatio = 0.5
	}
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 3
	}
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		ratio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= minRequests && ratio >= failureRatio
	}
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		updateStateMetric(name, to)
	}
	if settings.Interval == 0 {
		settings.Interval = 60 * time.Second
	}
	if settings.Timeout == 0 {
		settings.Timeout = 60 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	updateStateMetric(name, cb.State())

	return &BreakerProducer{inner: inner, cb: cb}
}

func (p *BreakerProducer) Publish(ctx context.Context, topic string, env models.Envelope) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.inner.Publish(ctx, topic, env)
	})
	return err
}

func (p *BreakerProducer) Close() error {
	return p.inner.Close()
}

func (p *BreakerProducer) State() gobreaker.State {
	return p.cb.State()
}

func updateStateMetric(name string, state gobreaker.State) {
	var v float64
	switch state {
	case gobreaker.StateClosed:
		v = 0
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(v)
}
