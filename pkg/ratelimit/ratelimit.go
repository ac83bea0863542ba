package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"streampipe/internal/broker"
	"streampipe/internal/config"
	"streampipe/pkg/metrics"
	"streampipe/pkg/models"
)

// LimitedProducer applies a token-bucket limit ahead of every publish. It
// waits for a token rather than rejecting, so publish order is preserved.
type LimitedProducer struct {
	inner   broker.Producer
	limiter *rate.Limiter
}

func WrapProducer(inner broker.Producer, cfg config.RateLimitConfig) *LimitedProducer {
	return &LimitedProducer{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
	}
}

func (p *LimitedProducer) Publish(ctx context.Context, topic string, env models.Envelope) error {
	if !p.limiter.Allow() {
		metrics.RateLimitWaitsTotal.Inc()
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return p.inner.Publish(ctx, topic, env)
}

func (p *LimitedProducer) Close() error {
	return p.inner.Close()
}
