package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"streampipe/internal/config"
	"streampipe/internal/constants"
	"streampipe/internal/logger"
	"streampipe/internal/orchestrator"
	"streampipe/internal/transform"
	"streampipe/pkg/bootstrap"
	"streampipe/pkg/health"
	"streampipe/pkg/metrics"
	"streampipe/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	orch           *orchestrator.Orchestrator
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("stream-processor")
	}
	return &App{
		Base: bootstrap.NewBase(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.InitBroker("stream-processor"); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, "stream-processor")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterPipelineMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}
	if a.Config.RateLimit.Enabled {
		metrics.RegisterRateLimitMetrics()
	}

	a.orch = orchestrator.New(
		orchestrator.Config{
			Topics:            a.Config.Pipeline.Topics,
			BatchMaxSize:      a.Config.Pipeline.BatchMaxSize,
			BatchMaxWait:      a.Config.Pipeline.BatchMaxWait(),
			PublishAckTimeout: a.Config.Pipeline.PublishAckTimeout(),
			PublishMaxRetries: a.Config.Pipeline.PublishMaxRetries,
			DLQTopic:          a.Config.Broker.Kafka.DLQTopic,
		},
		a.Config.Pipeline.MaxBufferSize,
		a.Producer,
		a.Subscriber,
		a.Logger,
	)

	a.setupPipelines()

	if err := a.initHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

// setupPipelines registers the default user-event pipelines for deployments
// that subscribe to user_events: a processed_at stamp, a scaled user score,
// a segment lookup placeholder, and the adult-active filter.
func (a *App) setupPipelines() {
	registry := a.orch.Registry()

	for _, topic := range a.Config.Pipeline.Topics {
		if topic != "user_events" {
			continue
		}

		registry.RegisterEnrichment(topic, []transform.EnrichmentRule{
			{Field: "processed_at", Kind: transform.RuleStampTimestamp},
			{Field: "user_score", Kind: transform.RuleComputeScaled, Multiplier: 1.5},
			{Field: "user_segment", Kind: transform.RuleLookup},
		})

		registry.RegisterFilter(topic, []transform.FilterCondition{
			{Field: "age", Kind: transform.ConditionRange, Min: 18, Max: 100},
			{Field: "status", Kind: transform.ConditionEquals, Equals: "active"},
		})
	}
}

func (a *App) initHTTPServer(ctx context.Context) error {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: mux,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		return a.orch.Run(gCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.InfowCtx(ctx, "Shutting down stream processor")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
