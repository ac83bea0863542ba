package transform

import (
	"context"
	"sync"
	"time"

	"streampipe/internal/constants"
	"streampipe/internal/logger"
	"streampipe/pkg/errors"
	"streampipe/pkg/metrics"
	"streampipe/pkg/models"
)

// Registry holds the enrichment and filter pipelines keyed by source topic.
// The two pipelines for a topic are independent: a message may land on the
// enriched stream, the filtered stream, both, or neither.
type Registry struct {
	mu          sync.RWMutex
	enrichments map[string][]EnrichmentRule
	filters     map[string][]FilterCondition
	logger      logger.Logger
	now         func() time.Time
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		enrichments: make(map[string][]EnrichmentRule),
		filters:     make(map[string][]FilterCondition),
		logger:      log,
		now:         time.Now,
	}
}

func (r *Registry) RegisterEnrichment(topic string, rules []EnrichmentRule) {
	r.mu.Lock()
	r.enrichments[topic] = append([]EnrichmentRule(nil), rules...)
	r.mu.Unlock()

	r.logger.Infow("Registered enrichment pipeline",
		"topic", topic,
		"rules", len(rules),
	)
}

func (r *Registry) RegisterFilter(topic string, conditions []FilterCondition) {
	r.mu.Lock()
	r.filters[topic] = append([]FilterCondition(nil), conditions...)
	r.mu.Unlock()

	r.logger.Infow("Registered filter pipeline",
		"topic", topic,
		"conditions", len(conditions),
	)
}

// Apply runs the pipelines registered for the message's topic and returns
// the derived messages to publish. A failure in one pipeline is logged and
// skipped without affecting the other pipeline or the rest of the batch.
func (r *Registry) Apply(ctx context.Context, msg models.StreamMessage) []models.DerivedMessage {
	r.mu.RLock()
	rules, hasEnrichment := r.enrichments[msg.Topic]
	conditions, hasFilter := r.filters[msg.Topic]
	r.mu.RUnlock()

	derived := make([]models.DerivedMessage, 0, 2)

	if hasEnrichment {
		enriched, err := r.enrichOne(msg, rules)
		if err != nil {
			metrics.TransformErrorsTotal.WithLabelValues(msg.Topic, "enrichment").Inc()
			r.logger.ErrorwCtx(ctx, "Enrichment failed, message skipped",
				"error", err,
				"topic", msg.Topic,
				"key", msg.Key,
			)
		} else {
			metrics.DerivedMessagesTotal.WithLabelValues(models.StreamEnriched).Inc()
			derived = append(derived, models.DerivedMessage{
				Topic:  msg.Topic + constants.EnrichedTopicSuffix,
				Key:    msg.Key,
				Stream: models.StreamEnriched,
				Value:  enriched,
			})
		}
	}

	if hasFilter {
		pass, err := r.filterOne(msg, conditions)
		if err != nil {
			metrics.TransformErrorsTotal.WithLabelValues(msg.Topic, "filter").Inc()
			r.logger.ErrorwCtx(ctx, "Filter evaluation failed, message skipped",
				"error", err,
				"topic", msg.Topic,
				"key", msg.Key,
			)
		} else if pass {
			metrics.DerivedMessagesTotal.WithLabelValues(models.StreamFiltered).Inc()
			derived = append(derived, models.DerivedMessage{
				Topic:  msg.Topic + constants.FilteredTopicSuffix,
				Key:    msg.Key,
				Stream: models.StreamFiltered,
				Value:  msg.Value,
			})
		}
	}

	return derived
}

func (r *Registry) enrichOne(msg models.StreamMessage, rules []EnrichmentRule) (result map[string]interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = errors.Wrap(errors.RecoverPanic(rec), errors.ErrTransform)
		}
	}()

	enriched := msg.CloneValue()
	now := r.now()

	for _, rule := range rules {
		switch rule.Kind {
		case RuleStampTimestamp:
			enriched[rule.Field] = now.Format(time.RFC3339Nano)
		case RuleComputeScaled:
			// Only applies when the message carries a numeric "value" field.
			if base, ok := models.NumericValue(enriched["value"]); ok {
				enriched[rule.Field] = base * rule.Multiplier
			}
		case RuleLookup:
			// Placeholder until a real lookup backend is attached.
			id := "unknown"
			if raw, present := enriched["id"]; present {
				id = stringify(raw)
			}
			enriched[rule.Field] = "lookup_" + id
		default:
			return nil, errors.ErrTransform.WithCause(
				errors.NewError("UNKNOWN_RULE_KIND", rule.Kind.String()))
		}
	}

	return enriched, nil
}

func (r *Registry) filterOne(msg models.StreamMessage, conditions []FilterCondition) (pass bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pass = false
			err = errors.Wrap(errors.RecoverPanic(rec), errors.ErrTransform)
		}
	}()

	return EvaluateConditions(msg.Value, conditions), nil
}

// HasPipelines reports whether any pipeline is registered for the topic.
func (r *Registry) HasPipelines(topic string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, enriched := r.enrichments[topic]
	_, filtered := r.filters[topic]
	return enriched || filtered
}

// WithClock overrides the time source for stamp-timestamp rules in tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}
