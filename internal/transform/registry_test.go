package transform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streampipe/internal/logger"
	"streampipe/pkg/models"
)

func fixedClock(t *testing.T) func() time.Time {
	t.Helper()
	instant, err := time.Parse(time.RFC3339, "2026-08-25T12:00:00Z")
	require.NoError(t, err)
	return func() time.Time { return instant }
}

func userEvent(value map[string]interface{}) models.StreamMessage {
	return models.StreamMessage{
		Topic:      "user_events",
		Key:        "user-1",
		Value:      value,
		ReceivedAt: time.Now(),
	}
}

func TestRegistry_ApplyEnrichment(t *testing.T) {
	registry := NewRegistry(logger.NopLogger()).WithClock(fixedClock(t))
	registry.RegisterEnrichment("user_events", []EnrichmentRule{
		{Field: "processed_at", Kind: RuleStampTimestamp},
		{Field: "user_score", Kind: RuleComputeScaled, Multiplier: 1.5},
		{Field: "user_segment", Kind: RuleLookup},
	})

	derived := registry.Apply(context.Background(), userEvent(map[string]interface{}{
		"id":    "42",
		"value": float64(100),
	}))

	require.Len(t, derived, 1)
	d := derived[0]
	assert.Equal(t, "user_events_enriched", d.Topic)
	assert.Equal(t, "user-1", d.Key)
	assert.Equal(t, models.StreamEnriched, d.Stream)

	assert.Equal(t, "42", d.Value["id"])
	assert.Equal(t, float64(100), d.Value["value"])
	assert.Equal(t, "2026-08-25T12:00:00Z", d.Value["processed_at"])
	assert.Equal(t, float64(150), d.Value["user_score"])
	assert.Equal(t, "lookup_42", d.Value["user_segment"])
}

func TestRegistry_EnrichmentDoesNotMutateOriginal(t *testing.T) {
	registry := NewRegistry(logger.NopLogger()).WithClock(fixedClock(t))
	registry.RegisterEnrichment("user_events", []EnrichmentRule{
		{Field: "processed_at", Kind: RuleStampTimestamp},
	})

	original := map[string]interface{}{"id": "1"}
	registry.Apply(context.Background(), userEvent(original))

	assert.Equal(t, map[string]interface{}{"id": "1"}, original)
}

func TestRegistry_ComputeScaledSkipsWithoutNumericBase(t *testing.T) {
	registry := NewRegistry(logger.NopLogger()).WithClock(fixedClock(t))
	registry.RegisterEnrichment("user_events", []EnrichmentRule{
		{Field: "user_score", Kind: RuleComputeScaled, Multiplier: 1.5},
	})

	tests := []struct {
		name  string
		value map[string]interface{}
	}{
		{"value absent", map[string]interface{}{"id": "1"}},
		{"value non-numeric", map[string]interface{}{"value": "high"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			derived := registry.Apply(context.Background(), userEvent(tt.value))
			require.Len(t, derived, 1)
			_, present := derived[0].Value["user_score"]
			assert.False(t, present, "scaled field must not be written without a numeric base")
		})
	}
}

func TestRegistry_LookupFallsBackToUnknown(t *testing.T) {
	registry := NewRegistry(logger.NopLogger())
	registry.RegisterEnrichment("user_events", []EnrichmentRule{
		{Field: "user_segment", Kind: RuleLookup},
	})

	derived := registry.Apply(context.Background(), userEvent(map[string]interface{}{}))
	require.Len(t, derived, 1)
	assert.Equal(t, "lookup_unknown", derived[0].Value["user_segment"])
}

func TestRegistry_EnrichmentErrorSkipsOnlyThatStream(t *testing.T) {
	registry := NewRegistry(logger.NopLogger())
	registry.RegisterEnrichment("user_events", []EnrichmentRule{
		{Field: "broken", Kind: RuleKind(99)},
	})
	registry.RegisterFilter("user_events", []FilterCondition{
		{Field: "status", Kind: ConditionEquals, Equals: "active"},
	})

	// The unhandled rule kind fails enrichment for this message, but the
	// filter pipeline still produces its derived stream.
	derived := registry.Apply(context.Background(), userEvent(map[string]interface{}{
		"status": "active",
	}))
	require.Len(t, derived, 1)
	assert.Equal(t, models.StreamFiltered, derived[0].Stream)

	// Subsequent messages go through the same pipelines unaffected.
	derived = registry.Apply(context.Background(), userEvent(map[string]interface{}{
		"status": "active",
	}))
	require.Len(t, derived, 1)
	assert.Equal(t, models.StreamFiltered, derived[0].Stream)
}

func TestRegistry_EmptyEnrichmentRepublishesCopy(t *testing.T) {
	registry := NewRegistry(logger.NopLogger())
	registry.RegisterEnrichment("user_events", []EnrichmentRule{})

	original := map[string]interface{}{"id": "1"}
	derived := registry.Apply(context.Background(), userEvent(original))

	require.Len(t, derived, 1)
	assert.Equal(t, models.StreamEnriched, derived[0].Stream)
	assert.Equal(t, original, derived[0].Value)
	// A copy, not the source mapping.
	derived[0].Value["extra"] = true
	assert.NotContains(t, original, "extra")
}

func TestRegistry_ApplyFilter(t *testing.T) {
	registry := NewRegistry(logger.NopLogger())
	registry.RegisterFilter("user_events", []FilterCondition{
		{Field: "age", Kind: ConditionRange, Min: 18, Max: 100},
		{Field: "status", Kind: ConditionEquals, Equals: "active"},
	})

	passing := registry.Apply(context.Background(), userEvent(map[string]interface{}{
		"age":    float64(30),
		"status": "active",
	}))
	require.Len(t, passing, 1)
	assert.Equal(t, "user_events_filtered", passing[0].Topic)
	assert.Equal(t, models.StreamFiltered, passing[0].Stream)
	assert.Equal(t, float64(30), passing[0].Value["age"])

	failing := registry.Apply(context.Background(), userEvent(map[string]interface{}{
		"age":    float64(15),
		"status": "active",
	}))
	assert.Empty(t, failing)
}

func TestRegistry_PipelinesAreIndependent(t *testing.T) {
	registry := NewRegistry(logger.NopLogger()).WithClock(fixedClock(t))
	registry.RegisterEnrichment("user_events", []EnrichmentRule{
		{Field: "processed_at", Kind: RuleStampTimestamp},
	})
	registry.RegisterFilter("user_events", []FilterCondition{
		{Field: "status", Kind: ConditionEquals, Equals: "active"},
	})

	// Fails the filter but still enriches.
	derived := registry.Apply(context.Background(), userEvent(map[string]interface{}{
		"status": "inactive",
	}))
	require.Len(t, derived, 1)
	assert.Equal(t, models.StreamEnriched, derived[0].Stream)

	// Passes both.
	derived = registry.Apply(context.Background(), userEvent(map[string]interface{}{
		"status": "active",
	}))
	require.Len(t, derived, 2)
	assert.Equal(t, models.StreamEnriched, derived[0].Stream)
	assert.Equal(t, models.StreamFiltered, derived[1].Stream)
}

func TestRegistry_UnregisteredTopicYieldsNothing(t *testing.T) {
	registry := NewRegistry(logger.NopLogger())
	registry.RegisterEnrichment("user_events", []EnrichmentRule{
		{Field: "processed_at", Kind: RuleStampTimestamp},
	})

	derived := registry.Apply(context.Background(), models.StreamMessage{
		Topic: "order_events",
		Value: map[string]interface{}{"id": "1"},
	})
	assert.Empty(t, derived)
}

func TestRegistry_EmptyFilterSetPassesEverything(t *testing.T) {
	registry := NewRegistry(logger.NopLogger())
	registry.RegisterFilter("user_events", []FilterCondition{})

	derived := registry.Apply(context.Background(), userEvent(map[string]interface{}{"anything": 1}))
	require.Len(t, derived, 1)
	assert.Equal(t, models.StreamFiltered, derived[0].Stream)
}

func TestRegistry_HasPipelines(t *testing.T) {
	registry := NewRegistry(logger.NopLogger())
	assert.False(t, registry.HasPipelines("user_events"))

	registry.RegisterFilter("user_events", nil)
	assert.True(t, registry.HasPipelines("user_events"))
	assert.False(t, registry.HasPipelines("order_events"))
}

func TestRegistry_RegisterReplacesPipeline(t *testing.T) {
	registry := NewRegistry(logger.NopLogger()).WithClock(fixedClock(t))
	registry.RegisterEnrichment("user_events", []EnrichmentRule{
		{Field: "first", Kind: RuleStampTimestamp},
	})
	registry.RegisterEnrichment("user_events", []EnrichmentRule{
		{Field: "second", Kind: RuleStampTimestamp},
	})

	derived := registry.Apply(context.Background(), userEvent(map[string]interface{}{}))
	require.Len(t, derived, 1)
	_, hasFirst := derived[0].Value["first"]
	_, hasSecond := derived[0].Value["second"]
	assert.False(t, hasFirst)
	assert.True(t, hasSecond)
}
