package integration

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/stretchr/testify/require"

	"streampipe/pkg/models"
)

type TestInfra struct {
	Brokers []string
}

// SetupKafka starts a single-node Kafka and hands back its bootstrap
// addresses. The container is shared by nothing; every test gets its own.
func SetupKafka(t *testing.T) *TestInfra {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	if os.Getenv("TESTCONTAINERS_RYUK_DISABLED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	}

	container, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0",
		kafkamodule.WithClusterID("test-cluster"),
	)
	if err != nil {
		t.Skipf("failed to start kafka container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	return &TestInfra{Brokers: brokers}
}

// produceJSON writes raw JSON events onto a topic, creating it on first use.
func produceJSON(t *testing.T, brokers []string, topic string, values ...map[string]interface{}) {
	t.Helper()

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	defer w.Close()

	messages := make([]kafka.Message, 0, len(values))
	for _, v := range values {
		body, err := json.Marshal(v)
		require.NoError(t, err)
		messages = append(messages, kafka.Message{Value: body})
	}

	// Topic auto-creation makes the first write racy; retry it.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for {
		err := w.WriteMessages(ctx, messages...)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			t.Fatalf("failed to write messages to %s: %v", topic, err)
		}
		time.Sleep(250 * time.Millisecond)
	}
}

// consumeEnvelopes reads from the start of a topic until count envelopes
// arrive or the deadline passes.
func consumeEnvelopes(t *testing.T, brokers []string, topic string, count int, deadline time.Duration) []models.Envelope {
	t.Helper()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	var envelopes []models.Envelope
	for len(envelopes) < count {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			t.Fatalf("expected %d envelopes on %s, got %d: %v", count, topic, len(envelopes), err)
		}
		var env models.Envelope
		require.NoError(t, json.Unmarshal(m.Value, &env))
		envelopes = append(envelopes, env)
	}
	return envelopes
}
