package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streampipe/internal/constants"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `
server:
  port: 8080
broker:
  type: kafka
  kafka:
    brokers:
      - localhost:9092
    group_id: stream-processor
    dlq_topic: stream.dlq
logging:
  level: debug
pipeline:
  topics:
    - user_events
    - order_events
  max_buffer_size: 500
  batch_max_size: 25
  batch_max_wait_ms: 2000
  publish_ack_timeout_ms: 1500
  publish_max_retries: 4
`

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "kafka", cfg.Broker.Type)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, "stream-processor", cfg.Broker.Kafka.GroupID)
	assert.Equal(t, "stream.dlq", cfg.Broker.Kafka.DLQTopic)
	assert.Equal(t, "debug", cfg.Logging.Level)

	assert.Equal(t, []string{"user_events", "order_events"}, cfg.Pipeline.Topics)
	assert.Equal(t, 500, cfg.Pipeline.MaxBufferSize)
	assert.Equal(t, 25, cfg.Pipeline.BatchMaxSize)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.BatchMaxWait())
	assert.Equal(t, 1500*time.Millisecond, cfg.Pipeline.PublishAckTimeout())
	assert.Equal(t, 4, cfg.Pipeline.PublishMaxRetries)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, `
broker:
  kafka:
    brokers:
      - localhost:9092
    group_id: g1
pipeline:
  topics:
    - user_events
`))
	require.NoError(t, err)

	assert.Equal(t, "kafka", cfg.Broker.Type)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, constants.DefaultBufferSize, cfg.Pipeline.MaxBufferSize)
	assert.Equal(t, constants.DefaultBatchMaxSize, cfg.Pipeline.BatchMaxSize)
	assert.Equal(t, constants.DefaultBatchMaxWait, cfg.Pipeline.BatchMaxWait())
	assert.Equal(t, constants.DefaultPublishTimeout, cfg.Pipeline.PublishAckTimeout())
	assert.Equal(t, constants.DefaultPublishRetries, cfg.Pipeline.PublishMaxRetries)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesCommaSplit(t *testing.T) {
	t.Setenv("BROKER_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("PIPELINE_TOPICS", "clicks,views")

	cfg, err := Load(writeConfigFile(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, []string{"clicks", "views"}, cfg.Pipeline.Topics)
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	_, err := Load(writeConfigFile(t, `
broker:
  kafka:
    brokers:
      - localhost:9092
    group_id: g1
pipeline:
  topics: []
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.topics")
}
