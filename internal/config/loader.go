package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"streampipe/internal/constants"
)

func Load(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("broker.type", "kafka")
	viper.SetDefault("pipeline.max_buffer_size", constants.DefaultBufferSize)
	viper.SetDefault("pipeline.batch_max_size", constants.DefaultBatchMaxSize)
	viper.SetDefault("pipeline.batch_max_wait_ms", int(constants.DefaultBatchMaxWait.Milliseconds()))
	viper.SetDefault("pipeline.publish_ack_timeout_ms", int(constants.DefaultPublishTimeout.Milliseconds()))
	viper.SetDefault("pipeline.publish_max_retries", constants.DefaultPublishRetries)
	viper.SetDefault("logging.level", "info")
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")

	viper.BindEnv("pipeline.topics", "PIPELINE_TOPICS")
	viper.BindEnv("pipeline.max_buffer_size", "PIPELINE_MAX_BUFFER_SIZE")
	viper.BindEnv("pipeline.batch_max_size", "PIPELINE_BATCH_MAX_SIZE")
	viper.BindEnv("pipeline.batch_max_wait_ms", "PIPELINE_BATCH_MAX_WAIT_MS")
	viper.BindEnv("pipeline.publish_ack_timeout_ms", "PIPELINE_PUBLISH_ACK_TIMEOUT_MS")
	viper.BindEnv("pipeline.publish_max_retries", "PIPELINE_PUBLISH_MAX_RETRIES")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if topicsEnv := viper.GetString("PIPELINE_TOPICS"); topicsEnv != "" {
		topics := strings.Split(topicsEnv, ",")
		for i := range topics {
			topics[i] = strings.TrimSpace(topics[i])
		}
		if len(topics) > 0 && topics[0] != "" {
			cfg.Pipeline.Topics = topics
		}
	}

	return nil
}
