package config

import (
	"fmt"
	"strings"
)

// ValidateStatic rejects configurations that can never work, before any
// broker connection is attempted.
func ValidateStatic(cfg *Config) error {
	var problems []string

	if cfg.Broker.Type != "kafka" {
		problems = append(problems, fmt.Sprintf("broker.type %q is not supported", cfg.Broker.Type))
	}
	if len(cfg.Broker.Kafka.Brokers) == 0 {
		problems = append(problems, "broker.kafka.brokers must not be empty")
	}
	if cfg.Broker.Kafka.GroupID == "" {
		problems = append(problems, "broker.kafka.group_id is required")
	}

	if len(cfg.Pipeline.Topics) == 0 {
		problems = append(problems, "pipeline.topics must not be empty")
	}
	seen := make(map[string]bool, len(cfg.Pipeline.Topics))
	for _, topic := range cfg.Pipeline.Topics {
		if topic == "" {
			problems = append(problems, "pipeline.topics contains an empty topic name")
			continue
		}
		if seen[topic] {
			problems = append(problems, fmt.Sprintf("pipeline.topics contains duplicate topic %q", topic))
		}
		seen[topic] = true
	}

	if cfg.Pipeline.MaxBufferSize <= 0 {
		problems = append(problems, "pipeline.max_buffer_size must be positive")
	}
	if cfg.Pipeline.BatchMaxSize <= 0 {
		problems = append(problems, "pipeline.batch_max_size must be positive")
	}
	if cfg.Pipeline.BatchMaxWaitMs <= 0 {
		problems = append(problems, "pipeline.batch_max_wait_ms must be positive")
	}
	if cfg.Pipeline.PublishAckTimeoutMs <= 0 {
		problems = append(problems, "pipeline.publish_ack_timeout_ms must be positive")
	}
	if cfg.Pipeline.PublishMaxRetries < 0 {
		problems = append(problems, "pipeline.publish_max_retries must not be negative")
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RPS <= 0 {
			problems = append(problems, "rate_limit.rps must be positive when rate limiting is enabled")
		}
		if cfg.RateLimit.Burst <= 0 {
			problems = append(problems, "rate_limit.burst must be positive when rate limiting is enabled")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
