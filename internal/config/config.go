package config

import "time"

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Pipeline       PipelineConfig       `mapstructure:"pipeline"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	GroupID  string   `mapstructure:"group_id"`
	DLQTopic string   `mapstructure:"dlq_topic"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PipelineConfig carries the windowing and publish bounds of the processing
// loop. Durations are configured in milliseconds to match the wire config.
type PipelineConfig struct {
	Topics              []string `mapstructure:"topics"`
	MaxBufferSize       int      `mapstructure:"max_buffer_size"`
	BatchMaxSize        int      `mapstructure:"batch_max_size"`
	BatchMaxWaitMs      int      `mapstructure:"batch_max_wait_ms"`
	PublishAckTimeoutMs int      `mapstructure:"publish_ack_timeout_ms"`
	PublishMaxRetries   int      `mapstructure:"publish_max_retries"`
}

func (c PipelineConfig) BatchMaxWait() time.Duration {
	return time.Duration(c.BatchMaxWaitMs) * time.Millisecond
}

func (c PipelineConfig) PublishAckTimeout() time.Duration {
	return time.Duration(c.PublishAckTimeoutMs) * time.Millisecond
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}
