package broker

import (
	"fmt"

	"streampipe/internal/config"
	"streampipe/internal/logger"
)

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaProducer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

func NewSubscriber(cfg config.BrokerConfig, log logger.Logger) (Subscriber, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaSubscriber(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
