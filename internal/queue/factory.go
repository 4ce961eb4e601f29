package queue

import (
	"fmt"
	"strings"

	"github.com/bactolab/resistscope/internal/config"
	"github.com/bactolab/resistscope/internal/utils"
)

// NewPublisher creates a Publisher for the configured bus.
// Default is NATS if type is not specified.
func NewPublisher(cfg config.QueueConfig) (Publisher, error) {
	queueType := utils.QueueType(strings.ToLower(cfg.Type))
	if queueType == "" {
		queueType = utils.QueueTypeNATS
	}
	if cfg.Subject == "" {
		return nil, fmt.Errorf("queue subject is required")
	}

	switch queueType {
	case utils.QueueTypeNATS:
		return NewNATSPublisher(cfg.URL, cfg.Subject)

	case utils.QueueTypeRedis:
		return NewRedisPublisher(RedisConfig{
			URL:      cfg.URL,
			Password: cfg.Password,
			DB:       cfg.RedisDB,
			Stream:   cfg.RedisStream,
		}, cfg.Subject)

	case utils.QueueTypeKafka:
		return NewKafkaPublisher(KafkaConfig{Brokers: cfg.KafkaBrokers}, cfg.Subject)

	case utils.QueueTypeMemory:
		return NewMemoryPublisher(cfg.Subject), nil

	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: nats, redis, kafka, memory)", queueType)
	}
}
