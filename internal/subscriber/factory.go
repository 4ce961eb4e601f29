package subscriber

import (
	"fmt"
	"strings"

	"github.com/bactolab/resistscope/internal/config"
	"github.com/bactolab/resistscope/internal/utils"
)

// NewSubscriber creates a new Subscriber based on the queue configuration
func NewSubscriber(cfg config.QueueConfig) (Subscriber, error) {
	queueType := utils.QueueType(strings.ToLower(cfg.Type))

	// Default to NATS if not specified
	if queueType == "" {
		queueType = utils.QueueTypeNATS
	}

	subCfg := Config{NodeID: cfg.NodeID, ConsumerGroup: cfg.ConsumerGroup}
	if subCfg.ConsumerGroup == "" {
		subCfg.ConsumerGroup = "resistscope"
	}
	if subCfg.NodeID == "" {
		subCfg.NodeID = "dashboard"
	}

	switch queueType {
	case utils.QueueTypeNATS:
		return NewNATSSubscriber(cfg.URL, subCfg.NodeID, subCfg.ConsumerGroup)
	case utils.QueueTypeRedis:
		addr := cfg.URL
		if addr == "" {
			addr = "localhost:6379"
		}
		return NewRedisSubscriber(addr, cfg.Password, cfg.RedisDB, cfg.RedisStream, subCfg.ConsumerGroup, subCfg.NodeID)
	case utils.QueueTypeKafka:
		return NewKafkaSubscriber(cfg.KafkaBrokers, subCfg.ConsumerGroup)
	case utils.QueueTypeMemory:
		return NewMemorySubscriber()
	default:
		return nil, fmt.Errorf("unsupported queue type: %s", queueType)
	}
}
