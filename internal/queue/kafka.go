package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/bactolab/resistscope/internal/subscriber"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig represents Apache Kafka producer configuration
type KafkaConfig struct {
	Brokers      []string
	BatchSize    int           // default 100
	BatchTimeout time.Duration // default 10ms
	RequiredAcks int           // 0=none, 1=leader, -1=all (default 1)
	MaxRetries   int           // default 3
}

// KafkaPublisher writes to the subject topic, keyed by simulation id so one
// simulation's updates stay on one partition
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a writer; no connection is made until the first write
func NewKafkaPublisher(cfg KafkaConfig, subject string) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.RequiredAcks == 0 {
		cfg.RequiredAcks = int(kafka.RequireOne)
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        subscriber.KafkaTopic(subject),
			Balancer:     &kafka.Hash{},
			BatchSize:    cfg.BatchSize,
			BatchTimeout: cfg.BatchTimeout,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			MaxAttempts:  cfg.MaxRetries,
		},
	}, nil
}

func kafkaMessages(simulationID string, payloads [][]byte, now time.Time) []kafka.Message {
	msgs := make([]kafka.Message, len(payloads))
	for i, data := range payloads {
		msgs[i] = kafka.Message{Key: []byte(simulationID), Value: data, Time: now}
	}
	return msgs
}

// Publish writes one message
func (p *KafkaPublisher) Publish(ctx context.Context, simulationID string, data []byte) error {
	if err := p.writer.WriteMessages(ctx, kafkaMessages(simulationID, [][]byte{data}, time.Now())...); err != nil {
		return fmt.Errorf("failed to publish to kafka topic %s: %w", p.writer.Topic, err)
	}
	return nil
}

// PublishBatch writes every message in one call
func (p *KafkaPublisher) PublishBatch(ctx context.Context, simulationID string, payloads [][]byte) (int, error) {
	if len(payloads) == 0 {
		return 0, nil
	}
	if err := p.writer.WriteMessages(ctx, kafkaMessages(simulationID, payloads, time.Now())...); err != nil {
		return 0, fmt.Errorf("failed to publish batch: %w", err)
	}
	return len(payloads), nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
