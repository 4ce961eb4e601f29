package subscriber

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bactolab/resistscope/internal/logging"
	"github.com/segmentio/kafka-go"
)

var kafkaLog = logging.Global().With("component", "subscriber.kafka")

// KafkaSubscriber implements Subscriber for Kafka. The base subject is the
// topic and the message key is the simulation id.
type KafkaSubscriber struct {
	brokers       []string
	consumerGroup string
	readers       map[string]*kafka.Reader
	cancels       map[string]context.CancelFunc
	mu            sync.RWMutex
}

// NewKafkaSubscriber creates a new Kafka subscriber
func NewKafkaSubscriber(brokers []string, consumerGroup string) (*KafkaSubscriber, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}

	return &KafkaSubscriber{
		brokers:       brokers,
		consumerGroup: consumerGroup,
		readers:       make(map[string]*kafka.Reader),
		cancels:       make(map[string]context.CancelFunc),
	}, nil
}

// Subscribe starts a group reader on the topic for subject
func (s *KafkaSubscriber) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	topic := KafkaTopic(subject)
	if _, exists := s.readers[topic]; exists {
		return fmt.Errorf("already subscribed to topic: %s", topic)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:               s.brokers,
		GroupID:               s.consumerGroup,
		Topic:                 topic,
		MinBytes:              1,
		MaxBytes:              10e6,
		MaxWait:               3 * time.Second,
		CommitInterval:        time.Second,
		StartOffset:           kafka.LastOffset,
		HeartbeatInterval:     3 * time.Second,
		SessionTimeout:        30 * time.Second,
		RebalanceTimeout:      60 * time.Second,
		RetentionTime:         24 * time.Hour,
		WatchPartitionChanges: true,
		ErrorLogger:           kafka.LoggerFunc(func(msg string, args ...interface{}) { kafkaLog.Debug(fmt.Sprintf(msg, args...)) }),
	})
	s.readers[topic] = reader

	subCtx, cancel := context.WithCancel(ctx)
	s.cancels[topic] = cancel

	go s.consume(subCtx, reader, subject, handler)

	kafkaLog.Info("Subscribed to Kafka topic", "topic", topic, "group", s.consumerGroup)
	return nil
}

func (s *KafkaSubscriber) consume(ctx context.Context, reader *kafka.Reader, subject string, handler MessageHandler) {
	topic := reader.Config().Topic
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		km, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			kafkaLog.Error("Failed to fetch message", "topic", topic, "error", err)
			time.Sleep(time.Second)
			continue
		}

		msg, ok := kafkaMessage(subject, km)
		if !ok {
			kafkaLog.Warn("Message without simulation key, skipping", "topic", topic, "offset", km.Offset)
			_ = reader.CommitMessages(ctx, km)
			continue
		}

		if err := handler(ctx, msg); err != nil {
			kafkaLog.Error("Failed to handle message",
				"topic", topic,
				"offset", km.Offset,
				"simulation_id", msg.SimulationID,
				"error", err)
			continue
		}

		if err := reader.CommitMessages(ctx, km); err != nil {
			kafkaLog.Error("Failed to commit message", "topic", topic, "offset", km.Offset, "error", err)
		}
	}
}

func kafkaMessage(subject string, km kafka.Message) (Message, bool) {
	if len(km.Key) == 0 {
		return Message{}, false
	}
	simID := string(km.Key)
	return Message{
		Subject:      SubjectFor(subject, simID),
		SimulationID: simID,
		Data:         km.Value,
	}, true
}

// KafkaTopic converts a base subject to a Kafka topic name
func KafkaTopic(subject string) string {
	return subject
}

// Unsubscribe unsubscribes from a topic
func (s *KafkaSubscriber) Unsubscribe(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	topic := KafkaTopic(subject)

	cancel, exists := s.cancels[topic]
	if !exists {
		return fmt.Errorf("not subscribed to topic: %s", topic)
	}

	cancel()
	delete(s.cancels, topic)

	if reader, exists := s.readers[topic]; exists {
		if err := reader.Close(); err != nil {
			kafkaLog.Warn("Failed to close reader", "topic", topic, "error", err)
		}
		delete(s.readers, topic)
	}

	kafkaLog.Info("Unsubscribed from Kafka topic", "topic", topic)
	return nil
}

// Close closes all readers and subscriptions
func (s *KafkaSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for topic, cancel := range s.cancels {
		cancel()
		kafkaLog.Debug("Cancelled subscription", "topic", topic)
	}
	s.cancels = make(map[string]context.CancelFunc)

	var lastErr error
	for topic, reader := range s.readers {
		if err := reader.Close(); err != nil {
			kafkaLog.Warn("Failed to close reader", "topic", topic, "error", err)
			lastErr = err
		}
	}
	s.readers = make(map[string]*kafka.Reader)

	kafkaLog.Info("Kafka subscriber closed")
	return lastErr
}
