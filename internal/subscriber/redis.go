package subscriber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bactolab/resistscope/internal/logging"
	"github.com/redis/go-redis/v9"
)

var redisLog = logging.Global().With("component", "subscriber.redis")

// Stream entry fields written by publishers
const (
	RedisFieldSimulationID = "simulation_id"
	RedisFieldData         = "data"

	// DefaultRedisStreamPrefix is used when no prefix is configured
	DefaultRedisStreamPrefix = "resistscope"
)

// RedisSubscriber implements Subscriber for Redis Streams. All simulations
// under a base subject share one stream; entries carry the simulation id.
type RedisSubscriber struct {
	client        *redis.Client
	streamPrefix  string
	consumerGroup string
	consumerID    string
	subscriptions map[string]context.CancelFunc
	mu            sync.RWMutex
}

// NewRedisSubscriber creates a new Redis Streams subscriber
func NewRedisSubscriber(addr, password string, db int, streamPrefix, consumerGroup, consumerID string) (*RedisSubscriber, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisSubscriber(client, streamPrefix, consumerGroup, consumerID), nil
}

func newRedisSubscriber(client *redis.Client, streamPrefix, consumerGroup, consumerID string) *RedisSubscriber {
	if streamPrefix == "" {
		streamPrefix = DefaultRedisStreamPrefix
	}
	return &RedisSubscriber{
		client:        client,
		streamPrefix:  streamPrefix,
		consumerGroup: consumerGroup,
		consumerID:    consumerID,
		subscriptions: make(map[string]context.CancelFunc),
	}
}

// Subscribe joins the consumer group on the stream for subject
func (s *RedisSubscriber) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	streamName := RedisStreamName(s.streamPrefix, subject)
	if _, exists := s.subscriptions[streamName]; exists {
		return fmt.Errorf("already subscribed to stream: %s", streamName)
	}

	err := s.client.XGroupCreateMkStream(ctx, streamName, s.consumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	s.subscriptions[streamName] = cancel

	go s.consume(subCtx, streamName, subject, handler)

	redisLog.Info("Subscribed to Redis stream", "stream", streamName, "group", s.consumerGroup, "consumer", s.consumerID)
	return nil
}

func (s *RedisSubscriber) consume(ctx context.Context, streamName, subject string, handler MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.consumerGroup,
			Consumer: s.consumerID,
			Streams:  []string{streamName, ">"},
			Count:    100,
			Block:    time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			redisLog.Error("Failed to read from stream", "stream", streamName, "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, entry := range stream.Messages {
				msg, ok := redisMessage(subject, entry)
				if !ok {
					redisLog.Warn("Invalid message format", "stream", streamName, "id", entry.ID)
					s.client.XAck(ctx, streamName, s.consumerGroup, entry.ID)
					continue
				}

				if err := handler(ctx, msg); err != nil {
					redisLog.Error("Failed to handle message",
						"stream", streamName,
						"id", entry.ID,
						"simulation_id", msg.SimulationID,
						"error", err)
					// left pending for redelivery
					continue
				}

				if err := s.client.XAck(ctx, streamName, s.consumerGroup, entry.ID).Err(); err != nil {
					redisLog.Error("Failed to ACK message", "stream", streamName, "id", entry.ID, "error", err)
				}
			}
		}
	}
}

// redisMessage decodes a stream entry. Entries without a simulation id or
// data are rejected.
func redisMessage(subject string, entry redis.XMessage) (Message, bool) {
	data, ok := entry.Values[RedisFieldData].(string)
	if !ok {
		return Message{}, false
	}
	simID, _ := entry.Values[RedisFieldSimulationID].(string)
	if simID == "" {
		return Message{}, false
	}
	return Message{
		Subject:      SubjectFor(subject, simID),
		SimulationID: simID,
		Data:         []byte(data),
	}, true
}

// RedisStreamName returns the stream key for a base subject: {prefix}:{subject}
func RedisStreamName(prefix, subject string) string {
	return fmt.Sprintf("%s:%s", prefix, subject)
}

// Unsubscribe unsubscribes from a stream
func (s *RedisSubscriber) Unsubscribe(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	streamName := RedisStreamName(s.streamPrefix, subject)
	cancel, exists := s.subscriptions[streamName]
	if !exists {
		return fmt.Errorf("not subscribed to stream: %s", streamName)
	}

	cancel()
	delete(s.subscriptions, streamName)
	redisLog.Info("Unsubscribed from Redis stream", "stream", streamName)
	return nil
}

// Close closes all subscriptions and the connection
func (s *RedisSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for streamName, cancel := range s.subscriptions {
		cancel()
		redisLog.Debug("Cancelled subscription", "stream", streamName)
	}
	s.subscriptions = make(map[string]context.CancelFunc)

	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	redisLog.Info("Redis subscriber closed")
	return nil
}
