package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/bactolab/resistscope/internal/subscriber"
	"github.com/redis/go-redis/v9"
)

// RedisConfig represents Redis Streams configuration
type RedisConfig struct {
	URL      string // redis://host:port/db or a bare address
	Password string
	DB       int
	Stream   string // stream prefix, default "resistscope"
}

// RedisPublisher appends entries to the {prefix}:{subject} stream
type RedisPublisher struct {
	client *redis.Client
	stream string
}

// NewRedisPublisher connects to Redis
func NewRedisPublisher(cfg RedisConfig, subject string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		opts = &redis.Options{
			Addr:     cfg.URL,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisPublisherFromClient(client, cfg.Stream, subject), nil
}

// NewRedisPublisherFromClient wraps an existing client
func NewRedisPublisherFromClient(client *redis.Client, prefix, subject string) *RedisPublisher {
	if prefix == "" {
		prefix = subscriber.DefaultRedisStreamPrefix
	}
	return &RedisPublisher{
		client: client,
		stream: subscriber.RedisStreamName(prefix, subject),
	}
}

func (p *RedisPublisher) args(simulationID string, data []byte) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: p.stream,
		ID:     "*",
		Values: map[string]interface{}{
			subscriber.RedisFieldSimulationID: simulationID,
			subscriber.RedisFieldData:         data,
		},
	}
}

// Publish adds one entry to the stream
func (p *RedisPublisher) Publish(ctx context.Context, simulationID string, data []byte) error {
	if err := p.client.XAdd(ctx, p.args(simulationID, data)).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis stream %s: %w", p.stream, err)
	}
	return nil
}

// PublishBatch adds every entry in one pipeline
func (p *RedisPublisher) PublishBatch(ctx context.Context, simulationID string, payloads [][]byte) (int, error) {
	if len(payloads) == 0 {
		return 0, nil
	}

	pipe := p.client.Pipeline()
	for _, data := range payloads {
		pipe.XAdd(ctx, p.args(simulationID, data))
	}

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to execute batch publish: %w", err)
	}

	successCount := 0
	for _, cmd := range cmds {
		if cmd.Err() == nil {
			successCount++
		}
	}
	return successCount, nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
