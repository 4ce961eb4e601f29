package queue

import (
	"context"
	"fmt"

	"github.com/bactolab/resistscope/internal/subscriber"
	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes to <subject>.<simulationId> on JetStream
type NATSPublisher struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	subject string
	ownConn bool
}

// NewNATSPublisher connects and makes sure the stream exists
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("resistscope-publisher"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	p, err := NewNATSPublisherWithConn(conn, subject)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.ownConn = true
	return p, nil
}

// NewNATSPublisherWithConn uses an existing connection, which Close leaves open
func NewNATSPublisherWithConn(conn *nats.Conn, subject string) (*NATSPublisher, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	if err := subscriber.EnsureNATSStream(js, subject); err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn, js: js, subject: subject}, nil
}

// Publish publishes synchronously and waits for the stream ack
func (p *NATSPublisher) Publish(ctx context.Context, simulationID string, data []byte) error {
	subject := subscriber.SubjectFor(p.subject, simulationID)
	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	return nil
}

// PublishBatch queues every payload asynchronously, then waits for all acks
func (p *NATSPublisher) PublishBatch(ctx context.Context, simulationID string, payloads [][]byte) (int, error) {
	if len(payloads) == 0 {
		return 0, nil
	}
	subject := subscriber.SubjectFor(p.subject, simulationID)

	futures := make([]nats.PubAckFuture, 0, len(payloads))
	for _, data := range payloads {
		future, err := p.js.PublishAsync(subject, data)
		if err != nil {
			continue
		}
		futures = append(futures, future)
	}

	select {
	case <-p.js.PublishAsyncComplete():
	case <-ctx.Done():
		return 0, fmt.Errorf("timeout waiting for batch publish: %w", ctx.Err())
	}

	successCount := 0
	for _, future := range futures {
		select {
		case <-future.Ok():
			successCount++
		case <-future.Err():
		}
	}
	return successCount, nil
}

// Close closes the connection if the publisher opened it
func (p *NATSPublisher) Close() error {
	if p.ownConn {
		p.conn.Close()
	}
	return nil
}
