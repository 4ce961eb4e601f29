package subscriber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bactolab/resistscope/internal/logging"
	"github.com/nats-io/nats.go"
)

var natsLog = logging.Global().With("component", "subscriber.nats")

// NATSSubscriber implements Subscriber for NATS JetStream
type NATSSubscriber struct {
	conn          *nats.Conn
	js            nats.JetStreamContext
	nodeID        string
	consumerGroup string
	subscriptions map[string]*nats.Subscription
	mu            sync.RWMutex
}

// NewNATSSubscriber creates a new NATS subscriber
func NewNATSSubscriber(url, nodeID, consumerGroup string) (*NATSSubscriber, error) {
	opts := []nats.Option{
		nats.Name(fmt.Sprintf("resistscope-subscriber-%s", nodeID)),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				natsLog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			natsLog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NATSSubscriber{
		conn:          conn,
		js:            js,
		nodeID:        nodeID,
		consumerGroup: consumerGroup,
		subscriptions: make(map[string]*nats.Subscription),
	}, nil
}

// Subscribe consumes <subject>.* through a durable JetStream consumer
func (s *NATSSubscriber) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	if err := EnsureNATSStream(s.js, subject); err != nil {
		return err
	}

	durableName := fmt.Sprintf("%s-%s-%s", s.consumerGroup, s.nodeID, sanitizeName(subject))
	var msgCount uint64

	sub, err := s.js.Subscribe(SubjectFor(subject, "*"), func(msg *nats.Msg) {
		currentCount := atomic.AddUint64(&msgCount, 1)

		if ctx.Err() != nil {
			natsLog.Debug("Context cancelled, skipping message",
				"subject", msg.Subject,
				"msg_count", currentCount)
			_ = msg.Nak()
			return
		}

		m := Message{
			Subject:      msg.Subject,
			SimulationID: SimulationIDFromSubject(subject, msg.Subject),
			Data:         msg.Data,
		}
		if err := handler(ctx, m); err != nil {
			natsLog.Error("Failed to handle message",
				"subject", msg.Subject,
				"simulation_id", m.SimulationID,
				"msg_count", currentCount,
				"error", err,
				"data_preview", preview(msg.Data))
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durableName),
		nats.ManualAck(),
		nats.MaxAckPending(100),
		nats.AckWait(30*time.Second),
		nats.MaxDeliver(3),
		nats.DeliverAll(),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	s.subscriptions[subject] = sub
	natsLog.Info("Subscribed to subject", "subject", subject, "durable", durableName)
	return nil
}

// EnsureNATSStream creates the stream holding <subject>.* if no stream
// already captures it
func EnsureNATSStream(js nats.JetStreamContext, subject string) error {
	wildcard := SubjectFor(subject, "*")
	if name, err := js.StreamNameBySubject(wildcard); err == nil && name != "" {
		return nil
	}

	streamName := NATSStreamName(subject)
	if _, err := js.StreamInfo(streamName); err == nil {
		return nil
	}

	_, err := js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{wildcard},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
		Replicas:  1,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		natsLog.Error("Failed to create stream", "stream", streamName, "error", err)
		return fmt.Errorf("failed to create stream %s: %w", streamName, err)
	}
	return nil
}

// NATSStreamName returns the stream name for a base subject.
// Stream names cannot contain dots.
func NATSStreamName(subject string) string {
	return "STREAM_" + sanitizeName(subject)
}

func sanitizeName(subject string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "*", "all", ">", "rest")
	return r.Replace(subject)
}

// Unsubscribe unsubscribes from a subject
func (s *NATSSubscriber) Unsubscribe(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.subscriptions[subject]
	if !exists {
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %w", subject, err)
	}

	delete(s.subscriptions, subject)
	natsLog.Info("Unsubscribed from subject", "subject", subject)
	return nil
}

// Close closes all subscriptions and the connection
func (s *NATSSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for subject, sub := range s.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			natsLog.Warn("Failed to unsubscribe", "subject", subject, "error", err)
		}
	}
	s.subscriptions = make(map[string]*nats.Subscription)

	s.conn.Close()
	natsLog.Info("NATS subscriber closed")
	return nil
}
