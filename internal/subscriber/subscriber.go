// Package subscriber consumes simulation updates from a message bus.
//
// Producers publish one subject per simulation, <subject>.<simulationId>;
// subscribers listen on the base subject and hand every payload, tagged with
// its simulation id, to a MessageHandler.
package subscriber

import (
	"context"
	"strings"
)

// Message is one payload received from the bus
type Message struct {
	Subject      string
	SimulationID string
	Data         []byte
}

// MessageHandler processes an incoming message. A non-nil error leaves the
// message unacknowledged where the backend supports redelivery.
type MessageHandler func(ctx context.Context, msg Message) error

// Subscriber defines the interface for message subscription
type Subscriber interface {
	// Subscribe listens on every simulation under the base subject
	Subscribe(ctx context.Context, subject string, handler MessageHandler) error

	// Unsubscribe stops listening on the base subject
	Unsubscribe(subject string) error

	// Close closes the subscriber and releases resources
	Close() error
}

// Config holds common subscriber configuration
type Config struct {
	// NodeID is the unique identifier for this consumer
	NodeID string

	// ConsumerGroup is the consumer group name for group-based consumption
	ConsumerGroup string
}

// SubjectFor returns the per-simulation subject under base
func SubjectFor(base, simulationID string) string {
	return base + "." + simulationID
}

// SimulationIDFromSubject extracts the simulation id from a per-simulation
// subject. It returns "" when subject is not under base.
func SimulationIDFromSubject(base, subject string) string {
	prefix := base + "."
	if !strings.HasPrefix(subject, prefix) {
		return ""
	}
	return subject[len(prefix):]
}

func preview(data []byte) string {
	return string(data[:min(100, len(data))])
}
