// Package queue publishes simulation updates onto a message bus, in the
// subject layout consumed by the subscriber package.
package queue

import "context"

// Publisher publishes simulation update payloads
type Publisher interface {
	// Publish publishes one payload for a simulation
	Publish(ctx context.Context, simulationID string, data []byte) error

	// PublishBatch publishes several payloads for one simulation, in order.
	// Returns the number of successfully published messages.
	PublishBatch(ctx context.Context, simulationID string, payloads [][]byte) (int, error)

	// Close closes the connection
	Close() error
}
