package queue

import (
	"context"
	"fmt"

	"github.com/bactolab/resistscope/internal/subscriber"
)

// MemoryPublisher publishes to the in-process broker used by
// subscriber.MemorySubscriber
type MemoryPublisher struct {
	subject string
}

// NewMemoryPublisher creates a publisher for subject
func NewMemoryPublisher(subject string) *MemoryPublisher {
	return &MemoryPublisher{subject: subject}
}

// Publish fails when no subscriber is listening on the subject
func (p *MemoryPublisher) Publish(ctx context.Context, simulationID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := subscriber.SubjectFor(p.subject, simulationID)
	if subscriber.PublishToMemory(subject, data) == 0 {
		return fmt.Errorf("no subscriber for subject: %s", subject)
	}
	return nil
}

// PublishBatch publishes each payload in order
func (p *MemoryPublisher) PublishBatch(ctx context.Context, simulationID string, payloads [][]byte) (int, error) {
	successCount := 0
	for _, data := range payloads {
		if err := p.Publish(ctx, simulationID, data); err != nil {
			continue
		}
		successCount++
	}
	return successCount, nil
}

func (p *MemoryPublisher) Close() error { return nil }
