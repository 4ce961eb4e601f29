package subscriber

import (
	"context"
	"fmt"
	"sync"

	"github.com/bactolab/resistscope/internal/logging"
)

var memoryLog = logging.Global().With("component", "subscriber.memory")

const memoryChannelSize = 1000

type memorySubscription struct {
	base    string
	handler MessageHandler
	ctx     context.Context
	cancel  context.CancelFunc
	ch      chan Message
}

// MemorySubscriber implements Subscriber on a process-local broker
type MemorySubscriber struct {
	subscriptions map[string]*memorySubscription
	mu            sync.RWMutex
}

var (
	memBroker     *memoryBroker
	memBrokerOnce sync.Once
)

// memoryBroker routes per-simulation subjects to base-subject subscriptions
type memoryBroker struct {
	subscribers map[string][]*memorySubscription
	mu          sync.RWMutex
}

func getMemoryBroker() *memoryBroker {
	memBrokerOnce.Do(func() {
		memBroker = &memoryBroker{
			subscribers: make(map[string][]*memorySubscription),
		}
	})
	return memBroker
}

func (b *memoryBroker) add(sub *memorySubscription) {
	b.mu.Lock()
	b.subscribers[sub.base] = append(b.subscribers[sub.base], sub)
	b.mu.Unlock()
}

func (b *memoryBroker) remove(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[sub.base]
	for i, bs := range subs {
		if bs == sub {
			b.subscribers[sub.base] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[sub.base]) == 0 {
		delete(b.subscribers, sub.base)
	}
}

// PublishToMemory delivers data to every memory subscription whose base
// subject contains subject. It returns the number of subscriptions reached.
func PublishToMemory(subject string, data []byte) int {
	b := getMemoryBroker()
	b.mu.RLock()
	var targets []*memorySubscription
	for base, subs := range b.subscribers {
		if SimulationIDFromSubject(base, subject) == "" {
			continue
		}
		targets = append(targets, subs...)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range targets {
		msg := Message{
			Subject:      subject,
			SimulationID: SimulationIDFromSubject(sub.base, subject),
			Data:         append([]byte(nil), data...),
		}
		select {
		case sub.ch <- msg:
			delivered++
		default:
			memoryLog.Warn("Subscriber channel full, dropping message", "subject", subject)
		}
	}
	return delivered
}

// NewMemorySubscriber creates a new in-memory subscriber
func NewMemorySubscriber() (*MemorySubscriber, error) {
	return &MemorySubscriber{
		subscriptions: make(map[string]*memorySubscription),
	}, nil
}

// Subscribe subscribes to every simulation under subject
func (s *MemorySubscriber) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &memorySubscription{
		base:    subject,
		handler: handler,
		ctx:     subCtx,
		cancel:  cancel,
		ch:      make(chan Message, memoryChannelSize),
	}
	s.subscriptions[subject] = sub
	getMemoryBroker().add(sub)

	go s.consume(sub)

	memoryLog.Info("Subscribed to in-memory subject", "subject", subject)
	return nil
}

func (s *MemorySubscriber) consume(sub *memorySubscription) {
	for {
		select {
		case <-sub.ctx.Done():
			return
		case msg := <-sub.ch:
			if err := sub.handler(sub.ctx, msg); err != nil {
				memoryLog.Error("Failed to handle message",
					"subject", msg.Subject,
					"simulation_id", msg.SimulationID,
					"error", err,
					"data_preview", preview(msg.Data))
			}
		}
	}
}

// Unsubscribe unsubscribes from a subject
func (s *MemorySubscriber) Unsubscribe(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.subscriptions[subject]
	if !exists {
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}

	sub.cancel()
	delete(s.subscriptions, subject)
	getMemoryBroker().remove(sub)

	memoryLog.Info("Unsubscribed from in-memory subject", "subject", subject)
	return nil
}

// Close closes all subscriptions
func (s *MemorySubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := getMemoryBroker()
	for _, sub := range s.subscriptions {
		sub.cancel()
		b.remove(sub)
	}
	s.subscriptions = make(map[string]*memorySubscription)

	memoryLog.Info("Memory subscriber closed")
	return nil
}
