package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/stream"
)

// SSE event names
const (
	EventSnapshot  = "snapshot"
	EventBatch     = "batch"
	EventReset     = "reset"
	EventStatus    = "status"
	EventHeartbeat = "heartbeat"
	EventEnd       = "end"
	EventError     = "error"
)

// DefaultHeartbeatInterval keeps idle proxies from closing the stream
const DefaultHeartbeatInterval = 15 * time.Second

// StreamWriter defines the interface for writing events to a stream
type StreamWriter interface {
	WriteEvent(eventType string, data interface{}) error
	Flush() error
}

// SnapshotEvent is the first event of a stream
type SnapshotEvent struct {
	Simulation models.SimulationInfo `json:"simulation"`
	Points     []models.DataPoint    `json:"points"`
}

// StreamService pushes live accumulator events to stream writers
type StreamService struct {
	logger    *logging.Logger
	registry  *stream.Registry
	heartbeat time.Duration

	mu     sync.Mutex
	active int
	done   chan struct{}
	closed bool
}

// NewStreamService creates a new StreamService. heartbeat <= 0 uses the default.
func NewStreamService(logger *logging.Logger, registry *stream.Registry, heartbeat time.Duration) *StreamService {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return &StreamService{
		logger:    logger,
		registry:  registry,
		heartbeat: heartbeat,
		done:      make(chan struct{}),
	}
}

// Active returns the number of open streams
func (s *StreamService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Close ends every open stream
func (s *StreamService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

// Exists reports whether a simulation has a buffer to stream
func (s *StreamService) Exists(simulationID string) bool {
	_, ok := s.registry.Get(simulationID)
	return ok
}

// Stream writes a snapshot of the simulation buffer, then every flushed
// batch, reset and status change until ctx is cancelled, the buffer is
// removed, the service is closed or a write fails. Only existing buffers
// can be streamed; a client watching for a run to start should open the
// stream after the first status or update has been ingested.
func (s *StreamService) Stream(ctx context.Context, simulationID string, w StreamWriter) error {
	if err := ValidateSimulationID(simulationID); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return NewServiceError(CodeUnavailable, "server is shutting down")
	}
	acc, ok := s.registry.Get(simulationID)
	if !ok {
		s.mu.Unlock()
		return NewServiceError(CodeNotFound, "simulation not found: "+simulationID)
	}
	s.active++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	events, cancel := acc.Subscribe()
	defer cancel()

	snap := SnapshotEvent{Simulation: simulationInfo(acc.Snapshot()), Points: acc.Data()}
	if err := s.send(w, EventSnapshot, snap); err != nil {
		return err
	}

	s.logger.Debug("Stream opened", "simulation_id", simulationID)
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return s.send(w, EventEnd, map[string]string{"reason": "shutdown"})
		case ev, ok := <-events:
			if !ok {
				return s.send(w, EventEnd, map[string]string{"reason": "removed"})
			}
			if err := s.send(w, string(ev.Type), ev); err != nil {
				return err
			}
		case t := <-ticker.C:
			if err := s.send(w, EventHeartbeat, map[string]string{"time": t.UTC().Format(time.RFC3339)}); err != nil {
				return err
			}
		}
	}
}

func (s *StreamService) send(w StreamWriter, event string, data interface{}) error {
	if err := w.WriteEvent(event, data); err != nil {
		return err
	}
	return w.Flush()
}

// SSEWriter implements StreamWriter for Server-Sent Events
type SSEWriter struct {
	writer  io.Writer
	eventID int
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w io.Writer) *SSEWriter {
	return &SSEWriter{
		writer: w,
	}
}

// WriteEvent writes one event; ids increase by one per event
func (w *SSEWriter) WriteEvent(eventType string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	w.eventID++
	// id: <id>
	// event: <type>
	// data: <json>
	_, err = fmt.Fprintf(w.writer, "id: %d\nevent: %s\ndata: %s\n\n", w.eventID, eventType, jsonData)
	return err
}

// Flush flushes buffered writers such as *bufio.Writer
func (w *SSEWriter) Flush() error {
	if flusher, ok := w.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}
