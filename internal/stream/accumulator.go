// Package stream accumulates live simulation updates into bounded
// per-simulation buffers.
//
// An Accumulator is idle until it sees the running status, then collects
// points whose generation strictly increases. Collected points sit in a
// write buffer until FlushSize is reached or the run leaves the running
// state; on flush they are appended to the visible data, which is trimmed
// to MaxDataPoints by dropping the oldest points.
package stream

import (
	"sync"

	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/utils"
)

var streamLog = logging.Global().With("component", "stream")

// State is the collection state of an accumulator
type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
)

// Config bounds an accumulator
type Config struct {
	MaxDataPoints int
	FlushSize     int
	AutoReset     bool
	// ListenerBuffer is the channel capacity given to each subscriber
	ListenerBuffer int
}

// DefaultConfig returns the buffer defaults
func DefaultConfig() Config {
	return Config{
		MaxDataPoints:  utils.DefaultMaxDataPoints,
		FlushSize:      utils.DefaultFlushSize,
		AutoReset:      true,
		ListenerBuffer: utils.DefaultListenerBuffer,
	}
}

func (c Config) normalized() Config {
	if c.MaxDataPoints <= 0 {
		c.MaxDataPoints = utils.DefaultMaxDataPoints
	}
	if c.FlushSize <= 0 {
		c.FlushSize = 1
	}
	if c.ListenerBuffer <= 0 {
		c.ListenerBuffer = utils.DefaultListenerBuffer
	}
	return c
}

// EventType distinguishes accumulator notifications
type EventType string

const (
	EventBatch  EventType = "batch"
	EventReset  EventType = "reset"
	EventStatus EventType = "status"
)

// Event is delivered to subscribers
type Event struct {
	Type         EventType               `json:"type"`
	SimulationID string                  `json:"simulationId"`
	Status       models.SimulationStatus `json:"status,omitempty"`
	Points       []models.DataPoint      `json:"points,omitempty"`
	Total        int                     `json:"total"`
}

// Snapshot is a point-in-time view of an accumulator
type Snapshot struct {
	SimulationID   string
	State          State
	Status         models.SimulationStatus
	Points         int
	Pending        int
	LastGeneration int
	HasGeneration  bool
	Accepted       int64
	Dropped        int64
}

// Accumulator is a bounded, status-driven buffer for one simulation.
// It is safe for concurrent use.
type Accumulator struct {
	id  string
	cfg Config

	mu             sync.RWMutex
	state          State
	status         models.SimulationStatus
	data           []models.DataPoint
	pending        []models.DataPoint
	lastGeneration int
	hasGeneration  bool
	accepted       int64
	dropped        int64

	listenerMu sync.Mutex
	listeners  map[int]chan Event
	nextID     int
	closed     bool
}

// NewAccumulator creates an idle accumulator
func NewAccumulator(id string, cfg Config) *Accumulator {
	cfg = cfg.normalized()
	return &Accumulator{
		id:        id,
		cfg:       cfg,
		state:     StateIdle,
		status:    models.StatusIdle,
		data:      make([]models.DataPoint, 0, minInt(cfg.MaxDataPoints, 1024)),
		pending:   make([]models.DataPoint, 0, cfg.FlushSize),
		listeners: make(map[int]chan Event),
	}
}

// ID returns the simulation id
func (a *Accumulator) ID() string {
	return a.id
}

// SetStatus drives the state machine and reports whether the state changed.
// idle -> collecting on running (clearing the buffer when AutoReset is set);
// collecting -> idle on any other status, after flushing pending points.
func (a *Accumulator) SetStatus(status models.SimulationStatus) bool {
	var events []Event

	a.mu.Lock()
	prev := a.state
	a.status = status

	switch {
	case status == models.StatusRunning && a.state == StateIdle:
		a.state = StateCollecting
		if a.cfg.AutoReset {
			a.clearLocked()
			events = append(events, Event{Type: EventReset, SimulationID: a.id})
		}
	case status != models.StatusRunning && a.state == StateCollecting:
		if flushed := a.flushLocked(); len(flushed) > 0 {
			events = append(events, Event{Type: EventBatch, SimulationID: a.id, Points: flushed, Total: len(a.data)})
		}
		a.state = StateIdle
	}
	changed := prev != a.state
	state := a.state
	events = append(events, Event{Type: EventStatus, SimulationID: a.id, Status: status, Total: len(a.data)})
	a.unlockAndPublish(events...)

	if changed {
		streamLog.Debug("Accumulator state changed", "simulation_id", a.id, "from", prev, "to", state, "status", status)
	}
	return changed
}

// Add offers a point. It is accepted only while collecting and only if its
// generation is greater than the last accepted one.
func (a *Accumulator) Add(p models.DataPoint) bool {
	var flushed []models.DataPoint

	a.mu.Lock()
	if a.state != StateCollecting || (a.hasGeneration && p.Generation <= a.lastGeneration) {
		a.dropped++
		a.mu.Unlock()
		return false
	}

	a.pending = append(a.pending, p)
	a.lastGeneration = p.Generation
	a.hasGeneration = true
	a.accepted++

	if len(a.pending) >= a.cfg.FlushSize || a.status == models.StatusCompleted {
		flushed = a.flushLocked()
	}
	if len(flushed) == 0 {
		a.mu.Unlock()
		return true
	}
	a.unlockAndPublish(Event{Type: EventBatch, SimulationID: a.id, Points: flushed, Total: len(a.data)})
	return true
}

// Flush moves pending points into the visible data
func (a *Accumulator) Flush() int {
	a.mu.Lock()
	flushed := a.flushLocked()
	if len(flushed) == 0 {
		a.mu.Unlock()
		return 0
	}
	a.unlockAndPublish(Event{Type: EventBatch, SimulationID: a.id, Points: flushed, Total: len(a.data)})
	return len(flushed)
}

// flushLocked appends pending to data and trims the oldest overflow.
// Returns the flushed points.
func (a *Accumulator) flushLocked() []models.DataPoint {
	if len(a.pending) == 0 {
		return nil
	}

	flushed := make([]models.DataPoint, len(a.pending))
	copy(flushed, a.pending)
	a.data = append(a.data, a.pending...)
	a.pending = a.pending[:0]

	if overflow := len(a.data) - a.cfg.MaxDataPoints; overflow > 0 {
		a.data = append(a.data[:0:0], a.data[overflow:]...)
	}
	return flushed
}

func (a *Accumulator) clearLocked() {
	a.data = a.data[:0]
	a.pending = a.pending[:0]
	a.lastGeneration = 0
	a.hasGeneration = false
}

// Reset clears all points and returns to idle
func (a *Accumulator) Reset() {
	a.mu.Lock()
	a.clearLocked()
	a.state = StateIdle
	a.status = models.StatusIdle
	a.unlockAndPublish(Event{Type: EventReset, SimulationID: a.id})
}

// Restore replaces the visible data, e.g. when a saved session is loaded.
// Points are trimmed to MaxDataPoints; the accumulator is left idle.
func (a *Accumulator) Restore(points []models.DataPoint) {
	a.mu.Lock()
	a.clearLocked()
	a.state = StateIdle
	a.status = models.StatusIdle
	if overflow := len(points) - a.cfg.MaxDataPoints; overflow > 0 {
		points = points[overflow:]
	}
	a.data = append(a.data, points...)
	if n := len(a.data); n > 0 {
		a.lastGeneration = a.data[n-1].Generation
		a.hasGeneration = true
	}
	a.unlockAndPublish(a.resetEventLocked())
}

// Trim keeps at most keep of the newest visible points and returns how
// many were dropped. Listeners get a reset carrying the remaining points.
func (a *Accumulator) Trim(keep int) int {
	if keep < 0 {
		keep = 0
	}
	a.mu.Lock()
	overflow := len(a.data) - keep
	if overflow <= 0 {
		a.mu.Unlock()
		return 0
	}
	a.data = append(a.data[:0:0], a.data[overflow:]...)
	a.unlockAndPublish(a.resetEventLocked())
	return overflow
}

// resetEventLocked describes the whole visible buffer; listeners replace
// their copy with it
func (a *Accumulator) resetEventLocked() Event {
	points := make([]models.DataPoint, len(a.data))
	copy(points, a.data)
	return Event{Type: EventReset, SimulationID: a.id, Points: points, Total: len(points)}
}

// Data returns a copy of the visible points
func (a *Accumulator) Data() []models.DataPoint {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.DataPoint, len(a.data))
	copy(out, a.data)
	return out
}

// Len returns the number of visible points
func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.data)
}

// State returns the collection state
func (a *Accumulator) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Snapshot returns counters and state for listings
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Snapshot{
		SimulationID:   a.id,
		State:          a.state,
		Status:         a.status,
		Points:         len(a.data),
		Pending:        len(a.pending),
		LastGeneration: a.lastGeneration,
		HasGeneration:  a.hasGeneration,
		Accepted:       a.accepted,
		Dropped:        a.dropped,
	}
}

// Subscribe registers a listener for flushes, resets and status changes.
// Slow listeners miss events rather than blocking ingestion. The returned
// func unsubscribes and closes the channel.
func (a *Accumulator) Subscribe() (<-chan Event, func()) {
	a.listenerMu.Lock()
	defer a.listenerMu.Unlock()

	ch := make(chan Event, a.cfg.ListenerBuffer)
	if a.closed {
		close(ch)
		return ch, func() {}
	}

	id := a.nextID
	a.nextID++
	a.listeners[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.listenerMu.Lock()
			defer a.listenerMu.Unlock()
			if c, ok := a.listeners[id]; ok {
				delete(a.listeners, id)
				close(c)
			}
		})
	}
}

// unlockAndPublish releases mu only after taking listenerMu, so listeners
// see events in the order the changes were applied. Must be called with
// mu held. Sends never block.
func (a *Accumulator) unlockAndPublish(events ...Event) {
	a.listenerMu.Lock()
	a.mu.Unlock()
	defer a.listenerMu.Unlock()

	for _, ev := range events {
		for id, ch := range a.listeners {
			select {
			case ch <- ev:
			default:
				streamLog.Warn("Dropping event for slow listener", "simulation_id", a.id, "listener", id, "event", ev.Type)
			}
		}
	}
}

// Close disconnects every listener
func (a *Accumulator) Close() {
	a.listenerMu.Lock()
	defer a.listenerMu.Unlock()

	a.closed = true
	for id, ch := range a.listeners {
		close(ch)
		delete(a.listeners, id)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
