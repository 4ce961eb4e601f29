// Package memwatch polls heap usage and runs cleanup callbacks when it
// crosses a limit.
package memwatch

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/bactolab/resistscope/internal/config"
	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/metrics"
)

var memLog = logging.Global().With("component", "memwatch")

// ErrAlreadyStarted is returned by Start on a running watcher
var ErrAlreadyStarted = errors.New("memory watcher already started")

// CleanupFunc releases memory and returns how many items it dropped
type CleanupFunc func() int

// Stats is one heap sample
type Stats struct {
	HeapInUse uint64    `json:"heapInUse"`
	HeapAlloc uint64    `json:"heapAlloc"`
	NumGC     uint32    `json:"numGC"`
	Limit     uint64    `json:"limit"`
	OverLimit bool      `json:"overLimit"`
	SampledAt time.Time `json:"sampledAt"`
	Freed     int       `json:"freed"`
	Cleanups  int       `json:"cleanups"`
}

// Watcher samples runtime memory stats on an interval
type Watcher struct {
	interval time.Duration
	limit    uint64
	metrics  *metrics.Metrics
	readMem  func(*runtime.MemStats)
	now      func() time.Time

	mu       sync.Mutex
	cleanups map[string]CleanupFunc
	last     Stats
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a stopped watcher. A zero limit disables cleanup.
func New(cfg config.MemoryConfig, m *metrics.Metrics) *Watcher {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watcher{
		interval: interval,
		limit:    cfg.HeapLimitBytes(),
		metrics:  m,
		readMem:  runtime.ReadMemStats,
		now:      time.Now,
		cleanups: make(map[string]CleanupFunc),
	}
}

// Register adds or replaces a named cleanup callback
func (w *Watcher) Register(name string, fn CleanupFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cleanups[name] = fn
}

// Unregister removes a cleanup callback
func (w *Watcher) Unregister(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.cleanups, name)
}

// Check takes one sample and, when heap in use exceeds the limit, runs every
// callback in name order
func (w *Watcher) Check() Stats {
	var ms runtime.MemStats
	w.readMem(&ms)

	s := Stats{
		HeapInUse: ms.HeapInuse,
		HeapAlloc: ms.HeapAlloc,
		NumGC:     ms.NumGC,
		Limit:     w.limit,
		SampledAt: w.now(),
	}
	w.metrics.SetHeapInUse(ms.HeapInuse)

	if w.limit > 0 && ms.HeapInuse > w.limit {
		s.OverLimit = true
		w.mu.Lock()
		names := make([]string, 0, len(w.cleanups))
		for name := range w.cleanups {
			names = append(names, name)
		}
		sort.Strings(names)
		fns := make([]CleanupFunc, len(names))
		for i, name := range names {
			fns[i] = w.cleanups[name]
		}
		w.mu.Unlock()

		for i, fn := range fns {
			freed := fn()
			s.Freed += freed
			s.Cleanups++
			memLog.Debug("Cleanup ran", "name", names[i], "freed", freed)
		}
		w.metrics.MemoryTrim(s.Freed)
		memLog.Warn("Heap over limit, ran cleanups",
			"heap_inuse", ms.HeapInuse,
			"limit", w.limit,
			"cleanups", s.Cleanups,
			"freed", s.Freed)
	}

	w.mu.Lock()
	w.last = s
	w.mu.Unlock()
	return s
}

// Last returns the most recent sample
func (w *Watcher) Last() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Start begins polling until ctx is cancelled or Stop is called
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	memLog.Info("Memory watcher started", "interval", w.interval.String(), "limit", w.limit)
	go w.loop(ctx, done)
	return nil
}

func (w *Watcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

// Stop halts polling and waits for the loop to exit
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	memLog.Info("Memory watcher stopped")
}
