package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bactolab/resistscope/internal/logging"
	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/session"
	"github.com/bactolab/resistscope/internal/stream"
)

// ErrAutoSaverRunning is returned by Start when the loop is already running
var ErrAutoSaverRunning = errors.New("autosaver already running")

// AutoSaver periodically saves every collecting simulation and saves each
// run once more when it stops collecting. Each run keeps only its newest
// autosave: the previous one is deleted after a successful save.
// Simulations that accepted nothing since the last tick are skipped.
type AutoSaver struct {
	logger   *logging.Logger
	store    *session.Store
	registry *stream.Registry
	interval time.Duration

	// saveMu serializes saves so a tick and a run end never both replace
	// the same autosave
	saveMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	last   map[string]autosaveMark
	now    func() time.Time
}

type autosaveMark struct {
	sessionID string
	accepted  int64
}

// NewAutoSaver creates an AutoSaver. It does nothing until Start.
func NewAutoSaver(logger *logging.Logger, store *session.Store, registry *stream.Registry, interval time.Duration) *AutoSaver {
	return &AutoSaver{
		logger:   logger,
		store:    store,
		registry: registry,
		interval: interval,
		last:     make(map[string]autosaveMark),
		now:      time.Now,
	}
}

// Start runs the save loop until ctx is cancelled or Stop is called.
// A non-positive interval disables autosave.
func (a *AutoSaver) Start(ctx context.Context) error {
	if a.interval <= 0 {
		a.logger.Info("Autosave disabled")
		return nil
	}

	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		return ErrAutoSaverRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.SaveAll(ctx)
			}
		}
	}()

	a.logger.Info("Autosave started", "interval", a.interval)
	return nil
}

// Stop ends the loop and waits for an in-flight save
func (a *AutoSaver) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		a.wg.Wait()
		a.logger.Info("Autosave stopped")
	}
}

// SaveAll saves every collecting simulation with new data and returns the
// number of sessions written
func (a *AutoSaver) SaveAll(ctx context.Context) int {
	saved := 0
	for _, snap := range a.registry.Snapshots() {
		if ctx.Err() != nil {
			break
		}
		if snap.State != stream.StateCollecting {
			continue
		}
		if a.saveOne(ctx, snap.SimulationID, false) {
			saved++
		}
	}
	return saved
}

// RunStarted is called when a buffer starts collecting. A buffer that was
// cleared begins a new run, so the previous run's autosave is kept.
func (a *AutoSaver) RunStarted(simulationID string, cleared bool) {
	if cleared {
		a.Forget(simulationID)
	}
}

// RunEnded is called when a buffer stops collecting. The buffer is saved,
// replacing the run's last autosave. After a terminal status the run is
// closed and its session kept for good.
func (a *AutoSaver) RunEnded(simulationID string, status models.SimulationStatus) {
	a.saveOne(context.Background(), simulationID, true)
	if status.IsTerminal() {
		a.Forget(simulationID)
	}
}

// saveOne saves the buffer of a simulation. Periodic saves (final=false)
// only apply to collecting buffers with points accepted since the last save.
func (a *AutoSaver) saveOne(ctx context.Context, simulationID string, final bool) bool {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	acc, ok := a.registry.Get(simulationID)
	if !ok {
		return false
	}
	snap := acc.Snapshot()
	if !final && snap.State != stream.StateCollecting {
		return false
	}

	a.mu.Lock()
	prev, seen := a.last[simulationID]
	a.mu.Unlock()
	if seen && prev.accepted == snap.Accepted && !final {
		return false
	}

	data := acc.Data()
	if len(data) == 0 {
		return false
	}

	sess := a.store.Save(ctx, simulationID, Metadata(data, snap.Status, nil, a.now()), data)
	if sess == nil {
		return false
	}

	if seen && prev.sessionID != "" {
		if err := a.store.DeleteE(ctx, prev.sessionID); err != nil && !errors.Is(err, session.ErrNotFound) {
			a.logger.Warn("Failed to remove previous autosave", "session_id", prev.sessionID, "error", err)
		}
	}

	a.mu.Lock()
	a.last[simulationID] = autosaveMark{sessionID: sess.ID, accepted: snap.Accepted}
	a.mu.Unlock()

	a.logger.Debug("Autosaved simulation",
		"simulation_id", simulationID,
		"session_id", sess.ID,
		"points", len(data),
		"status", snap.Status)
	return true
}

// Forget drops the autosave marker of a simulation so its next save keeps
// the previous autosave
func (a *AutoSaver) Forget(simulationID string) {
	a.mu.Lock()
	delete(a.last, simulationID)
	a.mu.Unlock()
}

// LastSession returns the id of the newest autosave of a simulation
func (a *AutoSaver) LastSession(simulationID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.last[simulationID]
	return m.sessionID, ok && m.sessionID != ""
}
