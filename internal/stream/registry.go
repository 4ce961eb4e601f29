package stream

import (
	"sort"
	"sync"
)

// Registry owns one accumulator per simulation id
type Registry struct {
	cfg Config

	mu   sync.RWMutex
	accs map[string]*Accumulator
}

// NewRegistry creates an empty registry; every accumulator it creates uses cfg
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:  cfg.normalized(),
		accs: make(map[string]*Accumulator),
	}
}

// Get returns the accumulator for id, if any
func (r *Registry) Get(id string) (*Accumulator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accs[id]
	return acc, ok
}

// GetOrCreate returns the accumulator for id, creating an idle one if needed
func (r *Registry) GetOrCreate(id string) *Accumulator {
	if acc, ok := r.Get(id); ok {
		return acc
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if acc, ok := r.accs[id]; ok {
		return acc
	}
	acc := NewAccumulator(id, r.cfg)
	r.accs[id] = acc
	streamLog.Info("Created accumulator", "simulation_id", id, "max_points", r.cfg.MaxDataPoints)
	return acc
}

// Remove closes and forgets the accumulator for id
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	acc, ok := r.accs[id]
	delete(r.accs, id)
	r.mu.Unlock()

	if ok {
		acc.Close()
	}
	return ok
}

// IDs returns the sorted simulation ids
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.accs))
	for id := range r.accs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshots returns a snapshot of every accumulator, sorted by id
func (r *Registry) Snapshots() []Snapshot {
	ids := r.IDs()
	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		if acc, ok := r.Get(id); ok {
			out = append(out, acc.Snapshot())
		}
	}
	return out
}

// TrimAll halves every buffer. It returns the total number of dropped points.
func (r *Registry) TrimAll() int {
	r.mu.RLock()
	accs := make([]*Accumulator, 0, len(r.accs))
	for _, acc := range r.accs {
		accs = append(accs, acc)
	}
	r.mu.RUnlock()

	dropped := 0
	for _, acc := range accs {
		dropped += acc.Trim(acc.Len() / 2)
	}
	return dropped
}

// Close closes every accumulator
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, acc := range r.accs {
		acc.Close()
		delete(r.accs, id)
	}
}
