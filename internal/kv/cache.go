package kv

import (
	"context"
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// CachedStore serves repeated reads from memory for ttl. Writes go through
// to the wrapped store and invalidate the cached entry.
type CachedStore struct {
	Store

	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	stopCh  chan struct{}
	once    sync.Once

	hits   int64
	misses int64
}

// NewCachedStore wraps inner and starts the expiry sweeper
func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	c := &CachedStore{
		Store:   inner,
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *CachedStore) lookup(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		c.misses++
		return nil, false
	}
	c.hits++
	return append([]byte(nil), entry.value...), true
}

func (c *CachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	v, err := c.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = &cacheEntry{value: append([]byte(nil), v...), expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return v, nil
}

func (c *CachedStore) Set(ctx context.Context, key string, value []byte) error {
	c.invalidate(key)
	return c.Store.Set(ctx, key, value)
}

func (c *CachedStore) Delete(ctx context.Context, key string) error {
	c.invalidate(key)
	return c.Store.Delete(ctx, key)
}

func (c *CachedStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
	return c.Store.DeletePrefix(ctx, prefix)
}

func (c *CachedStore) invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// cleanup periodically removes expired entries
func (c *CachedStore) cleanup() {
	interval := c.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

// Stats returns cache statistics
func (c *CachedStore) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	expired := 0
	now := time.Now()
	for _, entry := range c.entries {
		if now.After(entry.expiresAt) {
			expired++
		}
	}

	return map[string]interface{}{
		"total_entries":   len(c.entries),
		"expired_entries": expired,
		"active_entries":  len(c.entries) - expired,
		"hits":            c.hits,
		"misses":          c.misses,
		"ttl_seconds":     c.ttl.Seconds(),
	}
}

// Close stops the sweeper and closes the wrapped store
func (c *CachedStore) Close() error {
	c.once.Do(func() { close(c.stopCh) })
	return c.Store.Close()
}
