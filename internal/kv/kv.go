// Package kv provides the key-value stores that back persisted sessions.
//
// Every backend satisfies Store. Keys are flat strings; callers build a
// namespace by prefixing (e.g. "resistscope-sessions-<id>").
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bactolab/resistscope/internal/config"
	"github.com/bactolab/resistscope/internal/logging"
)

var kvLog = logging.Global().With("component", "kv")

// ErrNotFound is returned by Get when a key does not exist
var ErrNotFound = errors.New("key not found")

// Store is a flat key-value store
type Store interface {
	// Get returns the value for key or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// Set creates or replaces the value for key
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns every key with the given prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)
	// DeletePrefix removes every key with the given prefix and returns the count
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// Close releases backend resources
	Close() error
}

// Backend names accepted by New
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendEtcd   = "etcd"
)

// New builds the store described by cfg, wrapping it with the snappy codec
// and the read cache when configured.
func New(cfg config.SessionsConfig) (Store, error) {
	var (
		store Store
		err   error
	)

	switch strings.ToLower(cfg.Backend) {
	case "", BackendMemory:
		store = NewMemoryStore()
	case BackendFile:
		store, err = NewFileStore(cfg.Dir)
	case BackendRedis:
		store, err = NewRedisStore(RedisConfig{
			URL:      cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	case BackendEtcd:
		store, err = NewEtcdStore(EtcdConfig{
			Endpoints:   cfg.Etcd.Endpoints,
			DialTimeout: cfg.Etcd.DialTimeout,
			Username:    cfg.Etcd.Username,
			Password:    cfg.Etcd.Password,
		})
	default:
		return nil, fmt.Errorf("unsupported kv backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Compress {
		store = NewSnappyStore(store)
	}
	if cfg.CacheTTL > 0 {
		store = NewCachedStore(store, cfg.CacheTTL)
	}

	kvLog.Info("Session store ready",
		"backend", cfg.Backend,
		"compress", cfg.Compress,
		"cache_ttl", cfg.CacheTTL.String())
	return store, nil
}
