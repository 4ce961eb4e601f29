package kv

import (
	"context"
	"fmt"

	"github.com/golang/snappy"
)

// SnappyStore compresses values with snappy before handing them to the
// wrapped store. Keys are untouched.
type SnappyStore struct {
	Store
}

// NewSnappyStore wraps inner
func NewSnappyStore(inner Store) *SnappyStore {
	return &SnappyStore{Store: inner}
}

func (s *SnappyStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return Decompress(data)
}

func (s *SnappyStore) Set(ctx context.Context, key string, value []byte) error {
	return s.Store.Set(ctx, key, Compress(value))
}

// Compress encodes data with snappy. Empty input stays empty.
func Compress(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	return snappy.Encode(nil, data)
}

// Decompress reverses Compress
func Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decompress failed: %w", err)
	}
	return out, nil
}
