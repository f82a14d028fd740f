// Package storage persists cart snapshots by key.
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Get when no snapshot exists for the key.
var ErrNotFound = errors.New("snapshot not found")

// Storage is a key/value store for serialized cart snapshots.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// ProductIndex is implemented by backends that can find the snapshots holding
// a given product.
type ProductIndex interface {
	KeysWithProduct(ctx context.Context, productID string) ([]string, error)
}

// Purger is implemented by backends whose expired snapshots need explicit
// cleanup.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// MemoryStorage keeps snapshots in process memory. Used for development and
// tests.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	return nil
}

func (s *MemoryStorage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// KeysWithProduct scans every snapshot for the product id.
func (s *MemoryStorage) KeysWithProduct(_ context.Context, productID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0)
	for key, v := range s.data {
		ids, err := productIDs(v)
		if err != nil {
			continue
		}
		for _, id := range ids {
			if id == productID {
				keys = append(keys, key)
				break
			}
		}
	}
	return keys, nil
}

// Len returns the number of stored snapshots.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
