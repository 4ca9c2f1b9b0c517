package memory

import (
	"context"
	"sort"
	"sync"

	"cashbook/internal/store"
)

// Store is a process-local BlobStore. Payloads are copied on the way in and
// on the way out so callers never share backing arrays with the store.
type Store struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	failWrite error
}

func New() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key store.PartitionKey) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[key.String()]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *Store) Put(_ context.Context, key store.PartitionKey, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return s.failWrite
	}
	s.blobs[key.String()] = append([]byte(nil), payload...)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// FailWrites makes every following Put return err. Pass nil to recover.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrite = err
}

// Keys lists the stored partitions in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) Partitions(context.Context) ([]store.PartitionKey, error) {
	var out []store.PartitionKey
	for _, raw := range s.Keys() {
		k, err := store.ParsePartitionKey(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}
