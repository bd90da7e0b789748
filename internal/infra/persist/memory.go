package persist

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used by tests and dry runs.
type MemoryStore struct {
	mu     sync.RWMutex
	data   []byte
	exists bool

	// FailReplace, when set, is returned by Replace without storing anything.
	FailReplace error
	// FailRemove, when set, is returned by Remove.
	FailRemove error

	replaces int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWith creates a store pre-populated with data.
func NewMemoryStoreWith(data []byte) *MemoryStore {
	return &MemoryStore{data: append([]byte(nil), data...), exists: true}
}

func (s *MemoryStore) Load(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.exists {
		return nil, ErrNotFound
	}
	return append([]byte(nil), s.data...), nil
}

func (s *MemoryStore) Replace(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReplace != nil {
		return s.FailReplace
	}
	s.data = append([]byte(nil), data...)
	s.exists = true
	s.replaces++
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRemove != nil {
		return s.FailRemove
	}
	s.data = nil
	s.exists = false
	return nil
}

func (s *MemoryStore) Location() string {
	return "memory"
}

// Exists reports whether a record is stored.
func (s *MemoryStore) Exists() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exists
}

// Replaces returns how many successful Replace calls were made.
func (s *MemoryStore) Replaces() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.replaces
}
