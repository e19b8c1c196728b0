package store

import (
	"errors"
	"fmt"
	"sync"
)

var ErrEmptyVector = errors.New("empty vector")

// Entry is one enrolled user and their unit-norm embedding.
type Entry struct {
	UserID string
	Vector []float64
}

// Backend persists entries behind the in-memory index. Save is called under
// the store's write lock; Load returns entries in insertion order.
type Backend interface {
	Save(userID string, vector []float64) error
	Load() ([]Entry, error)
	Close() error
}

// Counter is implemented by backends that can count their rows without
// loading them.
type Counter interface {
	Count() (int, error)
}

// Store is the process-wide enrollment table. Put and Entries are safe for
// concurrent use; Entries never observes a half-applied Put.
type Store struct {
	mu      sync.RWMutex
	index   map[string]int
	entries []Entry
	backend Backend
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{index: make(map[string]int)}
}

// Open loads the backend's entries and writes every later Put through to it.
func Open(b Backend) (*Store, error) {
	s := New()
	if b == nil {
		return s, nil
	}
	loaded, err := b.Load()
	if err != nil {
		return nil, fmt.Errorf("loading enrollments: %w", err)
	}
	for _, e := range loaded {
		s.put(e.UserID, e.Vector)
	}
	s.backend = b
	return s, nil
}

// Put stores a copy of vector for userID, replacing any earlier vector. A
// re-enrolled user keeps their original position.
func (s *Store) Put(userID string, vector []float64) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		if err := s.backend.Save(userID, vector); err != nil {
			return fmt.Errorf("persisting enrollment %q: %w", userID, err)
		}
	}
	s.put(userID, vector)
	return nil
}

func (s *Store) put(userID string, vector []float64) {
	v := append([]float64(nil), vector...)
	if i, ok := s.index[userID]; ok {
		s.entries[i].Vector = v
		return
	}
	s.index[userID] = len(s.entries)
	s.entries = append(s.entries, Entry{UserID: userID, Vector: v})
}

// Entries returns a snapshot in insertion order. Stored vectors are replaced,
// never mutated, so the snapshot shares them safely; callers must not modify
// the returned vectors.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Get returns the stored vector for userID.
func (s *Store) Get(userID string) ([]float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[userID]
	if !ok {
		return nil, false
	}
	return s.entries[i].Vector, true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// UserIDs returns enrolled IDs in insertion order.
func (s *Store) UserIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, len(s.entries))
	for i, e := range s.entries {
		ids[i] = e.UserID
	}
	return ids
}

// Persisted returns the number of entries the backend holds, or Len when the
// store is memory-only or the backend cannot count.
func (s *Store) Persisted() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.backend.(Counter); ok {
		return c.Count()
	}
	return len(s.entries), nil
}

// Close releases the backend, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	return err
}
