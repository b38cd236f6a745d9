package inventory

import (
	"context"
	"sync"
)

// Store persists one cache row per host id. Put replaces the whole row and
// clears any error annotation; SetError touches only the annotation, leaving
// the stored collections intact.
type Store interface {
	Get(ctx context.Context, hostID string) (Entry, bool, error)
	Put(ctx context.Context, hostID string, entry Entry) error
	SetError(ctx context.Context, hostID, message string) error
}

// MemoryStore is the in-process Store used for single-instance deployments
// and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Entry)}
}

func (s *MemoryStore) Get(_ context.Context, hostID string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.rows[hostID]
	return entry, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, hostID string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.LastError = ""
	s.rows[hostID] = entry
	return nil
}

func (s *MemoryStore) SetError(_ context.Context, hostID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.rows[hostID]
	if !ok {
		return nil
	}
	entry.LastError = message
	s.rows[hostID] = entry
	return nil
}
