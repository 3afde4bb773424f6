// Package memory is an in-process fragment store for local runs and tests.
package memory

import (
	"context"
	"sync"

	"ragchat/internal/domain"
)

// Store keeps fragment records in a map.
type Store struct {
	mu        sync.RWMutex
	fragments map[string]domain.Fragment
}

// NewStore creates an empty fragment store.
func NewStore() *Store {
	return &Store{fragments: make(map[string]domain.Fragment)}
}

// Put stores a fragment record under the given identifier.
func (s *Store) Put(fragmentID string, frag domain.Fragment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fragments[fragmentID] = frag
}

// Delete removes a fragment record.
func (s *Store) Delete(fragmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fragments, fragmentID)
}

// GetFragment fetches one fragment record; ok=false when absent.
func (s *Store) GetFragment(_ context.Context, fragmentID string) (domain.Fragment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	frag, ok := s.fragments[fragmentID]
	return frag, ok, nil
}
