package profile

import (
	"context"
	"sync"
)

// MemoryStore keeps sticky assignments in process memory. Safe for
// concurrent use; contents are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]map[string]string // userID -> experimentID -> variationID
}

// NewMemoryStore creates an empty in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]map[string]string)}
}

// Lookup returns the saved variation id for the user/experiment pair, or
// "" when none was saved.
func (s *MemoryStore) Lookup(_ context.Context, userID, experimentID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[userID][experimentID], nil
}

// Save records the variation id for the user/experiment pair, overwriting
// any previous assignment.
func (s *MemoryStore) Save(_ context.Context, userID, experimentID, variationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byExperiment, ok := s.profiles[userID]
	if !ok {
		byExperiment = make(map[string]string)
		s.profiles[userID] = byExperiment
	}
	byExperiment[experimentID] = variationID
	return nil
}

// Len reports the number of users with at least one saved assignment.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}
