package decision

import "sync"

type overrideKey struct {
	experimentID string
	userID       string
}

// OverrideStore holds runtime forced-variation overrides keyed by
// experiment and user. It is the only mutable state the pipeline owns:
// last-writer-wins semantics, safe for concurrent get/set/remove.
type OverrideStore struct {
	mu        sync.RWMutex
	overrides map[overrideKey]string
}

// NewOverrideStore creates an empty override store.
func NewOverrideStore() *OverrideStore {
	return &OverrideStore{overrides: make(map[overrideKey]string)}
}

// Get returns the forced variation id for the experiment/user pair.
func (s *OverrideStore) Get(experimentID, userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.overrides[overrideKey{experimentID, userID}]
	return id, ok
}

// Set forces a variation id for the experiment/user pair.
func (s *OverrideStore) Set(experimentID, userID, variationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[overrideKey{experimentID, userID}] = variationID
}

// Remove clears the override for the experiment/user pair.
func (s *OverrideStore) Remove(experimentID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, overrideKey{experimentID, userID})
}

// Len reports the number of active overrides.
func (s *OverrideStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.overrides)
}
