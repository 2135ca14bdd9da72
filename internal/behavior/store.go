package behavior

import (
	"context"
	"sync"
	"time"
)

// ProfileStore is the keyed profile storage abstraction. Implementations
// must be safe for concurrent use; per-user write serialization is the
// detector's responsibility.
type ProfileStore interface {
	// Get returns a snapshot of the user's profile, or nil when absent.
	Get(ctx context.Context, userID string) (*Profile, error)
	// Save persists the profile.
	Save(ctx context.Context, profile *Profile) error
	// Cleanup removes profiles whose LastUpdate is before the cutoff and
	// returns how many were removed.
	Cleanup(ctx context.Context, cutoff time.Time) (int, error)
	// Count returns the number of stored profiles.
	Count(ctx context.Context) (int, error)
}

// MemoryStore is the default in-memory profile store.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*Profile)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return profile.clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, profile *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile.clone()
	return nil
}

func (s *MemoryStore) Cleanup(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, profile := range s.profiles {
		if profile.LastUpdate.Before(cutoff) {
			delete(s.profiles, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles), nil
}
