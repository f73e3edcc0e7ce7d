package store

import (
	"context"
	"sync"
	"time"

	"profilegate/internal/profile/models"
	"profilegate/pkg/platform/sentinel"
)

// InMemory is a process-local profile store with auto-incrementing ids.
type InMemory struct {
	mu       sync.RWMutex
	profiles map[models.ProfileID]models.StoredProfile
	nextID   models.ProfileID
	now      func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{
		profiles: make(map[models.ProfileID]models.StoredProfile),
		nextID:   1,
		now:      time.Now,
	}
}

func (s *InMemory) InsertProfile(_ context.Context, p models.PersistedProfile) (models.ProfileID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.profiles[id] = models.StoredProfile{
		ID:          id,
		LastName:    p.LastName,
		FirstName:   p.FirstName,
		DateOfBirth: p.DateOfBirth,
		Salary:      p.Salary,
		CreatedAt:   s.now(),
	}
	return id, nil
}

func (s *InMemory) GetProfile(_ context.Context, id models.ProfileID) (*models.StoredProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

// UpdateProfile overwrites every mutable column of an existing profile.
// CreatedAt is preserved.
func (s *InMemory) UpdateProfile(_ context.Context, id models.ProfileID, p models.PersistedProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.profiles[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	existing.LastName = p.LastName
	existing.FirstName = p.FirstName
	existing.DateOfBirth = p.DateOfBirth
	existing.Salary = p.Salary
	s.profiles[id] = existing
	return nil
}

func (s *InMemory) Ping(context.Context) error {
	return nil
}
