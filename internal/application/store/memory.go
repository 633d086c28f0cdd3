// Package store provides application persistence with in-memory and
// PostgreSQL implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"minderdesk/internal/application/models"
	id "minderdesk/pkg/domain"
	"minderdesk/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded application store.
type InMemory struct {
	mu           sync.RWMutex
	applications map[id.ApplicationID]*models.Application
}

func NewInMemory() *InMemory {
	return &InMemory{applications: make(map[id.ApplicationID]*models.Application)}
}

func cloneApplication(a *models.Application) *models.Application {
	cp := *a
	cp.Qualifications = append([]models.Qualification{}, a.Qualifications...)
	cp.EmploymentHistory = append([]models.Employment{}, a.EmploymentHistory...)
	if a.ReviewedAt != nil {
		t := *a.ReviewedAt
		cp.ReviewedAt = &t
	}
	return &cp
}

func (s *InMemory) Create(_ context.Context, a *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.applications[a.ID]; exists {
		return sentinel.ErrConflict
	}
	s.applications[a.ID] = cloneApplication(a)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, applicationID id.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.applications[applicationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneApplication(a), nil
}

// List returns all applications, newest submission first. An empty status
// filter returns everything.
func (s *InMemory) List(_ context.Context, status models.Status) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Application
	for _, a := range s.applications {
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, cloneApplication(a))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out, nil
}

// Execute atomically validates and mutates an application under the store
// lock, so status check-then-transition cannot race.
func (s *InMemory) Execute(_ context.Context, applicationID id.ApplicationID, validate func(*models.Application) error, mutate func(*models.Application)) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.applications[applicationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := cloneApplication(a)
	if err := validate(cp); err != nil {
		return nil, err
	}
	mutate(cp)
	s.applications[applicationID] = cp
	return cloneApplication(cp), nil
}
