// Package store provides employee persistence with in-memory and
// PostgreSQL implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"minderdesk/internal/employee/models"
	id "minderdesk/pkg/domain"
	"minderdesk/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded employee store.
type InMemory struct {
	mu        sync.RWMutex
	employees map[id.EmployeeID]*models.Employee
}

func NewInMemory() *InMemory {
	return &InMemory{employees: make(map[id.EmployeeID]*models.Employee)}
}

func cloneEmployee(e *models.Employee) *models.Employee {
	cp := *e
	return &cp
}

func (s *InMemory) Create(_ context.Context, e *models.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.employees[e.ID]; exists {
		return sentinel.ErrConflict
	}
	s.employees[e.ID] = cloneEmployee(e)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, employeeID id.EmployeeID) (*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[employeeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneEmployee(e), nil
}

// List returns all employees, newest start date first.
func (s *InMemory) List(_ context.Context) ([]*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Employee
	for _, e := range s.employees {
		out = append(out, cloneEmployee(e))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartDate.After(out[j].StartDate)
	})
	return out, nil
}

func (s *InMemory) Update(_ context.Context, e *models.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.employees[e.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.employees[e.ID] = cloneEmployee(e)
	return nil
}

func (s *InMemory) Delete(_ context.Context, employeeID id.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.employees[employeeID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.employees, employeeID)
	return nil
}
