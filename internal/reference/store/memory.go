// Package store provides reference request persistence with in-memory
// and PostgreSQL implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"minderdesk/internal/reference/models"
	id "minderdesk/pkg/domain"
	"minderdesk/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded reference request store.
type InMemory struct {
	mu       sync.RWMutex
	requests map[id.ReferenceID]*models.ReferenceRequest
}

func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[id.ReferenceID]*models.ReferenceRequest)}
}

func cloneRequest(r *models.ReferenceRequest) *models.ReferenceRequest {
	cp := *r
	if r.Response != nil {
		resp := *r.Response
		cp.Response = &resp
	}
	if r.ResponseReceivedDate != nil {
		t := *r.ResponseReceivedDate
		cp.ResponseReceivedDate = &t
	}
	return &cp
}

// Create enforces one request per (owner, reference_number).
func (s *InMemory) Create(_ context.Context, r *models.ReferenceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.Owner == r.Owner && existing.ReferenceNumber == r.ReferenceNumber {
			return sentinel.ErrConflict
		}
	}
	if _, exists := s.requests[r.ID]; exists {
		return sentinel.ErrConflict
	}
	s.requests[r.ID] = cloneRequest(r)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, referenceID id.ReferenceID) (*models.ReferenceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[referenceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(r), nil
}

func (s *InMemory) FindByToken(_ context.Context, token string) (*models.ReferenceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if token == "" {
		return nil, sentinel.ErrNotFound
	}
	for _, r := range s.requests {
		if r.FormToken == token {
			return cloneRequest(r), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Execute atomically validates and mutates a request under the store
// lock, so the double-submit race has exactly one winner.
func (s *InMemory) Execute(_ context.Context, referenceID id.ReferenceID, validate func(*models.ReferenceRequest) error, mutate func(*models.ReferenceRequest)) (*models.ReferenceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[referenceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := cloneRequest(r)
	if err := validate(cp); err != nil {
		return nil, err
	}
	mutate(cp)
	s.requests[referenceID] = cp
	return cloneRequest(cp), nil
}

func (s *InMemory) ListByOwner(_ context.Context, owner id.Owner) ([]*models.ReferenceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ReferenceRequest
	for _, r := range s.requests {
		if r.Owner == owner {
			out = append(out, cloneRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ReferenceNumber < out[j].ReferenceNumber
	})
	return out, nil
}

func (s *InMemory) Delete(_ context.Context, referenceID id.ReferenceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[referenceID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.requests, referenceID)
	return nil
}

func (s *InMemory) DeleteByOwner(_ context.Context, owner id.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for refID, r := range s.requests {
		if r.Owner == owner {
			delete(s.requests, refID)
		}
	}
	return nil
}
