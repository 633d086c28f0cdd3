// Package store provides member persistence. The in-memory implementation
// backs unit tests and dev mode; PostgreSQL is used in production. Both
// return sentinel errors for services to translate.
package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"minderdesk/internal/member/models"
	id "minderdesk/pkg/domain"
	"minderdesk/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded member store.
type InMemory struct {
	mu      sync.RWMutex
	members map[id.MemberID]*models.Member
}

func NewInMemory() *InMemory {
	return &InMemory{members: make(map[id.MemberID]*models.Member)}
}

func cloneMember(m *models.Member) *models.Member {
	cp := *m
	cp.ReminderHistory = append([]models.ReminderEntry{}, m.ReminderHistory...)
	if m.ResponseDate != nil {
		t := *m.ResponseDate
		cp.ResponseDate = &t
	}
	if m.DBSIssueDate != nil {
		t := *m.DBSIssueDate
		cp.DBSIssueDate = &t
	}
	if m.DBSRequestedDate != nil {
		t := *m.DBSRequestedDate
		cp.DBSRequestedDate = &t
	}
	return &cp
}

func (s *InMemory) Create(_ context.Context, m *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.members[m.ID]; exists {
		return sentinel.ErrConflict
	}
	s.members[m.ID] = cloneMember(m)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, memberID id.MemberID) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneMember(m), nil
}

// FindByToken resolves a live (unconsumed) form token.
func (s *InMemory) FindByToken(_ context.Context, token string) (*models.Member, error) {
	if strings.TrimSpace(token) == "" {
		return nil, sentinel.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.FormToken == token {
			return cloneMember(m), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Update persists a member read earlier. The write is rejected with
// ErrConflict when the stored version has moved on (lost-update guard for
// the reminder history read-modify-write).
func (s *InMemory) Update(_ context.Context, m *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.members[m.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != m.Version {
		return sentinel.ErrConflict
	}
	cp := cloneMember(m)
	cp.Version = current.Version + 1
	s.members[m.ID] = cp
	m.Version = cp.Version
	return nil
}

// Execute atomically validates and mutates a member while holding the
// store lock, so check-then-transition cannot interleave with another
// writer. Returns the updated member.
func (s *InMemory) Execute(_ context.Context, memberID id.MemberID, validate func(*models.Member) error, mutate func(*models.Member)) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := cloneMember(m)
	if err := validate(cp); err != nil {
		return nil, err
	}
	mutate(cp)
	cp.Version = m.Version + 1
	s.members[memberID] = cp
	return cloneMember(cp), nil
}

func (s *InMemory) ListByOwner(_ context.Context, owner id.Owner) ([]*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Member
	for _, m := range s.members {
		if m.Owner == owner {
			out = append(out, cloneMember(m))
		}
	}
	return out, nil
}

// ListTurning16InWindow returns members of the given owner pool whose
// 16th birthday falls in [from, to] and who have not yet been notified.
func (s *InMemory) ListTurning16InWindow(_ context.Context, kind id.OwnerKind, from, to time.Time) ([]*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Member
	for _, m := range s.members {
		if m.Owner.Kind != kind || m.Turning16NotificationSent {
			continue
		}
		b := m.SixteenthBirthday()
		if !b.Before(from) && !b.After(to) {
			out = append(out, cloneMember(m))
		}
	}
	return out, nil
}

func (s *InMemory) DeleteByOwner(_ context.Context, owner id.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for memberID, m := range s.members {
		if m.Owner == owner {
			delete(s.members, memberID)
		}
	}
	return nil
}
