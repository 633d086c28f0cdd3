package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"minderdesk/internal/member/models"
	id "minderdesk/pkg/domain"
	"minderdesk/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemory
	now   time.Time
}

func (s *InMemorySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) newMember(owner id.Owner, dob time.Time) *models.Member {
	m, err := models.NewMember(owner, "Robin", "Hale", dob, "child", models.KindChild, "robin@example.com", s.now)
	s.Require().NoError(err)
	return m
}

func (s *InMemorySuite) TestCreateAndFind() {
	owner := id.ApplicationOwner(id.NewApplicationID())
	m := s.newMember(owner, time.Date(2011, 6, 15, 0, 0, 0, 0, time.UTC))

	s.Require().NoError(s.store.Create(s.ctx, m))

	got, err := s.store.FindByID(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(m.ID, got.ID)
	s.Equal(models.DBSNotRequested, got.DBSStatus)
	s.Equal(owner, got.Owner)
}

func (s *InMemorySuite) TestCreateDuplicateConflicts() {
	m := s.newMember(id.ApplicationOwner(id.NewApplicationID()), time.Date(2011, 6, 15, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.store.Create(s.ctx, m))
	s.ErrorIs(s.store.Create(s.ctx, m), sentinel.ErrConflict)
}

func (s *InMemorySuite) TestFindByToken() {
	m := s.newMember(id.ApplicationOwner(id.NewApplicationID()), time.Date(2011, 6, 15, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.store.Create(s.ctx, m))

	got, err := s.store.FindByToken(s.ctx, m.FormToken)
	s.Require().NoError(err)
	s.Equal(m.ID, got.ID)

	_, err = s.store.FindByToken(s.ctx, "unknown-token")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByToken(s.ctx, "  ")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestUpdateRejectsStaleVersion() {
	m := s.newMember(id.ApplicationOwner(id.NewApplicationID()), time.Date(2011, 6, 15, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.store.Create(s.ctx, m))

	first, err := s.store.FindByID(s.ctx, m.ID)
	s.Require().NoError(err)
	second, err := s.store.FindByID(s.ctx, m.ID)
	s.Require().NoError(err)

	first.Email = "first@example.com"
	s.Require().NoError(s.store.Update(s.ctx, first))

	second.Email = "second@example.com"
	s.ErrorIs(s.store.Update(s.ctx, second), sentinel.ErrConflict)

	got, err := s.store.FindByID(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal("first@example.com", got.Email)
}

func (s *InMemorySuite) TestExecuteAppliesValidatedMutation() {
	m := s.newMember(id.ApplicationOwner(id.NewApplicationID()), time.Date(2011, 6, 15, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.store.Create(s.ctx, m))

	got, err := s.store.Execute(s.ctx, m.ID,
		func(m *models.Member) error { return m.CanRequestDBS() },
		func(m *models.Member) { m.ApplyDBSRequest(s.now) },
	)
	s.Require().NoError(err)
	s.Equal(models.DBSRequested, got.DBSStatus)
	s.NotEmpty(got.FormToken)
	s.Equal(int64(1), got.Version)
}

func (s *InMemorySuite) TestExecuteValidationFailureLeavesStateUntouched() {
	m := s.newMember(id.ApplicationOwner(id.NewApplicationID()), time.Date(2011, 6, 15, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.store.Create(s.ctx, m))

	_, err := s.store.Execute(s.ctx, m.ID,
		func(*models.Member) error { return sentinel.ErrConflict },
		func(m *models.Member) { m.ApplyDBSRequest(s.now) },
	)
	s.ErrorIs(err, sentinel.ErrConflict)

	got, err := s.store.FindByID(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(models.DBSNotRequested, got.DBSStatus)
	s.Equal(int64(0), got.Version)
}

func (s *InMemorySuite) TestListByOwnerIsScoped() {
	ownerA := id.ApplicationOwner(id.NewApplicationID())
	ownerB := id.EmployeeOwner(id.NewEmployeeID())
	s.Require().NoError(s.store.Create(s.ctx, s.newMember(ownerA, time.Date(2011, 6, 15, 0, 0, 0, 0, time.UTC))))
	s.Require().NoError(s.store.Create(s.ctx, s.newMember(ownerA, time.Date(2013, 2, 1, 0, 0, 0, 0, time.UTC))))
	s.Require().NoError(s.store.Create(s.ctx, s.newMember(ownerB, time.Date(2012, 9, 9, 0, 0, 0, 0, time.UTC))))

	got, err := s.store.ListByOwner(s.ctx, ownerA)
	s.Require().NoError(err)
	s.Len(got, 2)
}

func (s *InMemorySuite) TestListTurning16InWindow() {
	owner := id.ApplicationOwner(id.NewApplicationID())
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 60)

	inWindow := s.newMember(owner, from.AddDate(-16, 0, 10))
	outsideWindow := s.newMember(owner, from.AddDate(-16, 0, 90))
	alreadyNotified := s.newMember(owner, from.AddDate(-16, 0, 20))
	alreadyNotified.Turning16NotificationSent = true
	employeeChild := s.newMember(id.EmployeeOwner(id.NewEmployeeID()), from.AddDate(-16, 0, 10))

	for _, m := range []*models.Member{inWindow, outsideWindow, alreadyNotified, employeeChild} {
		s.Require().NoError(s.store.Create(s.ctx, m))
	}

	got, err := s.store.ListTurning16InWindow(s.ctx, id.OwnerApplication, from, to)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(inWindow.ID, got[0].ID)
}

func (s *InMemorySuite) TestDeleteByOwner() {
	owner := id.EmployeeOwner(id.NewEmployeeID())
	keep := s.newMember(id.ApplicationOwner(id.NewApplicationID()), time.Date(2011, 6, 15, 0, 0, 0, 0, time.UTC))
	gone := s.newMember(owner, time.Date(2012, 6, 15, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.store.Create(s.ctx, keep))
	s.Require().NoError(s.store.Create(s.ctx, gone))

	s.Require().NoError(s.store.DeleteByOwner(s.ctx, owner))

	_, err := s.store.FindByID(s.ctx, gone.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindByID(s.ctx, keep.ID)
	s.NoError(err)
}
