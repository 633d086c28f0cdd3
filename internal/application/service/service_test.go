package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minderdesk/internal/application/models"
	"minderdesk/internal/application/store"
	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
	"minderdesk/pkg/platform/audit"
	auditmemory "minderdesk/pkg/platform/audit/memory"
	"minderdesk/pkg/requestcontext"
)

type stubEmployees struct {
	employeeID id.EmployeeID
	err        error
	calls      int
}

func (s *stubEmployees) CreateFromApplication(context.Context, *models.Application) (id.EmployeeID, error) {
	s.calls++
	return s.employeeID, s.err
}

type fixture struct {
	svc          *Service
	applications *store.InMemory
	employees    *stubEmployees
	auditLog     *auditmemory.InMemoryStore
	ctx          context.Context
	now          time.Time
	admin        id.AdminID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		applications: store.NewInMemory(),
		employees:    &stubEmployees{employeeID: id.NewEmployeeID()},
		auditLog:     auditmemory.NewInMemoryStore(),
		now:          time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = New(f.applications, f.employees, f.auditLog, nil, logger)

	admin, err := id.ParseAdminID("7b9f4a1e-8b2c-4f3d-9e1a-5c6d7e8f9a0b")
	require.NoError(t, err)
	f.admin = admin
	f.ctx = requestcontext.WithAdminID(requestcontext.WithTime(context.Background(), f.now), admin)
	return f
}

func validInput() SubmitInput {
	return SubmitInput{
		FirstName:   "Jo",
		LastName:    "Field",
		Email:       "jo@example.com",
		Phone:       "07700 900123",
		DateOfBirth: time.Date(1988, 4, 2, 0, 0, 0, 0, time.UTC),
		Address:     models.Address{Line1: "1 Mill Lane", Town: "York", Postcode: "YO1 7HH"},
		Declarations: models.Declarations{
			InformationIsAccurate: true,
		},
	}
}

func TestSubmitCreatesPendingApplication(t *testing.T) {
	f := newFixture(t)

	a, err := f.svc.Submit(f.ctx, validInput())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, a.Status)
	assert.Equal(t, f.now, a.SubmittedAt)

	pending, err := f.svc.List(f.ctx, models.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)

	events, err := f.auditLog.ListRecent(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionApplicationSubmitted, events[0].Action)
}

func TestSubmitValidatesInput(t *testing.T) {
	f := newFixture(t)

	input := validInput()
	input.Email = "not-an-email"
	_, err := f.svc.Submit(f.ctx, input)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	input = validInput()
	input.Address.Postcode = ""
	_, err = f.svc.Submit(f.ctx, input)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestApproveCreatesEmployee(t *testing.T) {
	f := newFixture(t)
	a, err := f.svc.Submit(f.ctx, validInput())
	require.NoError(t, err)

	approved, employeeID, err := f.svc.Approve(f.ctx, a.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, approved.Status)
	assert.Equal(t, f.admin, approved.ReviewedBy)
	assert.Equal(t, f.employees.employeeID, employeeID)
	assert.Equal(t, 1, f.employees.calls)

	events, err := f.auditLog.ListRecent(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionApplicationApproved, events[0].Action)
	assert.Equal(t, employeeID.String(), events[0].Detail)
	assert.Equal(t, f.admin.String(), events[0].Actor)
}

func TestApproveTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	a, err := f.svc.Submit(f.ctx, validInput())
	require.NoError(t, err)

	_, _, err = f.svc.Approve(f.ctx, a.ID)
	require.NoError(t, err)
	_, _, err = f.svc.Approve(f.ctx, a.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestApproveRollsBackWhenEmployeeCreationFails(t *testing.T) {
	f := newFixture(t)
	f.employees.err = errors.New("employee store down")
	a, err := f.svc.Submit(f.ctx, validInput())
	require.NoError(t, err)

	_, _, err = f.svc.Approve(f.ctx, a.ID)
	require.Error(t, err)

	got, err := f.svc.Get(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Nil(t, got.ReviewedAt)
}

func TestRejectRecordsNotes(t *testing.T) {
	f := newFixture(t)
	a, err := f.svc.Submit(f.ctx, validInput())
	require.NoError(t, err)

	rejected, err := f.svc.Reject(f.ctx, a.ID, "incomplete employment history")
	require.NoError(t, err)

	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Equal(t, "incomplete employment history", rejected.Notes)
	assert.Equal(t, f.admin, rejected.ReviewedBy)

	_, err = f.svc.Reject(f.ctx, a.ID, "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestListValidatesStatusFilter(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.List(f.ctx, "archived")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestGetUnknownApplication(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(f.ctx, id.NewApplicationID())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
