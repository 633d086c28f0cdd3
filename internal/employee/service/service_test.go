package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmodels "minderdesk/internal/application/models"
	appstore "minderdesk/internal/application/store"
	"minderdesk/internal/employee/store"
	membermodels "minderdesk/internal/member/models"
	memberstore "minderdesk/internal/member/store"
	refmodels "minderdesk/internal/reference/models"
	refstore "minderdesk/internal/reference/store"
	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
	"minderdesk/pkg/platform/audit"
	auditmemory "minderdesk/pkg/platform/audit/memory"
	"minderdesk/pkg/requestcontext"
)

type fixture struct {
	svc          *Service
	employees    *store.InMemory
	applications *appstore.InMemory
	members      *memberstore.InMemory
	references   *refstore.InMemory
	auditLog     *auditmemory.InMemoryStore
	ctx          context.Context
	now          time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		employees:    store.NewInMemory(),
		applications: appstore.NewInMemory(),
		members:      memberstore.NewInMemory(),
		references:   refstore.NewInMemory(),
		auditLog:     auditmemory.NewInMemoryStore(),
		now:          time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = New(f.employees, f.applications, f.members, f.references, f.auditLog, logger)
	f.ctx = requestcontext.WithTime(context.Background(), f.now)
	return f
}

func (f *fixture) seedApplication(t *testing.T) *appmodels.Application {
	t.Helper()
	a, err := appmodels.NewApplication("Jo", "Field", "jo@example.com",
		time.Date(1988, 4, 2, 0, 0, 0, 0, time.UTC),
		appmodels.Address{Line1: "1 Mill Lane", Town: "York", Postcode: "YO1 7HH"}, f.now)
	require.NoError(t, err)
	require.NoError(t, f.applications.Create(f.ctx, a))
	return a
}

func (f *fixture) seedMember(t *testing.T, owner id.Owner) *membermodels.Member {
	t.Helper()
	m, err := membermodels.NewMember(owner, "Sam", "Field",
		time.Date(1990, 5, 20, 0, 0, 0, 0, time.UTC), "partner", membermodels.KindAdult, "sam@example.com", f.now)
	require.NoError(t, err)
	require.NoError(t, f.members.Create(f.ctx, m))
	return m
}

func TestCreateFromApplicationCopiesMembers(t *testing.T) {
	f := newFixture(t)
	a := f.seedApplication(t)
	original := f.seedMember(t, id.ApplicationOwner(a.ID))

	// DBS state in flight should survive the copy.
	requested, err := f.members.Execute(f.ctx, original.ID,
		func(m *membermodels.Member) error { return m.CanRequestDBS() },
		func(m *membermodels.Member) { m.ApplyDBSRequest(f.now) },
	)
	require.NoError(t, err)

	employeeID, err := f.svc.CreateFromApplication(f.ctx, a)
	require.NoError(t, err)

	e, err := f.svc.Get(f.ctx, employeeID)
	require.NoError(t, err)
	assert.Equal(t, "Jo Field", e.FullName())
	assert.Equal(t, a.ID, e.ApplicationID)

	copies, err := f.members.ListByOwner(f.ctx, id.EmployeeOwner(employeeID))
	require.NoError(t, err)
	require.Len(t, copies, 1)
	cp := copies[0]
	assert.NotEqual(t, requested.ID, cp.ID)
	assert.Equal(t, membermodels.DBSRequested, cp.DBSStatus)
	assert.NotEqual(t, requested.FormToken, cp.FormToken, "live token must be rotated on copy")

	// The application-owned originals stay in place.
	originals, err := f.members.ListByOwner(f.ctx, id.ApplicationOwner(a.ID))
	require.NoError(t, err)
	assert.Len(t, originals, 1)
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture(t)
	a := f.seedApplication(t)
	f.seedMember(t, id.ApplicationOwner(a.ID))

	reviewer := id.AdminID{}
	_, err := f.applications.Execute(f.ctx, a.ID,
		func(a *appmodels.Application) error { return a.CanApprove() },
		func(a *appmodels.Application) { a.ApplyApproval(reviewer, f.now) },
	)
	require.NoError(t, err)

	employeeID, err := f.svc.CreateFromApplication(f.ctx, a)
	require.NoError(t, err)

	owner := id.EmployeeOwner(employeeID)
	ref, err := refmodels.NewRequest(owner, 1, "Pat Mercer", "pat@example.com", "former manager", false, f.now)
	require.NoError(t, err)
	require.NoError(t, f.references.Create(f.ctx, ref))

	require.NoError(t, f.svc.Delete(f.ctx, employeeID))

	_, err = f.svc.Get(f.ctx, employeeID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	members, err := f.members.ListByOwner(f.ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, members)

	refs, err := f.references.ListByOwner(f.ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, refs)

	reopened, err := f.applications.FindByID(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, appmodels.StatusPending, reopened.Status)
	assert.Nil(t, reopened.ReviewedAt)

	events, err := f.auditLog.ListRecent(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionEmployeeDeleted, events[0].Action)
}

func TestDeleteUnknownEmployee(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Delete(f.ctx, id.NewEmployeeID())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestUpdateStatusValidatesInput(t *testing.T) {
	f := newFixture(t)
	a := f.seedApplication(t)
	employeeID, err := f.svc.CreateFromApplication(f.ctx, a)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(f.ctx, employeeID, "retired")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	e, err := f.svc.UpdateStatus(f.ctx, employeeID, "on_leave")
	require.NoError(t, err)
	assert.Equal(t, "on_leave", string(e.Status))
}
