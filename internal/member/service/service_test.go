package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minderdesk/internal/contact"
	"minderdesk/internal/member/models"
	"minderdesk/internal/member/store"
	"minderdesk/internal/notify"
	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
	"minderdesk/pkg/platform/audit"
	auditmemory "minderdesk/pkg/platform/audit/memory"
	"minderdesk/pkg/requestcontext"
	"minderdesk/pkg/testutil"
)

type stubContacts struct {
	contact contact.Contact
	err     error
}

func (s stubContacts) ResolveContact(context.Context, id.Owner) (contact.Contact, error) {
	return s.contact, s.err
}

type fixture struct {
	svc      *Service
	members  *store.InMemory
	mailer   *notify.MemoryMailer
	auditLog *auditmemory.InMemoryStore
	ctx      context.Context
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	members := store.NewInMemory()
	mailer := notify.NewMemoryMailer()
	auditLog := auditmemory.NewInMemoryStore()
	contacts := stubContacts{contact: contact.Contact{Name: "Jo Field", Email: "jo@example.com"}}

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &fixture{
		svc:      New(members, notify.NewDispatcher(mailer, logger, nil), contacts, auditLog, logger, "https://forms.example.com"),
		members:  members,
		mailer:   mailer,
		auditLog: auditLog,
		ctx:      requestcontext.WithTime(context.Background(), now),
		now:      now,
	}
}

func (f *fixture) createMember(t *testing.T, email string) *models.Member {
	t.Helper()
	m, err := f.svc.CreateMember(f.ctx, CreateMemberInput{
		Owner:        id.ApplicationOwner(id.NewApplicationID()),
		FirstName:    "Sam",
		LastName:     "Hale",
		DateOfBirth:  time.Date(1990, 5, 20, 0, 0, 0, 0, time.UTC),
		Relationship: "partner",
		Kind:         models.KindAdult,
		Email:        email,
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) lastAudit(t *testing.T) audit.Event {
	t.Helper()
	events, err := f.auditLog.ListRecent(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	return events[0]
}

func TestCreateMemberRejectsFutureDateOfBirth(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateMember(f.ctx, CreateMemberInput{
		Owner:       id.ApplicationOwner(id.NewApplicationID()),
		FirstName:   "Sam",
		LastName:    "Hale",
		DateOfBirth: f.now.AddDate(0, 0, 1),
		Kind:        models.KindAdult,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestRequestDBSSendsFormLink(t *testing.T) {
	f := newFixture(t)
	m := f.createMember(t, "sam@example.com")

	got, err := f.svc.RequestDBS(f.ctx, m.ID, "", "")
	require.NoError(t, err)

	assert.Equal(t, models.DBSRequested, got.DBSStatus)
	require.NotNil(t, got.DBSRequestedDate)
	assert.Equal(t, f.now, *got.DBSRequestedDate)
	assert.NotEmpty(t, got.FormToken)

	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "sam@example.com", sent[0].To)
	assert.Contains(t, sent[0].TextBody, "https://forms.example.com/household/"+got.FormToken)
	// Requester name resolved from the owner when none given.
	assert.Contains(t, sent[0].TextBody, "Jo Field")

	require.Len(t, got.ReminderHistory, 1)
	assert.True(t, got.ReminderHistory[0].Success)
	assert.Equal(t, audit.ActionDBSRequested, f.lastAudit(t).Action)
}

func TestRequestDBSKeepsTransitionWhenEmailFails(t *testing.T) {
	f := newFixture(t)
	m := f.createMember(t, "sam@example.com")
	f.mailer.FailNext = true

	got, err := f.svc.RequestDBS(f.ctx, m.ID, "", "")
	require.NoError(t, err)

	assert.Equal(t, models.DBSRequested, got.DBSStatus)
	require.Len(t, got.ReminderHistory, 1)
	assert.False(t, got.ReminderHistory[0].Success)
	assert.Empty(t, f.mailer.Sent())
}

func TestRequestDBSTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	m := f.createMember(t, "sam@example.com")

	_, err := f.svc.RequestDBS(f.ctx, m.ID, "", "")
	require.NoError(t, err)
	_, err = f.svc.RequestDBS(f.ctx, m.ID, "", "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestSendReminderRequiresOutstandingRequest(t *testing.T) {
	f := newFixture(t)
	m := f.createMember(t, "sam@example.com")

	_, err := f.svc.SendReminder(f.ctx, m.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestSendReminderRotatesConsumedToken(t *testing.T) {
	f := newFixture(t)
	m := f.createMember(t, "sam@example.com")

	requested, err := f.svc.RequestDBS(f.ctx, m.ID, "", "")
	require.NoError(t, err)

	// Form without a certificate consumes the token but stays requested.
	_, err = f.svc.SubmitHouseholdForm(f.ctx, requested.FormToken, HouseholdForm{})
	require.NoError(t, err)

	got, err := f.svc.SendReminder(f.ctx, m.ID)
	require.NoError(t, err)

	assert.NotEmpty(t, got.FormToken)
	assert.NotEqual(t, requested.FormToken, got.FormToken)
	assert.Equal(t, 2, got.ReminderCount)
	assert.Equal(t, audit.ActionDBSReminderSent, f.lastAudit(t).Action)
}

func TestSendReminderPreservesRequestedDate(t *testing.T) {
	f := newFixture(t)
	m := f.createMember(t, "sam@example.com")

	requested, err := f.svc.RequestDBS(f.ctx, m.ID, "", "")
	require.NoError(t, err)
	_, err = f.svc.SubmitHouseholdForm(f.ctx, requested.FormToken, HouseholdForm{})
	require.NoError(t, err)

	// 40 days later the check is overdue; the reminder must not make it
	// look freshly requested.
	laterCtx := requestcontext.WithTime(context.Background(), f.now.AddDate(0, 0, 40))
	got, err := f.svc.SendReminder(laterCtx, m.ID)
	require.NoError(t, err)

	assert.NotEmpty(t, got.FormToken)
	assert.NotEqual(t, requested.FormToken, got.FormToken)
	require.NotNil(t, got.DBSRequestedDate)
	assert.Equal(t, f.now, *got.DBSRequestedDate)
}

func TestSubmitHouseholdFormConsumesToken(t *testing.T) {
	f := newFixture(t)
	m := f.createMember(t, "sam@example.com")
	requested, err := f.svc.RequestDBS(f.ctx, m.ID, "", "")
	require.NoError(t, err)

	testutil.When(t, "the member submits the form with their certificate", func(t *testing.T) {
		issued := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
		got, err := f.svc.SubmitHouseholdForm(f.ctx, requested.FormToken, HouseholdForm{
			HasCertificate:    true,
			CertificateNumber: "001234567890",
			IssueDate:         &issued,
		})
		require.NoError(t, err)

		assert.Equal(t, models.DBSReceived, got.DBSStatus)
		assert.Equal(t, "001234567890", got.DBSCertificateNumber)
		assert.True(t, got.ResponseReceived)
		assert.Empty(t, got.FormToken)
		assert.Equal(t, audit.ActionFormSubmitted, f.lastAudit(t).Action)
	})

	testutil.Then(t, "the consumed link no longer resolves", func(t *testing.T) {
		_, err := f.svc.SubmitHouseholdForm(f.ctx, requested.FormToken, HouseholdForm{})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestSubmitHouseholdFormRequiresCertificateNumber(t *testing.T) {
	f := newFixture(t)
	m := f.createMember(t, "sam@example.com")
	requested, err := f.svc.RequestDBS(f.ctx, m.ID, "", "")
	require.NoError(t, err)

	_, err = f.svc.SubmitHouseholdForm(f.ctx, requested.FormToken, HouseholdForm{HasCertificate: true})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestSubmitHouseholdFormResubmissionIsFlagged(t *testing.T) {
	f := newFixture(t)
	m := f.createMember(t, "sam@example.com")
	requested, err := f.svc.RequestDBS(f.ctx, m.ID, "", "")
	require.NoError(t, err)

	_, err = f.svc.SubmitHouseholdForm(f.ctx, requested.FormToken, HouseholdForm{})
	require.NoError(t, err)

	// A reminder re-issues the link; submitting again overwrites the
	// earlier answer and is audited as a resubmission.
	reminded, err := f.svc.SendReminder(f.ctx, m.ID)
	require.NoError(t, err)
	_, err = f.svc.SubmitHouseholdForm(f.ctx, reminded.FormToken, HouseholdForm{
		HasCertificate:    true,
		CertificateNumber: "009876543210",
	})
	require.NoError(t, err)

	assert.Equal(t, audit.ActionFormResubmitted, f.lastAudit(t).Action)
}

func TestUpdateDBSStatusGuardsTransitions(t *testing.T) {
	f := newFixture(t)
	m := f.createMember(t, "sam@example.com")

	_, err := f.svc.UpdateDBSStatus(f.ctx, m.ID, models.DBSReceived)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = f.svc.UpdateDBSStatus(f.ctx, m.ID, "banana")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = f.svc.RequestDBS(f.ctx, m.ID, "", "")
	require.NoError(t, err)
	got, err := f.svc.UpdateDBSStatus(f.ctx, m.ID, models.DBSReceived)
	require.NoError(t, err)
	assert.Equal(t, models.DBSReceived, got.DBSStatus)
}
