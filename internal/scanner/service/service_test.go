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
	auditmemory "minderdesk/pkg/platform/audit/memory"
	"minderdesk/pkg/requestcontext"
)

type stubContacts struct {
	contact contact.Contact
	err     error
}

func (s stubContacts) ResolveContact(context.Context, id.Owner) (contact.Contact, error) {
	return s.contact, s.err
}

type fixture struct {
	svc     *Service
	members *store.InMemory
	mailer  *notify.MemoryMailer
	ctx     context.Context
	now     time.Time
}

func newFixture(t *testing.T, contacts ContactResolver) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	members := store.NewInMemory()
	mailer := notify.NewMemoryMailer()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &fixture{
		svc:     New(members, notify.NewDispatcher(mailer, logger, nil), contacts, auditmemory.NewInMemoryStore(), nil, logger, 60),
		members: members,
		mailer:  mailer,
		ctx:     requestcontext.WithTime(context.Background(), now),
		now:     now,
	}
}

func parentContact() stubContacts {
	return stubContacts{contact: contact.Contact{Name: "Jo Field", Email: "jo@example.com"}}
}

func (f *fixture) addChild(t *testing.T, owner id.Owner, sixteenthIn int) *models.Member {
	t.Helper()
	dob := f.now.AddDate(-16, 0, sixteenthIn)
	m, err := models.NewMember(owner, "Robin", "Hale", dob, "child", models.KindChild, "", f.now)
	require.NoError(t, err)
	require.NoError(t, f.members.Create(f.ctx, m))
	return m
}

func TestRunSendsUrgentAlertExactlyOnce(t *testing.T) {
	f := newFixture(t, parentContact())
	m := f.addChild(t, id.ApplicationOwner(id.NewApplicationID()), 5)

	summary, err := f.svc.Run(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ApplicantChildrenChecked)
	assert.Equal(t, 0, summary.EmployeeChildrenChecked)
	require.Equal(t, 1, summary.NotificationsSent)
	n := summary.Notifications[0]
	assert.Equal(t, m.ID, n.MemberID)
	assert.Equal(t, 5, n.DaysUntil16)
	assert.Equal(t, "URGENT", n.Urgency)
	assert.Equal(t, "jo@example.com", n.Recipient)

	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Subject, "URGENT")
	assert.Contains(t, sent[0].TextBody, "Robin Hale")

	got, err := f.members.FindByID(f.ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.Turning16NotificationSent)
	require.Len(t, got.ReminderHistory, 1)
	assert.Equal(t, string(notify.TemplateBirthdayAlert), got.ReminderHistory[0].Type)

	// The flag keeps a rerun silent.
	summary, err = f.svc.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ApplicantChildrenChecked)
	assert.Equal(t, 0, summary.NotificationsSent)
	assert.Len(t, f.mailer.Sent(), 1)
}

func TestRunScansBothOwnerPools(t *testing.T) {
	f := newFixture(t, parentContact())
	f.addChild(t, id.ApplicationOwner(id.NewApplicationID()), 40)
	f.addChild(t, id.EmployeeOwner(id.NewEmployeeID()), 10)

	summary, err := f.svc.Run(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ApplicantChildrenChecked)
	assert.Equal(t, 1, summary.EmployeeChildrenChecked)
	require.Equal(t, 2, summary.NotificationsSent)
	// Sorted soonest first.
	assert.Equal(t, 10, summary.Notifications[0].DaysUntil16)
	assert.Equal(t, "Important", summary.Notifications[0].Urgency)
	assert.Equal(t, 40, summary.Notifications[1].DaysUntil16)
	assert.Equal(t, "Advance Notice", summary.Notifications[1].Urgency)
}

func TestRunSkipsMemberWithoutParentContact(t *testing.T) {
	f := newFixture(t, stubContacts{contact: contact.Contact{Name: "Jo Field"}})
	m := f.addChild(t, id.ApplicationOwner(id.NewApplicationID()), 5)

	summary, err := f.svc.Run(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ApplicantChildrenChecked)
	assert.Equal(t, 0, summary.NotificationsSent)
	assert.Empty(t, f.mailer.Sent())

	got, err := f.members.FindByID(f.ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.Turning16NotificationSent)
}

func TestRunKeepsMemberEligibleWhenEmailFails(t *testing.T) {
	f := newFixture(t, parentContact())
	m := f.addChild(t, id.ApplicationOwner(id.NewApplicationID()), 5)
	f.mailer.FailAll = true

	summary, err := f.svc.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.NotificationsSent)

	got, err := f.members.FindByID(f.ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.Turning16NotificationSent)

	// Next scan retries once the provider recovers.
	f.mailer.FailAll = false
	summary, err = f.svc.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NotificationsSent)
}

func TestRunReturnsEmptySliceNotNil(t *testing.T) {
	f := newFixture(t, parentContact())

	summary, err := f.svc.Run(f.ctx)
	require.NoError(t, err)
	assert.NotNil(t, summary.Notifications)
	assert.Empty(t, summary.Notifications)
}

func TestUrgencyTiers(t *testing.T) {
	cases := []struct {
		days int
		want string
	}{
		{-1, "URGENT - TODAY"},
		{0, "URGENT - TODAY"},
		{1, "URGENT"},
		{7, "URGENT"},
		{8, "Important"},
		{30, "Important"},
		{31, "Advance Notice"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Urgency(tc.days), "days=%d", tc.days)
	}
}
