// Package service runs the 16th-birthday scan: members approaching 16
// trigger a DBS-planning alert to their registering parent, exactly once
// per member.
package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"minderdesk/internal/contact"
	"minderdesk/internal/member/models"
	"minderdesk/internal/notify"
	"minderdesk/internal/platform/metrics"
	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
	"minderdesk/pkg/platform/audit"
	"minderdesk/pkg/requestcontext"
)

// MemberStore is the slice of the member store the scanner needs.
type MemberStore interface {
	ListTurning16InWindow(ctx context.Context, kind id.OwnerKind, from, to time.Time) ([]*models.Member, error)
	Execute(ctx context.Context, memberID id.MemberID, validate func(*models.Member) error, mutate func(*models.Member)) (*models.Member, error)
}

// Dispatcher sends a templated notification.
type Dispatcher interface {
	Send(ctx context.Context, tmpl notify.Template, recipient string, params notify.Params) error
}

// ContactResolver finds the owning parent's contact details.
type ContactResolver interface {
	ResolveContact(ctx context.Context, owner id.Owner) (contact.Contact, error)
}

// Notification reports one alert dispatched during a scan.
type Notification struct {
	MemberID    id.MemberID  `json:"memberId"`
	ChildName   string       `json:"childName"`
	OwnerKind   id.OwnerKind `json:"ownerKind"`
	DaysUntil16 int          `json:"daysUntil16"`
	Urgency     string       `json:"urgency"`
	Recipient   string       `json:"recipient"`
}

// Summary is the scan result.
type Summary struct {
	ApplicantChildrenChecked int            `json:"applicantChildrenChecked"`
	EmployeeChildrenChecked  int            `json:"employeeChildrenChecked"`
	NotificationsSent        int            `json:"notificationsSent"`
	Notifications            []Notification `json:"notifications"`
}

// Service scans both owner pools for members approaching their 16th
// birthday.
type Service struct {
	members     MemberStore
	dispatcher  Dispatcher
	contacts    ContactResolver
	auditLog    audit.Store
	metrics     *metrics.Metrics
	logger      *slog.Logger
	horizonDays int
}

func New(members MemberStore, dispatcher Dispatcher, contacts ContactResolver, auditLog audit.Store, m *metrics.Metrics, logger *slog.Logger, horizonDays int) *Service {
	return &Service{
		members:     members,
		dispatcher:  dispatcher,
		contacts:    contacts,
		auditLog:    auditLog,
		metrics:     m,
		logger:      logger,
		horizonDays: horizonDays,
	}
}

// Run scans the application and employee pools concurrently and returns
// the combined summary. A member failing (missing contact, email error)
// is logged and skipped; the rest of the batch continues.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	ctx, span := otel.Tracer("minderdesk/scanner").Start(ctx, "scanner.Run")
	span.SetAttributes(attribute.Int("horizon_days", s.horizonDays))
	defer span.End()

	now := requestcontext.Now(ctx)
	from := midnightUTC(now)
	to := from.AddDate(0, 0, s.horizonDays)

	var applicantResults, employeeResults poolResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		applicantResults, err = s.scanPool(gctx, id.OwnerApplication, from, to, now)
		return err
	})
	g.Go(func() error {
		var err error
		employeeResults, err = s.scanPool(gctx, id.OwnerEmployee, from, to, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{
		ApplicantChildrenChecked: applicantResults.checked,
		EmployeeChildrenChecked:  employeeResults.checked,
		Notifications:            append(applicantResults.notifications, employeeResults.notifications...),
	}
	summary.NotificationsSent = len(summary.Notifications)
	sort.Slice(summary.Notifications, func(i, j int) bool {
		return summary.Notifications[i].DaysUntil16 < summary.Notifications[j].DaysUntil16
	})
	if summary.Notifications == nil {
		summary.Notifications = []Notification{}
	}

	if s.metrics != nil {
		s.metrics.BirthdayScansRun.Inc()
	}
	s.logger.InfoContext(ctx, "birthday scan complete",
		"applicant_checked", summary.ApplicantChildrenChecked,
		"employee_checked", summary.EmployeeChildrenChecked,
		"sent", summary.NotificationsSent,
	)
	return summary, nil
}

type poolResult struct {
	checked       int
	notifications []Notification
}

func (s *Service) scanPool(ctx context.Context, kind id.OwnerKind, from, to, now time.Time) (poolResult, error) {
	members, err := s.members.ListTurning16InWindow(ctx, kind, from, to)
	if err != nil {
		return poolResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list members turning 16")
	}

	result := poolResult{checked: len(members)}
	for _, m := range members {
		n, ok := s.notify(ctx, m, now)
		if ok {
			result.notifications = append(result.notifications, n)
		}
	}
	return result, nil
}

// notify sends one birthday alert and marks the member notified. The flag
// is set only after a successful dispatch, under the store lock, so a
// concurrent scan sends at most once.
func (s *Service) notify(ctx context.Context, m *models.Member, now time.Time) (Notification, bool) {
	parent, err := s.contacts.ResolveContact(ctx, m.Owner)
	if err != nil || parent.Email == "" {
		s.logger.WarnContext(ctx, "skipping birthday alert, no parent contact",
			"member_id", m.ID,
			"owner", m.Owner.String(),
			"error", err,
		)
		return Notification{}, false
	}

	days := m.DaysUntil16(now)
	urgency := Urgency(days)

	if err := s.dispatcher.Send(ctx, notify.TemplateBirthdayAlert, parent.Email, notify.Params{
		"ApplicantName": parent.Name,
		"ChildName":     m.FullName(),
		"DateOfBirth":   m.DateOfBirth.Format("2 January 2006"),
		"DaysUntil16":   days,
		"Urgency":       urgency,
	}); err != nil {
		s.logger.ErrorContext(ctx, "birthday alert email failed, member stays eligible",
			"member_id", m.ID, "error", err)
		return Notification{}, false
	}

	_, err = s.members.Execute(ctx, m.ID,
		func(m *models.Member) error { return m.CanMarkTurning16Notified() },
		func(m *models.Member) {
			m.ApplyTurning16Notified(now)
			m.AppendReminder(models.ReminderEntry{
				Date:      now,
				Type:      string(notify.TemplateBirthdayAlert),
				Recipient: parent.Email,
				Success:   true,
			})
		},
	)
	if err != nil {
		// Another scan won the flag; the duplicate email is the cost of
		// losing the race, not a correctness failure.
		s.logger.WarnContext(ctx, "birthday flag already set",
			"member_id", m.ID, "error", err)
		return Notification{}, false
	}

	if s.metrics != nil {
		s.metrics.BirthdayAlertsSent.Inc()
	}
	s.emitAudit(ctx, m, parent.Email, urgency)

	return Notification{
		MemberID:    m.ID,
		ChildName:   m.FullName(),
		OwnerKind:   m.Owner.Kind,
		DaysUntil16: days,
		Urgency:     urgency,
		Recipient:   parent.Email,
	}, true
}

// Urgency labels the alert by days remaining until the 16th birthday.
func Urgency(daysUntil16 int) string {
	switch {
	case daysUntil16 <= 0:
		return "URGENT - TODAY"
	case daysUntil16 <= 7:
		return "URGENT"
	case daysUntil16 <= 30:
		return "Important"
	default:
		return "Advance Notice"
	}
}

func (s *Service) emitAudit(ctx context.Context, m *models.Member, recipient, urgency string) {
	if s.auditLog == nil {
		return
	}
	event := audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Action:    audit.ActionBirthdayAlertSent,
		Subject:   m.ID.String(),
		Recipient: recipient,
		Detail:    urgency,
		RequestID: requestcontext.RequestID(ctx),
	}
	if err := s.auditLog.Append(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to append audit event",
			"action", event.Action, "subject", event.Subject, "error", err)
	}
}

func midnightUTC(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
