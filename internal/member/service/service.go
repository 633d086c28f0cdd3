// Package service orchestrates the compliance member lifecycle: DBS
// requests and reminders, household suitability form submissions, and
// admin status corrections.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"minderdesk/internal/contact"
	"minderdesk/internal/member/models"
	"minderdesk/internal/notify"
	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
	"minderdesk/pkg/platform/audit"
	"minderdesk/pkg/platform/sentinel"
	"minderdesk/pkg/requestcontext"
)

// Store is the member persistence contract.
type Store interface {
	Create(ctx context.Context, m *models.Member) error
	FindByID(ctx context.Context, memberID id.MemberID) (*models.Member, error)
	FindByToken(ctx context.Context, token string) (*models.Member, error)
	Execute(ctx context.Context, memberID id.MemberID, validate func(*models.Member) error, mutate func(*models.Member)) (*models.Member, error)
	ListByOwner(ctx context.Context, owner id.Owner) ([]*models.Member, error)
}

// Dispatcher sends a templated notification.
type Dispatcher interface {
	Send(ctx context.Context, tmpl notify.Template, recipient string, params notify.Params) error
}

// ContactResolver finds the owning parent's contact details.
type ContactResolver interface {
	ResolveContact(ctx context.Context, owner id.Owner) (contact.Contact, error)
}

// Service wires the member store to notifications and auditing.
type Service struct {
	members    Store
	dispatcher Dispatcher
	contacts   ContactResolver
	auditLog   audit.Store
	logger     *slog.Logger
	baseURL    string
}

func New(members Store, dispatcher Dispatcher, contacts ContactResolver, auditLog audit.Store, logger *slog.Logger, baseURL string) *Service {
	return &Service{
		members:    members,
		dispatcher: dispatcher,
		contacts:   contacts,
		auditLog:   auditLog,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// CreateMemberInput carries the fields needed to start tracking a person.
type CreateMemberInput struct {
	Owner        id.Owner
	FirstName    string
	LastName     string
	DateOfBirth  time.Time
	Relationship string
	Kind         models.Kind
	Email        string
}

// CreateMember starts tracking a household member or assistant with
// dbs_status = not_requested.
func (s *Service) CreateMember(ctx context.Context, input CreateMemberInput) (*models.Member, error) {
	m, err := models.NewMember(input.Owner, input.FirstName, input.LastName, input.DateOfBirth,
		input.Relationship, input.Kind, input.Email, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	if err := s.members.Create(ctx, m); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create member")
	}
	return m, nil
}

// GetMember fetches one member.
func (s *Service) GetMember(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	m, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return nil, wrapMemberErr(err)
	}
	return m, nil
}

// ListByOwner returns all members under one parent.
func (s *Service) ListByOwner(ctx context.Context, owner id.Owner) ([]*models.Member, error) {
	members, err := s.members.ListByOwner(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list members")
	}
	return members, nil
}

// RequestDBS transitions a member to requested, rotates their form token,
// and emails them the suitability form link. The transition stands even if
// the email fails; the reminder history records the outcome.
func (s *Service) RequestDBS(ctx context.Context, memberID id.MemberID, memberEmail, requesterName string) (*models.Member, error) {
	now := requestcontext.Now(ctx)

	m, err := s.members.Execute(ctx, memberID,
		func(m *models.Member) error {
			if err := m.CanRequestDBS(); err != nil {
				return dErrors.New(dErrors.CodeConflict, dErrors.MessageOf(err))
			}
			return nil
		},
		func(m *models.Member) {
			m.ApplyDBSRequest(now)
			if memberEmail != "" {
				m.Email = memberEmail
			}
		},
	)
	if err != nil {
		return nil, wrapMemberErr(err)
	}

	if requesterName == "" {
		requesterName = s.ownerName(ctx, m.Owner)
	}
	sendErr := s.dispatcher.Send(ctx, notify.TemplateDBSRequest, m.Email, notify.Params{
		"MemberName":    m.FullName(),
		"RequesterName": requesterName,
		"FormURL":       s.formURL(m.FormToken),
	})
	if sendErr != nil {
		s.logger.ErrorContext(ctx, "dbs request email failed, transition kept",
			"member_id", m.ID,
			"error", sendErr,
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	m, err = s.appendReminder(ctx, m.ID, models.ReminderEntry{
		Date:      now,
		Type:      string(notify.TemplateDBSRequest),
		Recipient: m.Email,
		Success:   sendErr == nil,
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, audit.ActionDBSRequested, m.ID.String(), m.Email, "")
	return m, nil
}

// SendReminder re-sends the form link to a member whose check is still
// outstanding.
func (s *Service) SendReminder(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	m, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return nil, wrapMemberErr(err)
	}
	if m.DBSStatus != models.DBSRequested {
		return nil, dErrors.New(dErrors.CodeConflict, "member has no outstanding DBS request")
	}
	if m.Email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "member has no email address on record")
	}

	now := requestcontext.Now(ctx)

	// Consumed tokens are rotated so the reminder link always works.
	// Rotation only; the original request date must survive reminders.
	if m.FormToken == "" {
		m, err = s.members.Execute(ctx, memberID,
			func(*models.Member) error { return nil },
			func(m *models.Member) { m.ApplyTokenRotation(now) },
		)
		if err != nil {
			return nil, wrapMemberErr(err)
		}
	}

	sendErr := s.dispatcher.Send(ctx, notify.TemplateDBSReminder, m.Email, notify.Params{
		"MemberName":    m.FullName(),
		"RequesterName": s.ownerName(ctx, m.Owner),
		"ReminderCount": m.ReminderCount + 1,
		"FormURL":       s.formURL(m.FormToken),
	})
	if sendErr != nil {
		s.logger.ErrorContext(ctx, "dbs reminder email failed",
			"member_id", m.ID,
			"error", sendErr,
		)
	}

	m, err = s.appendReminder(ctx, m.ID, models.ReminderEntry{
		Date:      now,
		Type:      string(notify.TemplateDBSReminder),
		Recipient: m.Email,
		Success:   sendErr == nil,
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, audit.ActionDBSReminderSent, m.ID.String(), m.Email, "")
	return m, nil
}

// HouseholdForm is the member's self-submitted suitability response.
type HouseholdForm struct {
	HasCertificate    bool       `json:"has_certificate"`
	CertificateNumber string     `json:"certificate_number,omitempty"`
	IssueDate         *time.Time `json:"issue_date,omitempty"`
	Email             string     `json:"email,omitempty"`
}

// SubmitHouseholdForm processes a token-gated form submission. The token
// is consumed; a member who already responded (via a re-issued link) is
// overwritten idempotently and the resubmission is flagged for audit.
func (s *Service) SubmitHouseholdForm(ctx context.Context, token string, form HouseholdForm) (*models.Member, error) {
	existing, err := s.members.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "form link is invalid or already used")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve form token")
	}

	if form.HasCertificate && form.CertificateNumber == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "certificate number is required when a certificate is held")
	}

	wasResubmission := existing.ResponseReceived
	now := requestcontext.Now(ctx)

	m, err := s.members.Execute(ctx, existing.ID,
		func(m *models.Member) error {
			// The Execute lock makes token consumption atomic: a
			// double-submitted token has exactly one winner.
			if m.FormToken != token {
				return dErrors.New(dErrors.CodeNotFound, "form link is invalid or already used")
			}
			return nil
		},
		func(m *models.Member) {
			m.ApplyFormSubmission(form.HasCertificate, form.CertificateNumber, form.IssueDate, now)
			if form.Email != "" {
				m.Email = form.Email
			}
		},
	)
	if err != nil {
		return nil, wrapMemberErr(err)
	}

	if m.Email != "" {
		if err := s.dispatcher.Send(ctx, notify.TemplateHouseholdConfirmation, m.Email, notify.Params{
			"MemberName":     m.FullName(),
			"HasCertificate": form.HasCertificate,
		}); err != nil {
			s.logger.WarnContext(ctx, "household confirmation email failed",
				"member_id", m.ID, "error", err)
		}
	}

	if parent, err := s.contacts.ResolveContact(ctx, m.Owner); err != nil || parent.Email == "" {
		s.logger.WarnContext(ctx, "no parent contact for status-changed notification",
			"member_id", m.ID, "owner", m.Owner.String(), "error", err)
	} else if err := s.dispatcher.Send(ctx, notify.TemplateStatusChanged, parent.Email, notify.Params{
		"ApplicantName": parent.Name,
		"MemberName":    m.FullName(),
		"DBSStatus":     string(m.DBSStatus),
	}); err != nil {
		s.logger.WarnContext(ctx, "status-changed email failed",
			"member_id", m.ID, "error", err)
	}

	action := audit.ActionFormSubmitted
	if wasResubmission {
		action = audit.ActionFormResubmitted
	}
	s.emitAudit(ctx, action, m.ID.String(), m.Email, string(m.DBSStatus))

	return m, nil
}

// UpdateDBSStatus lets an admin record a received or expired certificate.
func (s *Service) UpdateDBSStatus(ctx context.Context, memberID id.MemberID, target models.DBSStatus) (*models.Member, error) {
	if !target.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid DBS status")
	}
	m, err := s.members.Execute(ctx, memberID,
		func(m *models.Member) error {
			if !m.DBSStatus.CanTransitionTo(target) {
				return dErrors.New(dErrors.CodeConflict,
					fmt.Sprintf("cannot transition DBS status from %s to %s", m.DBSStatus, target))
			}
			return nil
		},
		func(m *models.Member) {
			m.DBSStatus = target
			m.UpdatedAt = requestcontext.Now(ctx)
		},
	)
	if err != nil {
		return nil, wrapMemberErr(err)
	}
	s.emitAudit(ctx, audit.ActionDBSStatusUpdated, m.ID.String(), "", string(target))
	return m, nil
}

func (s *Service) appendReminder(ctx context.Context, memberID id.MemberID, entry models.ReminderEntry) (*models.Member, error) {
	m, err := s.members.Execute(ctx, memberID,
		func(*models.Member) error { return nil },
		func(m *models.Member) { m.AppendReminder(entry) },
	)
	if err != nil {
		return nil, wrapMemberErr(err)
	}
	return m, nil
}

func (s *Service) ownerName(ctx context.Context, owner id.Owner) string {
	parent, err := s.contacts.ResolveContact(ctx, owner)
	if err != nil {
		return "the registering childminder"
	}
	return parent.Name
}

func (s *Service) formURL(token string) string {
	return s.baseURL + "/household/" + token
}

func (s *Service) emitAudit(ctx context.Context, action audit.Action, subject, recipient, detail string) {
	if s.auditLog == nil {
		return
	}
	event := audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Action:    action,
		Subject:   subject,
		Actor:     actorFromContext(ctx),
		Recipient: recipient,
		Detail:    detail,
		RequestID: requestcontext.RequestID(ctx),
	}
	if err := s.auditLog.Append(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to append audit event",
			"action", action, "subject", subject, "error", err)
	}
}

func actorFromContext(ctx context.Context) string {
	adminID := requestcontext.AdminID(ctx)
	if adminID.IsNil() {
		return ""
	}
	return adminID.String()
}

func wrapMemberErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "member not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "member was modified concurrently, retry")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "member store failure")
	}
}
