// Package service manages the childminder application lifecycle from
// public intake through admin review.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"minderdesk/internal/application/models"
	"minderdesk/internal/platform/metrics"
	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
	"minderdesk/pkg/platform/audit"
	"minderdesk/pkg/platform/sentinel"
	"minderdesk/pkg/requestcontext"
)

// Store is the application persistence contract.
type Store interface {
	Create(ctx context.Context, a *models.Application) error
	FindByID(ctx context.Context, applicationID id.ApplicationID) (*models.Application, error)
	List(ctx context.Context, status models.Status) ([]*models.Application, error)
	Execute(ctx context.Context, applicationID id.ApplicationID, validate func(*models.Application) error, mutate func(*models.Application)) (*models.Application, error)
}

// EmployeeCreator turns an approved application into an employee record,
// carrying the application's compliance members across.
type EmployeeCreator interface {
	CreateFromApplication(ctx context.Context, a *models.Application) (id.EmployeeID, error)
}

// Service wires application review to employee creation and auditing.
type Service struct {
	applications Store
	employees    EmployeeCreator
	auditLog     audit.Store
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func New(applications Store, employees EmployeeCreator, auditLog audit.Store, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		applications: applications,
		employees:    employees,
		auditLog:     auditLog,
		metrics:      m,
		logger:       logger,
	}
}

// SubmitInput carries the public intake payload.
type SubmitInput struct {
	FirstName         string                 `json:"first_name"`
	LastName          string                 `json:"last_name"`
	Email             string                 `json:"email"`
	Phone             string                 `json:"phone"`
	DateOfBirth       time.Time              `json:"date_of_birth"`
	Address           models.Address         `json:"address"`
	PremisesType      string                 `json:"premises_type"`
	Qualifications    []models.Qualification `json:"qualifications"`
	EmploymentHistory []models.Employment    `json:"employment_history"`
	Declarations      models.Declarations    `json:"declarations"`
}

// Submit persists a new pending application.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*models.Application, error) {
	a, err := models.NewApplication(input.FirstName, input.LastName, input.Email,
		input.DateOfBirth, input.Address, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	a.Phone = input.Phone
	a.PremisesType = input.PremisesType
	a.Qualifications = input.Qualifications
	a.EmploymentHistory = input.EmploymentHistory
	a.Declarations = input.Declarations

	if err := s.applications.Create(ctx, a); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create application")
	}

	if s.metrics != nil {
		s.metrics.ApplicationsSubmitted.Inc()
	}
	s.emitAudit(ctx, audit.ActionApplicationSubmitted, a.ID.String(), a.Email, "")
	return a, nil
}

// Get fetches one application.
func (s *Service) Get(ctx context.Context, applicationID id.ApplicationID) (*models.Application, error) {
	a, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		return nil, wrapApplicationErr(err)
	}
	return a, nil
}

// List returns applications, optionally filtered by status.
func (s *Service) List(ctx context.Context, status models.Status) ([]*models.Application, error) {
	if status != "" && status != models.StatusPending && status != models.StatusApproved && status != models.StatusRejected {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid application status filter")
	}
	out, err := s.applications.List(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list applications")
	}
	return out, nil
}

// ContactByID exposes the applicant's contact details for owner resolution.
func (s *Service) ContactByID(ctx context.Context, applicationID id.ApplicationID) (name, email string, err error) {
	a, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		return "", "", wrapApplicationErr(err)
	}
	return a.FullName(), a.Email, nil
}

// Approve transitions a pending application to approved and creates the
// employee record. Employee creation failure rolls the approval back.
func (s *Service) Approve(ctx context.Context, applicationID id.ApplicationID) (*models.Application, id.EmployeeID, error) {
	reviewer := requestcontext.AdminID(ctx)
	now := requestcontext.Now(ctx)

	a, err := s.applications.Execute(ctx, applicationID,
		func(a *models.Application) error {
			if err := a.CanApprove(); err != nil {
				return dErrors.New(dErrors.CodeConflict, dErrors.MessageOf(err))
			}
			return nil
		},
		func(a *models.Application) {
			a.ApplyApproval(reviewer, now)
		},
	)
	if err != nil {
		return nil, id.EmployeeID{}, wrapApplicationErr(err)
	}

	employeeID, err := s.employees.CreateFromApplication(ctx, a)
	if err != nil {
		s.rollbackApproval(ctx, applicationID)
		return nil, id.EmployeeID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create employee from application")
	}

	s.emitAudit(ctx, audit.ActionApplicationApproved, applicationID.String(), a.Email, employeeID.String())
	return a, employeeID, nil
}

// Reject transitions a pending application to rejected.
func (s *Service) Reject(ctx context.Context, applicationID id.ApplicationID, notes string) (*models.Application, error) {
	reviewer := requestcontext.AdminID(ctx)
	now := requestcontext.Now(ctx)

	a, err := s.applications.Execute(ctx, applicationID,
		func(a *models.Application) error {
			if err := a.CanReject(); err != nil {
				return dErrors.New(dErrors.CodeConflict, dErrors.MessageOf(err))
			}
			return nil
		},
		func(a *models.Application) {
			a.ApplyRejection(reviewer, notes, now)
		},
	)
	if err != nil {
		return nil, wrapApplicationErr(err)
	}

	s.emitAudit(ctx, audit.ActionApplicationRejected, applicationID.String(), a.Email, notes)
	return a, nil
}

// Reset returns an approved application to pending. Only the
// employee-deletion cascade calls this.
func (s *Service) Reset(ctx context.Context, applicationID id.ApplicationID) error {
	_, err := s.applications.Execute(ctx, applicationID,
		func(a *models.Application) error {
			if a.Status != models.StatusApproved {
				return dErrors.New(dErrors.CodeConflict, "only approved applications can be reset")
			}
			return nil
		},
		func(a *models.Application) {
			a.ApplyReset()
		},
	)
	if err != nil {
		return wrapApplicationErr(err)
	}
	return nil
}

func (s *Service) rollbackApproval(ctx context.Context, applicationID id.ApplicationID) {
	_, err := s.applications.Execute(ctx, applicationID,
		func(*models.Application) error { return nil },
		func(a *models.Application) { a.ApplyReset() },
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "approval rollback failed",
			"application_id", applicationID, "error", err)
	}
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

func wrapApplicationErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "application not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "application was modified concurrently, retry")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "application store failure")
	}
}
