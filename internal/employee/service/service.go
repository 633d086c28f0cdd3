// Package service manages employee records and the deletion cascade that
// unwinds an approval.
package service

import (
	"context"
	"errors"
	"log/slog"

	appmodels "minderdesk/internal/application/models"
	"minderdesk/internal/employee/models"
	membermodels "minderdesk/internal/member/models"
	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
	"minderdesk/pkg/platform/audit"
	"minderdesk/pkg/platform/sentinel"
	"minderdesk/pkg/requestcontext"
)

// Store is the employee persistence contract.
type Store interface {
	Create(ctx context.Context, e *models.Employee) error
	FindByID(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error)
	List(ctx context.Context) ([]*models.Employee, error)
	Update(ctx context.Context, e *models.Employee) error
	Delete(ctx context.Context, employeeID id.EmployeeID) error
}

// ApplicationStore lets the deletion cascade reset the source application
// without depending on the application service.
type ApplicationStore interface {
	Execute(ctx context.Context, applicationID id.ApplicationID, validate func(*appmodels.Application) error, mutate func(*appmodels.Application)) (*appmodels.Application, error)
}

// MemberStore is the slice of the member store the employee lifecycle
// needs: copying members across on approval, deleting them on cascade.
type MemberStore interface {
	Create(ctx context.Context, m *membermodels.Member) error
	ListByOwner(ctx context.Context, owner id.Owner) ([]*membermodels.Member, error)
	DeleteByOwner(ctx context.Context, owner id.Owner) error
}

// OwnedDeleter removes owner-scoped records during the cascade.
type OwnedDeleter interface {
	DeleteByOwner(ctx context.Context, owner id.Owner) error
}

// Service wires the employee store to the cascade collaborators.
type Service struct {
	employees    Store
	applications ApplicationStore
	members      MemberStore
	references   OwnedDeleter
	auditLog     audit.Store
	logger       *slog.Logger
}

func New(employees Store, applications ApplicationStore, members MemberStore, references OwnedDeleter, auditLog audit.Store, logger *slog.Logger) *Service {
	return &Service{
		employees:    employees,
		applications: applications,
		members:      members,
		references:   references,
		auditLog:     auditLog,
		logger:       logger,
	}
}

// CreateFromApplication records the employee for a freshly approved
// application and copies the application's compliance members under the
// new owner, so DBS state follows the household across approval. A copy
// failure is logged, not fatal: the employee exists and members can be
// re-added.
func (s *Service) CreateFromApplication(ctx context.Context, a *appmodels.Application) (id.EmployeeID, error) {
	now := requestcontext.Now(ctx)
	e := models.NewFromApplication(a, now)
	if err := s.employees.Create(ctx, e); err != nil {
		return id.EmployeeID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create employee")
	}

	members, err := s.members.ListByOwner(ctx, id.ApplicationOwner(a.ID))
	if err != nil {
		s.logger.ErrorContext(ctx, "could not list members for approval copy",
			"application_id", a.ID, "employee_id", e.ID, "error", err)
		return e.ID, nil
	}
	owner := id.EmployeeOwner(e.ID)
	for _, m := range members {
		if err := s.members.Create(ctx, m.CopyForOwner(owner, now)); err != nil {
			s.logger.ErrorContext(ctx, "could not copy member to employee",
				"member_id", m.ID, "employee_id", e.ID, "error", err)
		}
	}
	return e.ID, nil
}

// Get fetches one employee.
func (s *Service) Get(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error) {
	e, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		return nil, wrapEmployeeErr(err)
	}
	return e, nil
}

// List returns all employees.
func (s *Service) List(ctx context.Context) ([]*models.Employee, error) {
	out, err := s.employees.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list employees")
	}
	return out, nil
}

// ContactByID exposes the employee's contact details for owner resolution.
func (s *Service) ContactByID(ctx context.Context, employeeID id.EmployeeID) (name, email string, err error) {
	e, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		return "", "", wrapEmployeeErr(err)
	}
	return e.FullName(), e.Email, nil
}

// UpdateStatus records an employment status change.
func (s *Service) UpdateStatus(ctx context.Context, employeeID id.EmployeeID, status models.Status) (*models.Employee, error) {
	switch status {
	case models.StatusActive, models.StatusOnLeave, models.StatusTerminated:
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "invalid employee status")
	}
	e, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		return nil, wrapEmployeeErr(err)
	}
	e.Status = status
	e.UpdatedAt = requestcontext.Now(ctx)
	if err := s.employees.Update(ctx, e); err != nil {
		return nil, wrapEmployeeErr(err)
	}
	return e, nil
}

// Delete removes an employee and cascades: the employee's compliance
// members and reference requests are deleted, and the source application
// returns to pending so it can be re-reviewed. Cascade steps that fail
// are logged but do not block the remaining steps.
func (s *Service) Delete(ctx context.Context, employeeID id.EmployeeID) error {
	e, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		return wrapEmployeeErr(err)
	}

	owner := id.EmployeeOwner(employeeID)
	if err := s.members.DeleteByOwner(ctx, owner); err != nil {
		s.logger.ErrorContext(ctx, "cascade member deletion failed",
			"employee_id", employeeID, "error", err)
	}
	if err := s.references.DeleteByOwner(ctx, owner); err != nil {
		s.logger.ErrorContext(ctx, "cascade reference deletion failed",
			"employee_id", employeeID, "error", err)
	}

	_, err = s.applications.Execute(ctx, e.ApplicationID,
		func(*appmodels.Application) error { return nil },
		func(a *appmodels.Application) { a.ApplyReset() },
	)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.ErrorContext(ctx, "cascade application reset failed",
			"employee_id", employeeID, "application_id", e.ApplicationID, "error", err)
	}

	if err := s.employees.Delete(ctx, employeeID); err != nil {
		return wrapEmployeeErr(err)
	}

	s.emitAudit(ctx, audit.ActionEmployeeDeleted, employeeID.String(), e.ApplicationID.String())
	return nil
}

func (s *Service) emitAudit(ctx context.Context, action audit.Action, subject, detail string) {
	if s.auditLog == nil {
		return
	}
	event := audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Action:    action,
		Subject:   subject,
		Actor:     actorFromContext(ctx),
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

func wrapEmployeeErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "employee not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "employee already exists")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "employee store failure")
	}
}
