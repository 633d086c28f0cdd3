// Package service runs the token-gated reference workflow: invitations
// out, referee responses in.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"minderdesk/internal/contact"
	"minderdesk/internal/notify"
	"minderdesk/internal/platform/metrics"
	"minderdesk/internal/reference/models"
	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
	"minderdesk/pkg/platform/audit"
	"minderdesk/pkg/platform/sentinel"
	"minderdesk/pkg/requestcontext"
)

// Store is the reference request persistence contract.
type Store interface {
	Create(ctx context.Context, r *models.ReferenceRequest) error
	FindByID(ctx context.Context, referenceID id.ReferenceID) (*models.ReferenceRequest, error)
	FindByToken(ctx context.Context, token string) (*models.ReferenceRequest, error)
	Execute(ctx context.Context, referenceID id.ReferenceID, validate func(*models.ReferenceRequest) error, mutate func(*models.ReferenceRequest)) (*models.ReferenceRequest, error)
	ListByOwner(ctx context.Context, owner id.Owner) ([]*models.ReferenceRequest, error)
	Delete(ctx context.Context, referenceID id.ReferenceID) error
}

// Dispatcher sends a templated notification.
type Dispatcher interface {
	Send(ctx context.Context, tmpl notify.Template, recipient string, params notify.Params) error
}

// ContactResolver finds the owning parent's contact details.
type ContactResolver interface {
	ResolveContact(ctx context.Context, owner id.Owner) (contact.Contact, error)
}

// Service wires the reference store to notifications and auditing.
type Service struct {
	references Store
	dispatcher Dispatcher
	contacts   ContactResolver
	auditLog   audit.Store
	metrics    *metrics.Metrics
	logger     *slog.Logger
	baseURL    string
}

func New(references Store, dispatcher Dispatcher, contacts ContactResolver, auditLog audit.Store, m *metrics.Metrics, logger *slog.Logger, baseURL string) *Service {
	return &Service{
		references: references,
		dispatcher: dispatcher,
		contacts:   contacts,
		auditLog:   auditLog,
		metrics:    m,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// CreateRequestInput carries the admin's reference invitation.
type CreateRequestInput struct {
	Owner                id.Owner
	ReferenceNumber      int
	RefereeName          string
	RefereeEmail         string
	RefereeRelationship  string
	IsChildcareReference bool
}

// CreateRequest persists a sent reference request and emails the referee
// their form link. The invitation email is load-bearing: if it cannot be
// sent the stored request is removed so no orphaned token survives, and
// the caller sees Unavailable.
func (s *Service) CreateRequest(ctx context.Context, input CreateRequestInput) (*models.ReferenceRequest, error) {
	r, err := models.NewRequest(input.Owner, input.ReferenceNumber, input.RefereeName,
		input.RefereeEmail, input.RefereeRelationship, input.IsChildcareReference, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}

	if err := s.references.Create(ctx, r); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a reference request already exists for this slot")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create reference request")
	}

	applicantName := s.ownerName(ctx, r.Owner)
	if err := s.dispatcher.Send(ctx, notify.TemplateReferenceInvitation, r.RefereeEmail, notify.Params{
		"RefereeName":         r.RefereeName,
		"ApplicantName":       applicantName,
		"RefereeRelationship": r.RefereeRelationship,
		"FormURL":             s.formURL(r.FormToken),
	}); err != nil {
		if delErr := s.references.Delete(ctx, r.ID); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to remove reference after email failure",
				"reference_id", r.ID, "error", delErr)
		}
		s.logger.ErrorContext(ctx, "reference invitation email failed, request aborted",
			"reference_id", r.ID,
			"referee_email", r.RefereeEmail,
			"error", err,
		)
		return nil, dErrors.New(dErrors.CodeUnavailable, "reference invitation could not be sent")
	}

	s.emitAudit(ctx, audit.ActionReferenceCreated, r.ID.String(), r.RefereeEmail, "")
	return r, nil
}

// Get fetches one reference request.
func (s *Service) Get(ctx context.Context, referenceID id.ReferenceID) (*models.ReferenceRequest, error) {
	r, err := s.references.FindByID(ctx, referenceID)
	if err != nil {
		return nil, wrapReferenceErr(err)
	}
	return r, nil
}

// ListByOwner returns the reference requests for one parent.
func (s *Service) ListByOwner(ctx context.Context, owner id.Owner) ([]*models.ReferenceRequest, error) {
	out, err := s.references.ListByOwner(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reference requests")
	}
	return out, nil
}

// SubmitResponse records a referee's answer against their token. A
// completed request rejects resubmission with Conflict; childcare
// references must address suitability explicitly.
func (s *Service) SubmitResponse(ctx context.Context, token string, data models.ResponseData) (*models.ReferenceRequest, error) {
	existing, err := s.references.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "reference link is invalid or already used")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve reference token")
	}

	if existing.IsChildcareReference && strings.TrimSpace(data.SuitabilityConcerns) == "" {
		return nil, dErrors.New(dErrors.CodeValidation,
			"childcare references must answer the suitability concerns question")
	}

	now := requestcontext.Now(ctx)
	r, err := s.references.Execute(ctx, existing.ID,
		func(r *models.ReferenceRequest) error {
			if err := r.CanComplete(); err != nil {
				return dErrors.New(dErrors.CodeConflict, dErrors.MessageOf(err))
			}
			// Token re-checked under the lock: a double submission has
			// exactly one winner.
			if r.FormToken != token {
				return dErrors.New(dErrors.CodeNotFound, "reference link is invalid or already used")
			}
			return nil
		},
		func(r *models.ReferenceRequest) {
			r.ApplyResponse(data, now)
		},
	)
	if err != nil {
		return nil, wrapReferenceErr(err)
	}

	if s.metrics != nil {
		s.metrics.ReferencesCompleted.Inc()
	}

	if err := s.dispatcher.Send(ctx, notify.TemplateReferenceConfirmation, r.RefereeEmail, notify.Params{
		"RefereeName":   r.RefereeName,
		"ApplicantName": s.ownerName(ctx, r.Owner),
	}); err != nil {
		s.logger.WarnContext(ctx, "reference confirmation email failed",
			"reference_id", r.ID, "error", err)
	}

	s.emitAudit(ctx, audit.ActionReferenceCompleted, r.ID.String(), r.RefereeEmail, string(r.Status))
	return r, nil
}

func (s *Service) ownerName(ctx context.Context, owner id.Owner) string {
	parent, err := s.contacts.ResolveContact(ctx, owner)
	if err != nil {
		s.logger.WarnContext(ctx, "could not resolve owner contact for reference",
			"owner", owner.String(), "error", err)
		return "the applicant"
	}
	return parent.Name
}

func (s *Service) formURL(token string) string {
	return s.baseURL + "/references/" + token
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

func wrapReferenceErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "reference request not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "reference request already exists")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "reference store failure")
	}
}
