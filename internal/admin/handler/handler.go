// Package handler exposes the admin surface: login, per-application
// compliance reports, and the audit trail.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	adminservice "minderdesk/internal/admin/service"
	"minderdesk/internal/platform/middleware"
	"minderdesk/internal/transport/http/shared"
	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
	"minderdesk/pkg/platform/audit"
	"minderdesk/pkg/requestcontext"
)

const defaultAuditLimit = 100

// Authenticator issues admin session tokens.
type Authenticator interface {
	Login(email, password string) (string, error)
}

// Aggregator computes compliance reports.
type Aggregator interface {
	Summarize(ctx context.Context, owner id.Owner, now time.Time) (*adminservice.Report, error)
}

// Handler handles admin endpoints.
type Handler struct {
	auth       Authenticator
	compliance Aggregator
	auditLog   audit.Store
	logger     *slog.Logger
}

func New(auth Authenticator, compliance Aggregator, auditLog audit.Store, logger *slog.Logger) *Handler {
	return &Handler{
		auth:       auth,
		compliance: compliance,
		auditLog:   auditLog,
		logger:     logger,
	}
}

// RegisterPublic registers the login route, mounted under /admin but
// outside the bearer-token check.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/login", h.handleLogin)
}

// RegisterAdmin registers the authenticated admin routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/applications/{id}/compliance", h.handleCompliance)
	r.Get("/employees/{id}/compliance", h.handleEmployeeCompliance)
	r.Get("/audit", h.handleAuditTrail)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "admin login failed",
			"request_id", middleware.GetRequestID(ctx),
			"email", req.Email,
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) handleCompliance(w http.ResponseWriter, r *http.Request) {
	applicationID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid application id"))
		return
	}
	h.writeReport(w, r, id.ApplicationOwner(applicationID))
}

func (h *Handler) handleEmployeeCompliance(w http.ResponseWriter, r *http.Request) {
	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid employee id"))
		return
	}
	h.writeReport(w, r, id.EmployeeOwner(employeeID))
}

func (h *Handler) writeReport(w http.ResponseWriter, r *http.Request, owner id.Owner) {
	ctx := r.Context()

	report, err := h.compliance.Summarize(ctx, owner, requestcontext.Now(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "compliance aggregation failed",
			"request_id", middleware.GetRequestID(ctx),
			"owner", owner.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	events, err := h.auditLog.ListRecent(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit trail fetch failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events"))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	shared.WriteJSON(w, http.StatusOK, events)
}
