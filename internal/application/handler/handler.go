// Package handler exposes application intake and review over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	appmodels "minderdesk/internal/application/models"
	appservice "minderdesk/internal/application/service"
	"minderdesk/internal/platform/middleware"
	"minderdesk/internal/transport/http/shared"
	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
)

// Service defines the application operations the handler needs.
type Service interface {
	Submit(ctx context.Context, input appservice.SubmitInput) (*appmodels.Application, error)
	Get(ctx context.Context, applicationID id.ApplicationID) (*appmodels.Application, error)
	List(ctx context.Context, status appmodels.Status) ([]*appmodels.Application, error)
	Approve(ctx context.Context, applicationID id.ApplicationID) (*appmodels.Application, id.EmployeeID, error)
	Reject(ctx context.Context, applicationID id.ApplicationID, notes string) (*appmodels.Application, error)
}

// Handler handles application endpoints.
type Handler struct {
	applications Service
	logger       *slog.Logger
}

func New(applications Service, logger *slog.Logger) *Handler {
	return &Handler{applications: applications, logger: logger}
}

// RegisterPublic registers the unauthenticated intake route.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/applications", h.handleSubmit)
}

// RegisterAdmin registers the review routes. The caller applies admin
// authentication.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/applications", h.handleList)
	r.Get("/applications/{id}", h.handleGet)
	r.Post("/applications/{id}/approve", h.handleApprove)
	r.Post("/applications/{id}/reject", h.handleReject)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input appservice.SubmitInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.WarnContext(ctx, "invalid application payload",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	a, err := h.applications.Submit(ctx, input)
	if err != nil {
		h.logError(ctx, "failed to submit application", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := appmodels.Status(r.URL.Query().Get("status"))
	out, err := h.applications.List(ctx, status)
	if err != nil {
		h.logError(ctx, "failed to list applications", err)
		shared.WriteError(w, err)
		return
	}
	if out == nil {
		out = []*appmodels.Application{}
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	applicationID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid application id"))
		return
	}

	a, err := h.applications.Get(ctx, applicationID)
	if err != nil {
		h.logError(ctx, "failed to fetch application", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	applicationID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid application id"))
		return
	}

	a, employeeID, err := h.applications.Approve(ctx, applicationID)
	if err != nil {
		h.logError(ctx, "failed to approve application", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"application": a,
		"employee_id": employeeID,
	})
}

type rejectRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	applicationID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid application id"))
		return
	}

	var req rejectRequest
	if r.Body != nil {
		// Notes are optional; an empty body is a valid rejection.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	a, err := h.applications.Reject(ctx, applicationID, req.Notes)
	if err != nil {
		h.logError(ctx, "failed to reject application", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	logFn := h.logger.ErrorContext
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		logFn = h.logger.WarnContext
	}
	logFn(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
}
