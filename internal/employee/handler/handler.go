// Package handler exposes employee management over HTTP. All routes are
// admin-only.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	empmodels "minderdesk/internal/employee/models"
	"minderdesk/internal/platform/middleware"
	"minderdesk/internal/transport/http/shared"
	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
)

// Service defines the employee operations the handler needs.
type Service interface {
	Get(ctx context.Context, employeeID id.EmployeeID) (*empmodels.Employee, error)
	List(ctx context.Context) ([]*empmodels.Employee, error)
	UpdateStatus(ctx context.Context, employeeID id.EmployeeID, status empmodels.Status) (*empmodels.Employee, error)
	Delete(ctx context.Context, employeeID id.EmployeeID) error
}

// Handler handles employee endpoints.
type Handler struct {
	employees Service
	logger    *slog.Logger
}

func New(employees Service, logger *slog.Logger) *Handler {
	return &Handler{employees: employees, logger: logger}
}

// RegisterAdmin registers the employee management routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/employees", h.handleList)
	r.Get("/employees/{id}", h.handleGet)
	r.Post("/employees/{id}/status", h.handleUpdateStatus)
	r.Post("/employees/{id}/delete", h.handleDelete)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	employees, err := h.employees.List(ctx)
	if err != nil {
		h.logError(ctx, "failed to list employees", err)
		shared.WriteError(w, err)
		return
	}
	if employees == nil {
		employees = []*empmodels.Employee{}
	}
	shared.WriteJSON(w, http.StatusOK, employees)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid employee id"))
		return
	}

	e, err := h.employees.Get(ctx, employeeID)
	if err != nil {
		h.logError(ctx, "failed to fetch employee", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, e)
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid employee id"))
		return
	}

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	e, err := h.employees.UpdateStatus(ctx, employeeID, empmodels.Status(req.Status))
	if err != nil {
		h.logError(ctx, "failed to update employee status", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid employee id"))
		return
	}

	if err := h.employees.Delete(ctx, employeeID); err != nil {
		h.logError(ctx, "failed to delete employee", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
