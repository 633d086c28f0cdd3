// Package handler exposes the reference workflow over HTTP: admin
// invitations and the public token-gated referee form.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"minderdesk/internal/platform/middleware"
	refmodels "minderdesk/internal/reference/models"
	refservice "minderdesk/internal/reference/service"
	"minderdesk/internal/transport/http/shared"
	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
)

// Service defines the reference operations the handler needs.
type Service interface {
	CreateRequest(ctx context.Context, input refservice.CreateRequestInput) (*refmodels.ReferenceRequest, error)
	ListByOwner(ctx context.Context, owner id.Owner) ([]*refmodels.ReferenceRequest, error)
	SubmitResponse(ctx context.Context, token string, data refmodels.ResponseData) (*refmodels.ReferenceRequest, error)
}

// Handler handles reference endpoints.
type Handler struct {
	references Service
	logger     *slog.Logger
}

func New(references Service, logger *slog.Logger) *Handler {
	return &Handler{references: references, logger: logger}
}

// RegisterPublic registers the token-gated referee form route.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/references/{token}", h.handleSubmitResponse)
}

// RegisterAdmin registers the invitation routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/references", h.handleCreate)
	r.Get("/references", h.handleListByOwner)
}

type createRequest struct {
	OwnerKind            string `json:"owner_kind"`
	OwnerID              string `json:"owner_id"`
	ReferenceNumber      int    `json:"reference_number"`
	RefereeName          string `json:"referee_name"`
	RefereeEmail         string `json:"referee_email"`
	RefereeRelationship  string `json:"referee_relationship"`
	IsChildcareReference bool   `json:"is_childcare_reference"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	owner, err := parseOwner(req.OwnerKind, req.OwnerID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	ref, err := h.references.CreateRequest(ctx, refservice.CreateRequestInput{
		Owner:                owner,
		ReferenceNumber:      req.ReferenceNumber,
		RefereeName:          req.RefereeName,
		RefereeEmail:         req.RefereeEmail,
		RefereeRelationship:  req.RefereeRelationship,
		IsChildcareReference: req.IsChildcareReference,
	})
	if err != nil {
		h.logError(ctx, "failed to create reference request", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, ref)
}

func (h *Handler) handleListByOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := parseOwner(r.URL.Query().Get("owner_kind"), r.URL.Query().Get("owner_id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	refs, err := h.references.ListByOwner(ctx, owner)
	if err != nil {
		h.logError(ctx, "failed to list reference requests", err)
		shared.WriteError(w, err)
		return
	}
	if refs == nil {
		refs = []*refmodels.ReferenceRequest{}
	}
	shared.WriteJSON(w, http.StatusOK, refs)
}

func (h *Handler) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")

	var data refmodels.ResponseData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	ref, err := h.references.SubmitResponse(ctx, token, data)
	if err != nil {
		h.logError(ctx, "reference submission failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, ref)
}

func parseOwner(kind, rawID string) (id.Owner, error) {
	switch id.OwnerKind(kind) {
	case id.OwnerApplication:
		appID, err := id.ParseApplicationID(rawID)
		if err != nil {
			return id.Owner{}, dErrors.New(dErrors.CodeBadRequest, "invalid owner id")
		}
		return id.ApplicationOwner(appID), nil
	case id.OwnerEmployee:
		empID, err := id.ParseEmployeeID(rawID)
		if err != nil {
			return id.Owner{}, dErrors.New(dErrors.CodeBadRequest, "invalid owner id")
		}
		return id.EmployeeOwner(empID), nil
	default:
		return id.Owner{}, dErrors.New(dErrors.CodeBadRequest, "owner_kind must be application or employee")
	}
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
