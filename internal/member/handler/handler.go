// Package handler exposes member compliance tracking over HTTP: admin
// DBS operations and the public token-gated household form.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	membermodels "minderdesk/internal/member/models"
	memberservice "minderdesk/internal/member/service"
	"minderdesk/internal/platform/middleware"
	"minderdesk/internal/transport/http/shared"
	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
)

// Service defines the member operations the handler needs.
type Service interface {
	CreateMember(ctx context.Context, input memberservice.CreateMemberInput) (*membermodels.Member, error)
	GetMember(ctx context.Context, memberID id.MemberID) (*membermodels.Member, error)
	ListByOwner(ctx context.Context, owner id.Owner) ([]*membermodels.Member, error)
	RequestDBS(ctx context.Context, memberID id.MemberID, memberEmail, requesterName string) (*membermodels.Member, error)
	SendReminder(ctx context.Context, memberID id.MemberID) (*membermodels.Member, error)
	SubmitHouseholdForm(ctx context.Context, token string, form memberservice.HouseholdForm) (*membermodels.Member, error)
	UpdateDBSStatus(ctx context.Context, memberID id.MemberID, target membermodels.DBSStatus) (*membermodels.Member, error)
}

// Handler handles member endpoints.
type Handler struct {
	members Service
	logger  *slog.Logger
}

func New(members Service, logger *slog.Logger) *Handler {
	return &Handler{members: members, logger: logger}
}

// RegisterPublic registers the token-gated household form route.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/household/{token}", h.handleHouseholdForm)
}

// RegisterAdmin registers the compliance management routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/members", h.handleCreate)
	r.Get("/members", h.handleListByOwner)
	r.Get("/members/{id}", h.handleGet)
	r.Post("/members/{id}/dbs-request", h.handleRequestDBS)
	r.Post("/members/{id}/remind", h.handleRemind)
	r.Post("/members/{id}/status", h.handleUpdateStatus)
}

type createMemberRequest struct {
	OwnerKind    string    `json:"owner_kind"`
	OwnerID      string    `json:"owner_id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	DateOfBirth  time.Time `json:"date_of_birth"`
	Relationship string    `json:"relationship"`
	Kind         string    `json:"kind"`
	Email        string    `json:"email"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	owner, err := parseOwner(req.OwnerKind, req.OwnerID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	m, err := h.members.CreateMember(ctx, memberservice.CreateMemberInput{
		Owner:        owner,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DateOfBirth:  req.DateOfBirth,
		Relationship: req.Relationship,
		Kind:         membermodels.Kind(req.Kind),
		Email:        req.Email,
	})
	if err != nil {
		h.logError(ctx, "failed to create member", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) handleListByOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := parseOwner(r.URL.Query().Get("owner_kind"), r.URL.Query().Get("owner_id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	members, err := h.members.ListByOwner(ctx, owner)
	if err != nil {
		h.logError(ctx, "failed to list members", err)
		shared.WriteError(w, err)
		return
	}
	if members == nil {
		members = []*membermodels.Member{}
	}
	shared.WriteJSON(w, http.StatusOK, members)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	memberID, err := id.ParseMemberID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid member id"))
		return
	}

	m, err := h.members.GetMember(ctx, memberID)
	if err != nil {
		h.logError(ctx, "failed to fetch member", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, m)
}

type dbsRequestRequest struct {
	Email         string `json:"email"`
	RequesterName string `json:"requester_name"`
}

func (h *Handler) handleRequestDBS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	memberID, err := id.ParseMemberID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid member id"))
		return
	}

	var req dbsRequestRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	m, err := h.members.RequestDBS(ctx, memberID, req.Email, req.RequesterName)
	if err != nil {
		h.logError(ctx, "failed to request DBS check", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) handleRemind(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	memberID, err := id.ParseMemberID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid member id"))
		return
	}

	m, err := h.members.SendReminder(ctx, memberID)
	if err != nil {
		h.logError(ctx, "failed to send DBS reminder", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, m)
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	memberID, err := id.ParseMemberID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid member id"))
		return
	}

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	m, err := h.members.UpdateDBSStatus(ctx, memberID, membermodels.DBSStatus(req.Status))
	if err != nil {
		h.logError(ctx, "failed to update DBS status", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) handleHouseholdForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")

	var form memberservice.HouseholdForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	m, err := h.members.SubmitHouseholdForm(ctx, token, form)
	if err != nil {
		h.logError(ctx, "household form submission failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, m)
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
