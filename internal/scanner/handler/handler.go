// Package handler exposes the 16th-birthday scan as an admin endpoint, so
// the scan can be triggered on demand as well as on the daily schedule.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"minderdesk/internal/platform/middleware"
	scanservice "minderdesk/internal/scanner/service"
	"minderdesk/internal/transport/http/shared"
)

// Service defines the scan operation the handler needs.
type Service interface {
	Run(ctx context.Context) (*scanservice.Summary, error)
}

// Handler handles scan endpoints.
type Handler struct {
	scanner Service
	logger  *slog.Logger
}

func New(scanner Service, logger *slog.Logger) *Handler {
	return &Handler{scanner: scanner, logger: logger}
}

// RegisterAdmin registers the scan trigger route.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/scans/sixteenth-birthday", h.handleRun)
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.scanner.Run(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "birthday scan failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, summary)
}
