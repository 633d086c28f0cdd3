package postcode

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"minderdesk/internal/transport/http/shared"
)

// Handler serves address lookups.
type Handler struct {
	client *Client
	logger *slog.Logger
}

func NewHandler(client *Client, logger *slog.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

// RegisterPublic registers the lookup route. The endpoint never fails: an
// unknown or malformed postcode yields an empty address list.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/postcode/{postcode}", h.handleLookup)
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	addresses := h.client.Lookup(ctx, chi.URLParam(r, "postcode"))
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"addresses": addresses,
	})
}
