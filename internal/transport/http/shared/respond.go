// Package shared holds the JSON responders every handler uses, so error
// mapping stays in one place.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "minderdesk/pkg/domain-errors"
)

// ErrorResponse is the uniform error body returned by every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteError maps a domain error onto an HTTP status and writes the
// uniform error body. Uncoded errors become opaque 500s.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, dErrors.HTTPStatus(err), ErrorResponse{
		Error:   string(dErrors.CodeOf(err)),
		Message: dErrors.MessageOf(err),
	})
}
