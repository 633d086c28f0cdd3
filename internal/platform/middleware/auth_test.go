package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	id "minderdesk/pkg/domain"
	"minderdesk/pkg/requestcontext"
)

type stubValidator struct {
	adminID id.AdminID
	err     error
}

func (s stubValidator) ValidateToken(string) (id.AdminID, error) {
	return s.adminID, s.err
}

func protected(t *testing.T, v AdminTokenValidator, want id.AdminID) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, want, requestcontext.AdminID(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})
	return RequireAdmin(v, logger)(next)
}

func TestRequireAdminMissingHeader(t *testing.T) {
	h := protected(t, stubValidator{}, id.AdminID{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/applications", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireAdminMalformedHeader(t *testing.T) {
	h := protected(t, stubValidator{}, id.AdminID{})
	req := httptest.NewRequest(http.MethodGet, "/admin/applications", nil)
	req.Header.Set("Authorization", "Basic abc123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireAdminInvalidToken(t *testing.T) {
	h := protected(t, stubValidator{err: errors.New("expired")}, id.AdminID{})
	req := httptest.NewRequest(http.MethodGet, "/admin/applications", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireAdminInjectsAdminID(t *testing.T) {
	adminID, err := id.ParseAdminID("7b9f4a1e-8b2c-4f3d-9e1a-5c6d7e8f9a0b")
	assert.NoError(t, err)

	h := protected(t, stubValidator{adminID: adminID}, adminID)
	req := httptest.NewRequest(http.MethodGet, "/admin/applications", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
