package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "minderdesk/pkg/domain"
	"minderdesk/pkg/requestcontext"
)

// AdminTokenValidator validates an admin session token and returns the
// admin identity it was issued to.
type AdminTokenValidator interface {
	ValidateToken(tokenString string) (id.AdminID, error)
}

// RequireAdmin rejects requests without a valid admin bearer token and
// places the admin ID into the request context. Every admin handler reads
// its authorization from that context rather than from ambient state.
func RequireAdmin(validator AdminTokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized admin access - missing token",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "missing or invalid Authorization header")
				return
			}

			adminID, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized admin access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			ctx = requestcontext.WithAdminID(ctx, adminID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + message + `"}`))
}
