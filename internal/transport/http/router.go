// Package httptransport assembles the HTTP surface: public intake and
// token-gated forms, the authenticated admin API, and operational
// endpoints.
package httptransport

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"minderdesk/internal/platform/metrics"
	"minderdesk/internal/platform/middleware"
)

// PublicRegistrar registers unauthenticated routes.
type PublicRegistrar interface {
	RegisterPublic(r chi.Router)
}

// AdminRegistrar registers routes behind admin authentication.
type AdminRegistrar interface {
	RegisterAdmin(r chi.Router)
}

// Deps carries everything the router needs.
type Deps struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Validator middleware.AdminTokenValidator

	// DB is used by the health check; nil in memory mode.
	DB *sql.DB

	// PublicLimiter throttles the unauthenticated surface; nil disables.
	PublicLimiter middleware.Limiter

	Public []PublicRegistrar
	Admin  []AdminRegistrar
	// AdminPublic routes live under /admin but outside the token check
	// (login).
	AdminPublic []PublicRegistrar
}

// NewRouter wires middleware and mounts every domain handler. Admin
// routes live under /admin behind the bearer-token check.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Latency(deps.Metrics))

	r.Get("/healthz", healthz(deps.DB))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(pub chi.Router) {
		pub.Use(middleware.ContentTypeJSON)
		if deps.PublicLimiter != nil {
			pub.Use(middleware.RateLimit(deps.PublicLimiter, deps.Logger))
		}
		for _, h := range deps.Public {
			h.RegisterPublic(pub)
		}
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(middleware.ContentTypeJSON)
		for _, h := range deps.AdminPublic {
			h.RegisterPublic(admin)
		}
		admin.Group(func(authed chi.Router) {
			authed.Use(middleware.RequireAdmin(deps.Validator, deps.Logger))
			for _, h := range deps.Admin {
				h.RegisterAdmin(authed)
			}
		})
	})

	return r
}

func healthz(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
