// Package server assembles the HTTP router and the gRPC health server.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	authhandler "anomalyguard/backend/internal/auth/handler"
	devotphandler "anomalyguard/backend/internal/devotp/handler"
	"anomalyguard/backend/internal/health"
	healthhandler "anomalyguard/backend/internal/health/handler"
	"anomalyguard/backend/internal/metrics"
	"anomalyguard/backend/internal/server/middleware"
)

// Deps holds the handlers and settings for the HTTP router.
type Deps struct {
	Logger *slog.Logger
	Auth   *authhandler.Handler
	// DevOTP is mounted only when set. Set only when dev OTP is enabled and not production.
	DevOTP *devotphandler.Handler
	Health *health.Checker
	// CORSOrigins lists allowed browser origins; empty allows any.
	CORSOrigins []string
}

// NewRouter returns the HTTP handler for the API.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(metrics.Middleware)
	r.Use(middleware.CORS(deps.CORSOrigins))

	checker := deps.Health
	if checker == nil {
		checker = &health.Checker{}
	}
	r.Get("/healthz", healthhandler.HTTP(checker))
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.JSONContentType)
		r.Use(middleware.ClientMeta)
		if deps.Auth != nil {
			deps.Auth.Routes(r)
		}
		if deps.DevOTP != nil {
			deps.DevOTP.Routes(r)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.Fail(w, http.StatusNotFound, "Not found")
	})
	return r
}
