// Package handler exposes readiness over HTTP (/healthz) and the standard gRPC health protocol.
package handler

import (
	"net/http"

	"anomalyguard/backend/internal/health"
	"anomalyguard/backend/internal/server/middleware"
)

// HTTP serves GET /healthz. 200 when serving, 503 otherwise.
func HTTP(checker *health.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := checker.Check(r.Context())
		status := http.StatusOK
		if !report.Serving() {
			status = http.StatusServiceUnavailable
		}
		middleware.RespondJSON(w, status, report)
	}
}
