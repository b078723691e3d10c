// Package handler exposes the dev-only OTP lookup route.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"anomalyguard/backend/internal/devotp"
	"anomalyguard/backend/internal/server/middleware"
)

const devOTPNote = "DEV MODE ONLY"

// Handler serves GET /dev/otp/{userId}. Only mounted when dev OTP is enabled and not production.
type Handler struct {
	store devotp.Store
}

// NewHandler returns a Handler that reads OTPs from store.
func NewHandler(store devotp.Store) *Handler {
	return &Handler{store: store}
}

// Routes mounts the dev routes on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/dev/otp/{userId}", h.GetOTP)
}

// GetOTP returns the plain OTP for the user. 404 if missing or expired.
func (h *Handler) GetOTP(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		middleware.Fail(w, http.StatusBadRequest, "userId is required")
		return
	}
	otp, ok := h.store.Get(r.Context(), userID)
	if !ok {
		middleware.Fail(w, http.StatusNotFound, "OTP not found or expired")
		return
	}
	middleware.RespondJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"otp":    otp,
		"note":   devOTPNote,
	})
}
