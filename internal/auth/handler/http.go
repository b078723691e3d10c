// Package handler serves the login, OTP verification, session and signup endpoints.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"anomalyguard/backend/internal/auth/service"
	"anomalyguard/backend/internal/geo"
	"anomalyguard/backend/internal/logging"
	"anomalyguard/backend/internal/mfa"
	policydomain "anomalyguard/backend/internal/policy/domain"
	"anomalyguard/backend/internal/server/middleware"
	userdomain "anomalyguard/backend/internal/user/domain"
)

// Response messages.
const (
	msgCredentialsRequired = "Email and password required"
	msgBadCredentials      = "Incorrect email or password"
	msgOTPFieldsRequired   = "userId and otp required"
	msgNoPendingOTP        = "No OTP pending or invalid user"
	msgOTPExpired          = "OTP expired. Please login again."
	msgInvalidOTP          = "Invalid OTP"
	msgOTPVerified         = "OTP verified. Login successful."
	msgChallenge           = "Suspicious login detected. An OTP has been sent to the registered email."
	msgEmailTaken          = "Email already registered"
	msgInvalidToken        = "Invalid token"
	msgMalformedBody       = "Malformed JSON body"
	msgUnavailable         = "Service temporarily unavailable"
	msgServerError         = "Server error"
)

// LoginService is the service surface the handler needs.
type LoginService interface {
	Login(ctx context.Context, email, password string, meta geo.RequestMeta) (*service.LoginResult, error)
	VerifyOTP(ctx context.Context, userID, code string) (*service.VerifyResult, error)
	UserByID(ctx context.Context, id string) (*userdomain.User, error)
	Register(ctx context.Context, in service.RegisterInput) (*service.VerifyResult, error)
}

// Handler serves the auth routes.
type Handler struct {
	svc    LoginService
	tokens middleware.TokenValidator
	now    func() time.Time
}

// NewHandler returns a Handler. tokens guards GET /verify.
func NewHandler(svc LoginService, tokens middleware.TokenValidator) *Handler {
	return &Handler{svc: svc, tokens: tokens, now: time.Now}
}

// Routes mounts the auth routes on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/verify-otp", h.VerifyOTP)
	r.With(middleware.RequireAuth(h.tokens)).Get("/verify", h.Verify)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyOTPRequest struct {
	UserID string `json:"userId"`
	OTP    string `json:"otp"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Company  string `json:"company"`
}

type userData struct {
	User  *userView `json:"user"`
	Token string    `json:"token,omitempty"`
}

type loginSuccess struct {
	Status    string    `json:"status"`
	Token     string    `json:"token"`
	Data      userData  `json:"data"`
	RiskScore float64   `json:"riskScore"`
	Decision  string    `json:"decision"`
	Reasons   []string  `json:"reasons"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type loginChallenge struct {
	Status           string   `json:"status"`
	Message          string   `json:"message"`
	UserID           string   `json:"userId"`
	RiskScore        float64  `json:"riskScore"`
	Reasons          []string `json:"reasons"`
	ExpiresInMinutes int      `json:"expiresInMinutes"`
	Warning          string   `json:"warning,omitempty"`
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := middleware.DecodeJSON(w, r, &req); err != nil {
		middleware.Fail(w, http.StatusBadRequest, msgMalformedBody)
		return
	}
	meta, ok := middleware.GetRequestMeta(r.Context())
	if !ok {
		meta = middleware.MetaFromRequest(r)
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password, meta)
	switch {
	case errors.Is(err, service.ErrMissingCredentials):
		middleware.Fail(w, http.StatusBadRequest, msgCredentialsRequired)
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		middleware.Fail(w, http.StatusUnauthorized, msgBadCredentials)
		return
	case err != nil:
		h.internal(w, r, err)
		return
	}

	if res.Decision == policydomain.DecisionChallenge {
		middleware.RespondJSON(w, http.StatusOK, loginChallenge{
			Status:           "challenge",
			Message:          msgChallenge,
			UserID:           res.User.ID,
			RiskScore:        res.Assessment.Score,
			Reasons:          res.Assessment.Reasons,
			ExpiresInMinutes: res.ExpiresInMinutes,
			Warning:          res.Warning,
		})
		return
	}
	middleware.RespondJSON(w, http.StatusOK, loginSuccess{
		Status:    "success",
		Token:     res.Token,
		Data:      userData{User: toView(res.User)},
		RiskScore: res.Assessment.Score,
		Decision:  string(res.Decision),
		Reasons:   res.Assessment.Reasons,
		ExpiresAt: res.TokenExpiresAt,
	})
}

// VerifyOTP handles POST /verify-otp.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := middleware.DecodeJSON(w, r, &req); err != nil {
		middleware.Fail(w, http.StatusBadRequest, msgMalformedBody)
		return
	}
	res, err := h.svc.VerifyOTP(r.Context(), req.UserID, req.OTP)
	switch {
	case errors.Is(err, service.ErrMissingOTPFields):
		middleware.Fail(w, http.StatusBadRequest, msgOTPFieldsRequired)
	case errors.Is(err, mfa.ErrNoPendingChallenge):
		middleware.Fail(w, http.StatusBadRequest, msgNoPendingOTP)
	case errors.Is(err, mfa.ErrChallengeExpired):
		middleware.Fail(w, http.StatusBadRequest, msgOTPExpired)
	case errors.Is(err, mfa.ErrInvalidCode):
		middleware.Fail(w, http.StatusUnauthorized, msgInvalidOTP)
	case err != nil:
		h.internal(w, r, err)
	default:
		middleware.RespondJSON(w, http.StatusOK, map[string]any{
			"status":  "success",
			"token":   res.Token,
			"message": msgOTPVerified,
			"data":    userData{User: toView(res.User)},
		})
	}
}

// Verify handles GET /verify. RequireAuth has already validated the token.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetUserID(r.Context())
	u, err := h.svc.UserByID(r.Context(), id)
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		middleware.Fail(w, http.StatusUnauthorized, msgInvalidToken)
	case err != nil:
		h.internal(w, r, err)
	default:
		middleware.RespondJSON(w, http.StatusOK, map[string]any{
			"status":            "success",
			"data":              userData{User: toView(u)},
			"hasPendingAnomaly": u.HasPendingAnomaly(h.now()),
		})
	}
}

// Signup handles POST /signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := middleware.DecodeJSON(w, r, &req); err != nil {
		middleware.Fail(w, http.StatusBadRequest, msgMalformedBody)
		return
	}
	res, err := h.svc.Register(r.Context(), service.RegisterInput{
		Email: req.Email, Password: req.Password, Name: req.Name, Company: req.Company,
	})
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		middleware.Fail(w, http.StatusBadRequest, ve.Msg)
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		middleware.Fail(w, http.StatusConflict, msgEmailTaken)
	case err != nil:
		h.internal(w, r, err)
	default:
		middleware.RespondJSON(w, http.StatusCreated, map[string]any{
			"status": "success",
			"data":   userData{User: toView(res.User), Token: res.Token},
		})
	}
}

// internal logs err and answers 503 for storage outages, 500 otherwise. Detail never reaches the client.
func (h *Handler) internal(w http.ResponseWriter, r *http.Request, err error) {
	logging.L(r.Context()).ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	if errors.Is(err, service.ErrStorageUnavailable) {
		middleware.Fail(w, http.StatusServiceUnavailable, msgUnavailable)
		return
	}
	middleware.Fail(w, http.StatusInternalServerError, msgServerError)
}
