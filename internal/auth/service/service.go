// Package service orchestrates password login, risk assessment and OTP step-up.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"anomalyguard/backend/internal/audit"
	auditdomain "anomalyguard/backend/internal/audit/domain"
	devicedomain "anomalyguard/backend/internal/device/domain"
	"anomalyguard/backend/internal/geo"
	"anomalyguard/backend/internal/metrics"
	"anomalyguard/backend/internal/mfa"
	policydomain "anomalyguard/backend/internal/policy/domain"
	"anomalyguard/backend/internal/policy/engine"
	"anomalyguard/backend/internal/risk"
	"anomalyguard/backend/internal/security"
	"anomalyguard/backend/internal/telemetry"
	userdomain "anomalyguard/backend/internal/user/domain"
	userrepo "anomalyguard/backend/internal/user/repository"
)

// Sentinel errors for the login service; the HTTP handler maps them to status codes.
var (
	ErrMissingCredentials     = errors.New("email and password required")
	ErrMissingOTPFields       = errors.New("userId and otp required")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrStorageUnavailable     = errors.New("storage unavailable")
	ErrInvalidToken           = errors.New("invalid token")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
)

// DeliveryWarning is reported on a CHALLENGE whose code could not be sent.
const DeliveryWarning = "We could not send the verification email. Please try logging in again."

// ValidationError carries a user-facing message for rejected signup input.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// LoginResult is the outcome of a Login that passed the credential check.
// Token is set for ALLOW and FLAG; ExpiresInMinutes for CHALLENGE.
type LoginResult struct {
	Decision         policydomain.Decision
	Token            string
	TokenExpiresAt   time.Time
	User             *userdomain.User
	Assessment       risk.Assessment
	ExpiresInMinutes int
	Warning          string
}

// VerifyResult is the outcome of a successful OTP verification.
type VerifyResult struct {
	Token          string
	TokenExpiresAt time.Time
	User           *userdomain.User
}

// RegisterInput is the signup payload.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Company  string
}

// Config wires a LoginService. Audit, Events, Metrics, Logger and Now are optional.
type Config struct {
	Users    userrepo.Repository
	Hasher   *security.Hasher
	Tokens   *security.TokenProvider
	Resolver *geo.Resolver
	Assessor *risk.Assessor
	Policy   engine.Evaluator
	MFA      *mfa.Manager
	Audit    audit.AuditLogger
	Events   telemetry.EventEmitter
	Metrics  metrics.Recorder
	Logger   *slog.Logger
	Now      func() time.Time
}

// LoginService implements login with risk-based OTP step-up.
type LoginService struct {
	users    userrepo.Repository
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	resolver *geo.Resolver
	assessor *risk.Assessor
	policy   engine.Evaluator
	mfa      *mfa.Manager
	audit    audit.AuditLogger
	events   telemetry.EventEmitter
	metrics  metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewLoginService returns a LoginService.
func NewLoginService(cfg Config) *LoginService {
	s := &LoginService{
		users:    cfg.Users,
		hasher:   cfg.Hasher,
		tokens:   cfg.Tokens,
		resolver: cfg.Resolver,
		assessor: cfg.Assessor,
		policy:   cfg.Policy,
		mfa:      cfg.MFA,
		audit:    cfg.Audit,
		events:   cfg.Events,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if s.resolver == nil {
		s.resolver = geo.NewResolver(nil, 0, cfg.Logger)
	}
	if s.policy == nil {
		s.policy = engine.ThresholdEvaluator{Thresholds: policydomain.DefaultThresholds()}
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	if s.events == nil {
		s.events = telemetry.Nop{}
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Login checks credentials, scores the attempt and applies the policy decision.
// Unknown email and wrong password are indistinguishable (ErrInvalidCredentials).
func (s *LoginService) Login(ctx context.Context, email, password string, meta geo.RequestMeta) (*LoginResult, error) {
	email = userdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		s.loginFailed(ctx, "", "storage", err)
		return nil, storageErr(err)
	}
	hash := ""
	if u != nil {
		hash = u.PasswordHash
	}
	if err := s.hasher.Compare(hash, []byte(password)); err != nil {
		s.loginFailed(ctx, userID(u), "credentials", nil)
		return nil, ErrInvalidCredentials
	}

	// Geolocation may block on I/O; it runs before the per-user lock is taken.
	res := s.resolver.Resolve(ctx, meta)

	var (
		result = &LoginResult{}
		code   string
	)
	err = s.users.Update(ctx, u.ID, func(locked *userdomain.User) error {
		now := s.now()
		a := s.assessor.Assess(res, locked, now)
		d := s.policy.Decide(ctx, engine.Input{Score: a.Score, Reasons: a.Reasons})

		switch d {
		case policydomain.DecisionChallenge:
			c, err := s.mfa.Issue(locked, a, now)
			if err != nil {
				return err
			}
			code = c
		default:
			devicedomain.Touch(locked.TrustedDevices, a.Fingerprint, now)
			locked.LoginHistory = append(locked.LoginHistory, a.Record(userdomain.LoginStatusSuccess, string(d), now))
			locked.UpdatedAt = now
		}
		result.Decision = d
		result.Assessment = a
		result.User = locked.Clone()
		return nil
	})
	if errors.Is(err, userrepo.ErrUserNotFound) {
		s.loginFailed(ctx, u.ID, "credentials", nil)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		s.loginFailed(ctx, u.ID, "storage", err)
		return nil, storageErr(err)
	}

	a := result.Assessment
	s.metrics.Decision(string(result.Decision), a.Score, a.Reasons)

	if result.Decision == policydomain.DecisionChallenge {
		result.ExpiresInMinutes = int(math.Round(s.mfa.TTL().Minutes()))
		s.record(ctx, result.User.ID, auditdomain.ActionChallengeIssued, string(result.Decision), &a,
			map[string]any{"expiresInMinutes": result.ExpiresInMinutes})
		if err := s.mfa.Deliver(ctx, result.User, code); err != nil {
			s.logger.WarnContext(ctx, "otp delivery failed", "user_id", result.User.ID, "error", err)
			s.metrics.DeliveryFailure()
			s.record(ctx, result.User.ID, auditdomain.ActionNotificationFailed, string(result.Decision), &a, nil)
			result.Warning = DeliveryWarning
		}
		return result, nil
	}

	token, exp, err := s.tokens.IssueAccess(result.User.ID, result.User.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	result.Token = token
	result.TokenExpiresAt = exp

	action := auditdomain.ActionLoginSuccess
	if result.Decision == policydomain.DecisionFlag {
		action = auditdomain.ActionLoginFlagged
		s.logger.InfoContext(ctx, "login flagged", "user_id", result.User.ID, "score", a.Score, "reasons", a.Reasons)
	}
	s.record(ctx, result.User.ID, action, string(result.Decision), &a, nil)
	return result, nil
}

// VerifyOTP completes a challenged login. The mfa sentinels (ErrNoPendingChallenge,
// ErrChallengeExpired, ErrInvalidCode) are returned unchanged.
func (s *LoginService) VerifyOTP(ctx context.Context, userID, code string) (*VerifyResult, error) {
	userID = strings.TrimSpace(userID)
	code = strings.TrimSpace(code)
	if userID == "" || code == "" {
		return nil, ErrMissingOTPFields
	}
	u, err := s.mfa.Verify(ctx, userID, code)
	switch {
	case errors.Is(err, mfa.ErrNoPendingChallenge):
		s.metrics.OTPVerification("no_pending")
		return nil, err
	case errors.Is(err, mfa.ErrChallengeExpired):
		s.metrics.OTPVerification("expired")
		s.record(ctx, userID, auditdomain.ActionOTPExpired, "", nil, nil)
		return nil, err
	case errors.Is(err, mfa.ErrInvalidCode):
		s.metrics.OTPVerification("invalid")
		s.record(ctx, userID, auditdomain.ActionOTPInvalid, "", nil, nil)
		return nil, err
	case err != nil:
		s.metrics.OTPVerification("error")
		return nil, storageErr(err)
	}

	token, exp, err := s.tokens.IssueAccess(u.ID, u.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.metrics.OTPVerification("verified")
	s.record(ctx, u.ID, auditdomain.ActionOTPVerified, string(policydomain.DecisionChallenge), nil, nil)
	return &VerifyResult{Token: token, TokenExpiresAt: exp, User: u}, nil
}

// CurrentUser returns the user a session token belongs to.
func (s *LoginService) CurrentUser(ctx context.Context, token string) (*userdomain.User, error) {
	id, err := s.tokens.ValidateAccess(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return s.UserByID(ctx, id)
}

// UserByID loads an already-authenticated user. A vanished user is ErrInvalidToken.
func (s *LoginService) UserByID(ctx context.Context, id string) (*userdomain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	if u == nil {
		return nil, ErrInvalidToken
	}
	return u, nil
}

// Register creates a user and returns it with a session token.
func (s *LoginService) Register(ctx context.Context, in RegisterInput) (*VerifyResult, error) {
	email := userdomain.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, &ValidationError{Msg: "name is required"}
	}
	hashed, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashed,
		Name:         name,
		Company:      strings.TrimSpace(in.Company),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, storageErr(err)
	}
	token, exp, err := s.tokens.IssueAccess(u.ID, u.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.audit.LogEvent(ctx, u.ID, auditdomain.ActionSignup, auditdomain.ResourceAuthentication, "")
	return &VerifyResult{Token: token, TokenExpiresAt: exp, User: u}, nil
}

func (s *LoginService) loginFailed(ctx context.Context, userID, reason string, err error) {
	if err != nil {
		s.logger.ErrorContext(ctx, "login failed", "reason", reason, "error", err)
	}
	s.metrics.LoginFailure(reason)
	s.record(ctx, userID, auditdomain.ActionLoginFailure, "", nil, map[string]any{"reason": reason})
}

// record writes the audit entry and publishes the matching security event.
func (s *LoginService) record(ctx context.Context, userID, action, decision string, a *risk.Assessment, extra map[string]any) {
	meta := map[string]any{}
	for k, v := range extra {
		meta[k] = v
	}
	ev := &telemetry.SecurityEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		EventType: action,
		Source:    telemetry.SourceLogin,
		Decision:  decision,
		CreatedAt: s.now().UTC(),
	}
	if a != nil {
		meta["riskScore"] = a.Score
		meta["reasons"] = a.Reasons
		ev.RiskScore = a.Score
		ev.Reasons = a.Reasons
		ev.IP = a.IP
		ev.Country = a.Country
	}
	if decision != "" {
		meta["decision"] = decision
	}
	encoded := audit.Metadata(meta)
	if encoded != "" {
		ev.Metadata = []byte(encoded)
	}
	s.audit.LogEvent(ctx, userID, action, auditdomain.ResourceAuthentication, encoded)
	telemetry.EmitAsync(s.events, ctx, ev)
}

func storageErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

func userID(u *userdomain.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return &ValidationError{Msg: "email is required"}
	}
	if !emailPattern.MatchString(email) {
		return &ValidationError{Msg: "invalid email format"}
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return &ValidationError{Msg: "password must be at least 8 characters"}
	}
	var hasLetter, hasNumber bool
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			hasNumber = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasLetter = true
		}
	}
	if !hasLetter || !hasNumber {
		return &ValidationError{Msg: "password must contain a letter and a number"}
	}
	return nil
}
