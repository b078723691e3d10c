// Package mfa issues, delivers and verifies emailed one-time codes for step-up login.
package mfa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	devicedomain "anomalyguard/backend/internal/device/domain"
	"anomalyguard/backend/internal/devotp"
	mfadomain "anomalyguard/backend/internal/mfa/domain"
	"anomalyguard/backend/internal/risk"
	userdomain "anomalyguard/backend/internal/user/domain"
	userrepo "anomalyguard/backend/internal/user/repository"
)

var (
	// ErrNoPendingChallenge is returned when the user is unknown or has no outstanding challenge.
	ErrNoPendingChallenge = errors.New("no pending challenge")
	// ErrChallengeExpired is returned when the challenge is past its expiry. The challenge is cleared.
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrInvalidCode is returned when the code does not match. The challenge stays live.
	ErrInvalidCode = errors.New("invalid code")
	// ErrNotificationDeliveryFailed is returned when the code could not be sent. Callers treat it as a warning.
	ErrNotificationDeliveryFailed = errors.New("notification delivery failed")
)

// TrustedDeviceLabel is the label given to devices promoted by a successful verification.
const TrustedDeviceLabel = "Auto-added after OTP verification"

// Sender delivers a code to the user out of band.
type Sender interface {
	SendOTP(ctx context.Context, to, name, code string, ttl time.Duration) error
}

// Options configures a Manager. Zero values fall back to the defaults.
type Options struct {
	Length int
	TTL    time.Duration
	// SendTimeout bounds a single delivery.
	SendTimeout time.Duration
	// DevStore, when set, receives codes instead of Sender (dev OTP mode).
	DevStore devotp.Store
	Now      func() time.Time
	Logger   *slog.Logger
}

// Manager owns the challenge lifecycle. All state changes go through the user repository's Update.
type Manager struct {
	repo        userrepo.Repository
	sender      Sender
	length      int
	ttl         time.Duration
	sendTimeout time.Duration
	dev         devotp.Store
	now         func() time.Time
	logger      *slog.Logger
}

func NewManager(repo userrepo.Repository, sender Sender, opts Options) *Manager {
	m := &Manager{
		repo:        repo,
		sender:      sender,
		length:      opts.Length,
		ttl:         opts.TTL,
		sendTimeout: opts.SendTimeout,
		dev:         opts.DevStore,
		now:         opts.Now,
		logger:      opts.Logger,
	}
	if m.length <= 0 {
		m.length = DefaultOTPLength
	}
	if m.ttl <= 0 {
		m.ttl = 30 * time.Minute
	}
	if m.sendTimeout <= 0 {
		m.sendTimeout = 10 * time.Second
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// TTL returns the challenge lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue replaces any pending challenge of u with a fresh one and appends the challenged
// login record. u must be the locked snapshot inside a repository Update. Returns the plain code.
func (m *Manager) Issue(u *userdomain.User, a risk.Assessment, now time.Time) (string, error) {
	code, err := GenerateOTP(m.length)
	if err != nil {
		return "", err
	}
	u.PendingChallenge = &mfadomain.PendingChallenge{
		CodeHash:    HashOTP(code),
		Fingerprint: a.Fingerprint,
		RiskScore:   a.Score,
		ExpiresAt:   now.Add(m.ttl),
		CreatedAt:   now,
	}
	u.LoginHistory = append(u.LoginHistory, a.Record(userdomain.LoginStatusChallenged, "CHALLENGE", now))
	u.UpdatedAt = now
	return code, nil
}

// Deliver sends code to u. It must be called outside the repository Update.
// Failures are wrapped in ErrNotificationDeliveryFailed.
func (m *Manager) Deliver(ctx context.Context, u *userdomain.User, code string) error {
	if m.dev != nil {
		m.dev.Put(ctx, u.ID, code, m.now().Add(m.ttl))
		m.logger.Info("dev otp stored", "user_id", u.ID)
		return nil
	}
	if m.sender == nil {
		return fmt.Errorf("%w: no sender configured", ErrNotificationDeliveryFailed)
	}
	ctx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()
	if err := m.sender.SendOTP(ctx, u.Email, u.Name, code, m.ttl); err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationDeliveryFailed, err)
	}
	return nil
}

// Verify checks code against userID's pending challenge at the current time.
// On success the challenge is cleared, the triggering device becomes trusted, the most recent
// challenged record becomes verified, and the updated user is returned.
func (m *Manager) Verify(ctx context.Context, userID, code string) (*userdomain.User, error) {
	var (
		verified *userdomain.User
		outcome  error
	)
	err := m.repo.Update(ctx, userID, func(u *userdomain.User) error {
		now := m.now()
		pc := u.PendingChallenge
		if pc == nil {
			return ErrNoPendingChallenge
		}
		if pc.Expired(now) {
			u.PendingChallenge = nil
			setLastChallenged(u, userdomain.LoginStatusExpired)
			u.UpdatedAt = now
			outcome = ErrChallengeExpired
			return nil
		}
		if !OTPEqual(code, pc.CodeHash) {
			return ErrInvalidCode
		}
		u.PendingChallenge = nil
		if pc.Fingerprint != "" {
			u.TrustedDevices = devicedomain.Upsert(u.TrustedDevices, pc.Fingerprint, TrustedDeviceLabel, now)
		}
		setLastChallenged(u, userdomain.LoginStatusVerified)
		u.UpdatedAt = now
		verified = u.Clone()
		return nil
	})
	if errors.Is(err, userrepo.ErrUserNotFound) {
		return nil, ErrNoPendingChallenge
	}
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		return nil, outcome
	}
	return verified, nil
}

func setLastChallenged(u *userdomain.User, status userdomain.LoginStatus) {
	if i := u.LastChallenged(); i >= 0 {
		u.LoginHistory[i].Status = status
	}
}
