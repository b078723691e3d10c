package domain

import "time"

// Actions written by the login flow.
const (
	ActionLoginFailure       = "login_failure"
	ActionLoginSuccess       = "login_success"
	ActionLoginFlagged       = "login_flagged"
	ActionChallengeIssued    = "challenge_issued"
	ActionOTPVerified        = "otp_verified"
	ActionOTPInvalid         = "otp_invalid"
	ActionOTPExpired         = "otp_expired"
	ActionNotificationFailed = "notification_failed"
	ActionSignup             = "signup"
)

// ResourceAuthentication is the resource recorded for login-flow events.
const ResourceAuthentication = "authentication"

// AuditLog represents an audit event. UserID is empty when the actor is unknown.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
