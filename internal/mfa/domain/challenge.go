package domain

import "time"

// PendingChallenge is the single live OTP challenge of a user. Only the code hash is stored.
type PendingChallenge struct {
	CodeHash string
	// Fingerprint is the device that triggered the challenge; it becomes trusted on success.
	Fingerprint string
	RiskScore   float64
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired reports whether the challenge is expired at now. The expiry instant itself is still valid.
func (c *PendingChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
