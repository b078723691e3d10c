package domain

import (
	"errors"
	"strings"
	"time"

	devicedomain "anomalyguard/backend/internal/device/domain"
	mfadomain "anomalyguard/backend/internal/mfa/domain"
)

// User is the account record: credentials plus the behavioral state the risk assessor reads.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Company      string

	TrustedDevices []devicedomain.TrustedDevice
	// LoginHistory is chronological; the last element is the most recent attempt.
	LoginHistory     []LoginRecord
	PendingChallenge *mfadomain.PendingChallenge

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LoginStatus is the outcome recorded for one login attempt.
type LoginStatus string

const (
	LoginStatusSuccess    LoginStatus = "success"
	LoginStatusChallenged LoginStatus = "challenged"
	LoginStatusVerified   LoginStatus = "verified"
	LoginStatusExpired    LoginStatus = "expired"
)

// LoginRecord is one completed login attempt.
type LoginRecord struct {
	IP        string      `json:"ip"`
	Country   string      `json:"country"`
	City      string      `json:"city"`
	Device    string      `json:"device"`
	Time      time.Time   `json:"time"`
	RiskScore float64     `json:"riskScore"`
	Status    LoginStatus `json:"status"`
	Reasons   []string    `json:"reasons,omitempty"`
	Decision  string      `json:"decision,omitempty"`
}

// NormalizeEmail trims and lower-cases an address for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}

// HasPendingAnomaly reports whether an unexpired challenge is outstanding at now.
func (u *User) HasPendingAnomaly(now time.Time) bool {
	return u.PendingChallenge != nil && !u.PendingChallenge.Expired(now)
}

// LastChallenged returns the index of the most recent challenged record, or -1.
func (u *User) LastChallenged() int {
	for i := len(u.LoginHistory) - 1; i >= 0; i-- {
		if u.LoginHistory[i].Status == LoginStatusChallenged {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can mutate it without affecting the original.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.TrustedDevices = append([]devicedomain.TrustedDevice(nil), u.TrustedDevices...)
	c.LoginHistory = make([]LoginRecord, len(u.LoginHistory))
	for i, r := range u.LoginHistory {
		r.Reasons = append([]string(nil), r.Reasons...)
		c.LoginHistory[i] = r
	}
	if u.PendingChallenge != nil {
		pc := *u.PendingChallenge
		c.PendingChallenge = &pc
	}
	return &c
}
