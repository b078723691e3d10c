package domain

import (
	"testing"
	"time"

	devicedomain "anomalyguard/backend/internal/device/domain"
	mfadomain "anomalyguard/backend/internal/mfa/domain"
)

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ada@Example.COM "); got != "ada@example.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}

func TestValidate(t *testing.T) {
	u := &User{ID: "u1", Email: "a@b.c", PasswordHash: "h"}
	if err := u.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, bad := range []*User{
		{Email: "a@b.c", PasswordHash: "h"},
		{ID: "u1", PasswordHash: "h"},
		{ID: "u1", Email: "a@b.c"},
	} {
		if err := bad.Validate(); err == nil {
			t.Errorf("Validate(%+v) should fail", bad)
		}
	}
}

func TestHasPendingAnomaly(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	u := &User{}
	if u.HasPendingAnomaly(now) {
		t.Error("no challenge should mean no pending anomaly")
	}
	u.PendingChallenge = &mfadomain.PendingChallenge{ExpiresAt: now.Add(time.Minute)}
	if !u.HasPendingAnomaly(now) {
		t.Error("live challenge should be pending")
	}
	if u.HasPendingAnomaly(now.Add(2 * time.Minute)) {
		t.Error("expired challenge should not be pending")
	}
}

func TestLastChallenged(t *testing.T) {
	u := &User{LoginHistory: []LoginRecord{
		{Status: LoginStatusChallenged},
		{Status: LoginStatusSuccess},
		{Status: LoginStatusChallenged},
		{Status: LoginStatusSuccess},
	}}
	if got := u.LastChallenged(); got != 2 {
		t.Errorf("LastChallenged = %d, want 2", got)
	}
	if got := (&User{}).LastChallenged(); got != -1 {
		t.Errorf("LastChallenged on empty history = %d, want -1", got)
	}
}

func TestClone_IsDeep(t *testing.T) {
	u := &User{
		ID:               "u1",
		TrustedDevices:   []devicedomain.TrustedDevice{{Fingerprint: "fp"}},
		LoginHistory:     []LoginRecord{{Status: LoginStatusSuccess, Reasons: []string{"new_device"}}},
		PendingChallenge: &mfadomain.PendingChallenge{CodeHash: "h"},
	}
	c := u.Clone()
	c.TrustedDevices[0].Fingerprint = "other"
	c.LoginHistory[0].Reasons[0] = "changed"
	c.LoginHistory = append(c.LoginHistory, LoginRecord{})
	c.PendingChallenge.CodeHash = "x"

	if u.TrustedDevices[0].Fingerprint != "fp" {
		t.Error("devices shared with clone")
	}
	if u.LoginHistory[0].Reasons[0] != "new_device" {
		t.Error("reasons shared with clone")
	}
	if len(u.LoginHistory) != 1 {
		t.Error("history shared with clone")
	}
	if u.PendingChallenge.CodeHash != "h" {
		t.Error("challenge shared with clone")
	}
}
