// Package devotp keeps plain OTPs in memory by user ID so they can be read back over
// GET /dev/otp/{userId}. Only wired when dev OTP mode is enabled outside production.
package devotp

import (
	"context"
	"sync"
	"time"
)

// Store holds plain OTP by user ID for dev-only retrieval. Not used in production.
type Store interface {
	// Put stores otp for userID until expiresAt, replacing any earlier code.
	Put(ctx context.Context, userID, otp string, expiresAt time.Time)
	// Get returns the otp for userID if present and not expired. Returns ok false if missing or expired.
	Get(ctx context.Context, userID string) (otp string, ok bool)
}

type entry struct {
	otp       string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev OTP store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: time.Now,
	}
}

func (s *MemoryStore) Put(ctx context.Context, userID, otp string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[userID] = entry{otp: otp, expiresAt: expiresAt}
}

// Get matches challenge expiry: the code is still readable at the expiry instant.
func (s *MemoryStore) Get(ctx context.Context, userID string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[userID]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if s.nowF().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.m, userID)
		s.mu.Unlock()
		return "", false
	}
	return e.otp, true
}
