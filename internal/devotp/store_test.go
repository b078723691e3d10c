package devotp

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Put(ctx, "user-1", "123456", time.Now().Add(5*time.Minute))

	otp, ok := store.Get(ctx, "user-1")
	if !ok {
		t.Fatal("Get should return OTP after Put")
	}
	if otp != "123456" {
		t.Errorf("otp = %q, want %q", otp, "123456")
	}
}

func TestMemoryStore_PutReplacesEarlierCode(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().Add(5 * time.Minute)

	store.Put(ctx, "user-1", "111111", exp)
	store.Put(ctx, "user-1", "222222", exp)

	if otp, _ := store.Get(ctx, "user-1"); otp != "222222" {
		t.Errorf("otp = %q, want latest code", otp)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	otp, ok := NewMemoryStore().Get(context.Background(), "nonexistent")
	if ok || otp != "" {
		t.Errorf("Get = (%q, %v), want (\"\", false)", otp, ok)
	}
}

func TestMemoryStore_ExpiryBoundary(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	exp := base.Add(30 * time.Minute)
	tests := []struct {
		name string
		now  time.Time
		ok   bool
	}{
		{"before", exp.Add(-time.Millisecond), true},
		{"at expiry", exp, true},
		{"after", exp.Add(time.Millisecond), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			store.nowF = func() time.Time { return tt.now }
			store.Put(context.Background(), "user-1", "123456", exp)
			if _, ok := store.Get(context.Background(), "user-1"); ok != tt.ok {
				t.Errorf("ok = %v, want %v", ok, tt.ok)
			}
		})
	}
}

func TestMemoryStore_ExpiredEntryIsRemoved(t *testing.T) {
	store := NewMemoryStore()
	store.Put(context.Background(), "user-1", "123456", time.Now().Add(-time.Minute))
	store.Get(context.Background(), "user-1")

	store.mu.RLock()
	_, present := store.m["user-1"]
	store.mu.RUnlock()
	if present {
		t.Error("expired entry should be deleted on Get")
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().Add(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("user-%d", i)
			store.Put(ctx, id, fmt.Sprintf("%06d", i), exp)
			if _, ok := store.Get(ctx, id); !ok {
				t.Errorf("Get(%s) missing", id)
			}
		}(i)
	}
	wg.Wait()
}
