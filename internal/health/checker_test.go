package health

import (
	"context"
	"errors"
	"testing"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		checker Checker
		serving bool
		checks  map[string]string
	}{
		{"no components", Checker{}, true, map[string]string{}},
		{"all ok", Checker{DB: &mockPinger{}, Policy: &mockPolicyChecker{}}, true,
			map[string]string{"database": "ok", "policy": "ok"}},
		{"db down", Checker{DB: &mockPinger{pingErr: errors.New("connection refused")}}, false,
			map[string]string{"database": "connection refused"}},
		{"policy fails", Checker{DB: &mockPinger{}, Policy: &mockPolicyChecker{healthErr: errors.New("rego compile failed")}}, false,
			map[string]string{"database": "ok", "policy": "rego compile failed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.checker.Check(context.Background())
			if r.Serving() != tt.serving {
				t.Errorf("serving = %v, want %v", r.Serving(), tt.serving)
			}
			if len(r.Checks) != len(tt.checks) {
				t.Fatalf("checks = %v", r.Checks)
			}
			for k, v := range tt.checks {
				if r.Checks[k] != v {
					t.Errorf("check %q = %q, want %q", k, r.Checks[k], v)
				}
			}
		})
	}
}
