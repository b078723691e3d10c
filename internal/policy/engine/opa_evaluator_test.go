package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"anomalyguard/backend/internal/policy/domain"
)

func newDefault(t *testing.T) *OPAEvaluator {
	t.Helper()
	e, err := NewOPAEvaluator(context.Background(), domain.DefaultThresholds(), "", nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	return e
}

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	if err := newDefault(t).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_DefaultMatchesThresholds(t *testing.T) {
	e := newDefault(t)
	if e.Custom() {
		t.Error("default evaluator should not report a custom module")
	}
	th := domain.DefaultThresholds()
	for _, score := range []float64{0, 0.1, 0.29, 0.3, 0.45, 0.69, 0.7, 0.85, 1} {
		got := e.Decide(context.Background(), Input{Score: score})
		if want := th.Decide(score); got != want {
			t.Errorf("Decide(%v) = %s, want %s", score, got, want)
		}
	}
}

func TestOPAEvaluator_CustomModule(t *testing.T) {
	// Any login from a new country is challenged regardless of score.
	module := `package anomalyguard.login_risk

default decision := "ALLOW"

decision := "CHALLENGE" if {
	"new_country" in input.reasons
}
`
	e, err := NewOPAEvaluator(context.Background(), domain.DefaultThresholds(), module, nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if !e.Custom() {
		t.Fatal("custom module should be active")
	}
	if got := e.Decide(context.Background(), Input{Score: 0.25, Reasons: []string{"new_country"}}); got != domain.DecisionChallenge {
		t.Errorf("Decide = %s, want CHALLENGE", got)
	}
	if got := e.Decide(context.Background(), Input{Score: 0.9}); got != domain.DecisionAllow {
		t.Errorf("Decide = %s, want ALLOW", got)
	}
}

func TestOPAEvaluator_BrokenModuleFallsBackToDefault(t *testing.T) {
	e, err := NewOPAEvaluator(context.Background(), domain.DefaultThresholds(), "package broken\n\nthis is not rego", nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if e.Custom() {
		t.Error("broken module must not be active")
	}
	if got := e.Decide(context.Background(), Input{Score: 0.5}); got != domain.DecisionFlag {
		t.Errorf("Decide = %s, want FLAG", got)
	}
}

func TestOPAEvaluator_UnknownDecisionFallsBack(t *testing.T) {
	module := `package anomalyguard.login_risk

decision := "DENY"
`
	e, err := NewOPAEvaluator(context.Background(), domain.DefaultThresholds(), module, nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if got := e.Decide(context.Background(), Input{Score: 0.75}); got != domain.DecisionChallenge {
		t.Errorf("Decide = %s, want threshold fallback CHALLENGE", got)
	}
	if err := e.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck should report an unknown decision")
	}
}

func TestOPAEvaluator_UndefinedDecisionFallsBack(t *testing.T) {
	module := `package anomalyguard.login_risk

decision := "ALLOW" if {
	input.score > 2
}
`
	e, err := NewOPAEvaluator(context.Background(), domain.DefaultThresholds(), module, nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if got := e.Decide(context.Background(), Input{Score: 0.1}); got != domain.DecisionAllow {
		t.Errorf("Decide = %s, want ALLOW from thresholds", got)
	}
	if got := e.Decide(context.Background(), Input{Score: 0.9}); got != domain.DecisionChallenge {
		t.Errorf("Decide = %s, want CHALLENGE from thresholds", got)
	}
}

func TestThresholdEvaluator(t *testing.T) {
	e := ThresholdEvaluator{Thresholds: domain.Thresholds{AllowBelow: 0.5, ChallengeAt: 0.6}}
	if got := e.Decide(context.Background(), Input{Score: 0.55}); got != domain.DecisionFlag {
		t.Errorf("Decide = %s, want FLAG", got)
	}
}

func TestLoadModule(t *testing.T) {
	if m, err := LoadModule(""); m != "" || err != nil {
		t.Errorf("LoadModule(\"\") = %q, %v", m, err)
	}
	path := filepath.Join(t.TempDir(), "policy.rego")
	if err := os.WriteFile(path, []byte(DefaultRegoPolicy), 0o600); err != nil {
		t.Fatal(err)
	}
	m, err := LoadModule(path)
	if err != nil || m != DefaultRegoPolicy {
		t.Errorf("LoadModule = %q, %v", m, err)
	}
	if _, err := LoadModule(filepath.Join(t.TempDir(), "missing.rego")); err == nil {
		t.Error("missing file should fail")
	}
}
