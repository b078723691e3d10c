package engine

import (
	"context"

	"anomalyguard/backend/internal/policy/domain"
)

// Input is what a decision policy sees for one attempt.
type Input struct {
	Score   float64
	Reasons []string
}

// Evaluator maps a risk assessment to a decision. Implementations never fail the login:
// on internal error they fall back to the configured thresholds.
type Evaluator interface {
	Decide(ctx context.Context, in Input) domain.Decision
}

// ThresholdEvaluator applies domain.Thresholds directly.
type ThresholdEvaluator struct {
	Thresholds domain.Thresholds
}

func (e ThresholdEvaluator) Decide(_ context.Context, in Input) domain.Decision {
	return e.Thresholds.Decide(in.Score)
}
