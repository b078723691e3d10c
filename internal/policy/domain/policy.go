package domain

import "fmt"

// Decision is the outcome of the decision policy for one login attempt.
type Decision string

const (
	DecisionAllow     Decision = "ALLOW"
	DecisionFlag      Decision = "FLAG"
	DecisionChallenge Decision = "CHALLENGE"
)

// Valid reports whether d is one of the three known decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionAllow, DecisionFlag, DecisionChallenge:
		return true
	}
	return false
}

// Thresholds partition [0,1]: below AllowBelow allows, at or above ChallengeAt challenges, FLAG in between.
type Thresholds struct {
	AllowBelow  float64
	ChallengeAt float64
}

// DefaultThresholds returns 0.3 / 0.7.
func DefaultThresholds() Thresholds {
	return Thresholds{AllowBelow: 0.3, ChallengeAt: 0.7}
}

// Validate requires 0 <= AllowBelow <= ChallengeAt <= 1.
func (t Thresholds) Validate() error {
	if t.AllowBelow < 0 || t.ChallengeAt > 1 || t.AllowBelow > t.ChallengeAt {
		return fmt.Errorf("thresholds must satisfy 0 <= allow (%v) <= challenge (%v) <= 1", t.AllowBelow, t.ChallengeAt)
	}
	return nil
}

// Decide is monotonic in score.
func (t Thresholds) Decide(score float64) Decision {
	switch {
	case score < t.AllowBelow:
		return DecisionAllow
	case score < t.ChallengeAt:
		return DecisionFlag
	default:
		return DecisionChallenge
	}
}
