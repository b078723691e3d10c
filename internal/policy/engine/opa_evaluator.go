package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/open-policy-agent/opa/v1/rego"

	"anomalyguard/backend/internal/policy/domain"
)

const decisionQuery = "data.anomalyguard.login_risk.decision"

// DefaultRegoPolicy mirrors domain.Thresholds.Decide. Operator modules must define the same package and rule.
const DefaultRegoPolicy = `package anomalyguard.login_risk

default decision := "CHALLENGE"

decision := "ALLOW" if {
	input.score < input.thresholds.allow_below
}

decision := "FLAG" if {
	input.score >= input.thresholds.allow_below
	input.score < input.thresholds.challenge_at
}
`

// OPAEvaluator evaluates the decision policy with OPA Rego, prepared once at construction.
type OPAEvaluator struct {
	thresholds domain.Thresholds
	query      rego.PreparedEvalQuery
	custom     bool
	logger     *slog.Logger
}

// NewOPAEvaluator prepares module (DefaultRegoPolicy when empty). A module that fails to
// compile is logged and replaced by the default; only a broken default is an error.
func NewOPAEvaluator(ctx context.Context, thresholds domain.Thresholds, module string, logger *slog.Logger) (*OPAEvaluator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &OPAEvaluator{thresholds: thresholds, logger: logger}
	if module != "" {
		q, err := prepare(ctx, module)
		if err == nil {
			e.query, e.custom = q, true
			return e, nil
		}
		logger.Warn("policy: custom module rejected, using default", "error", err)
	}
	q, err := prepare(ctx, DefaultRegoPolicy)
	if err != nil {
		return nil, fmt.Errorf("prepare default policy: %w", err)
	}
	e.query = q
	return e, nil
}

// LoadModule reads a Rego module from path; empty path returns "".
func LoadModule(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read policy module: %w", err)
	}
	return string(b), nil
}

func prepare(ctx context.Context, module string) (rego.PreparedEvalQuery, error) {
	return rego.New(
		rego.Query(decisionQuery),
		rego.Module("login_risk.rego", module),
	).PrepareForEval(ctx)
}

// Custom reports whether an operator-supplied module is in effect.
func (e *OPAEvaluator) Custom() bool { return e.custom }

// Decide evaluates the policy; evaluation errors and unknown results fall back to the thresholds.
func (e *OPAEvaluator) Decide(ctx context.Context, in Input) domain.Decision {
	d, err := e.eval(ctx, in)
	if err != nil {
		e.logger.Warn("policy: evaluation failed, using thresholds", "error", err, "score", in.Score)
		return e.thresholds.Decide(in.Score)
	}
	return d
}

func (e *OPAEvaluator) eval(ctx context.Context, in Input) (domain.Decision, error) {
	reasons := in.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	input := map[string]interface{}{
		"score":   in.Score,
		"reasons": reasons,
		"thresholds": map[string]interface{}{
			"allow_below":  e.thresholds.AllowBelow,
			"challenge_at": e.thresholds.ChallengeAt,
		},
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return "", fmt.Errorf("policy query returned no result")
	}
	s, ok := rs[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("policy returned %T, want string", rs[0].Expressions[0].Value)
	}
	d := domain.Decision(s)
	if !d.Valid() {
		return "", fmt.Errorf("policy returned unknown decision %q", s)
	}
	return d, nil
}

// HealthCheck evaluates the active policy against a zero-risk input. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	if _, err := e.eval(ctx, Input{Score: 0}); err != nil {
		return fmt.Errorf("eval policy: %w", err)
	}
	return nil
}
