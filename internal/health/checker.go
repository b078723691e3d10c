// Package health reports readiness of the login service's dependencies.
package health

import (
	"context"
	"time"
)

// Pinger is implemented by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is implemented by the OPA evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Status values.
const (
	StatusServing    = "SERVING"
	StatusNotServing = "NOT_SERVING"
)

// Report is the result of one readiness check. Checks maps a component to "ok" or its error.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Serving reports whether every component passed.
func (r Report) Serving() bool { return r.Status == StatusServing }

// Checker runs the readiness checks. Nil components are skipped.
type Checker struct {
	DB      Pinger
	Policy  PolicyChecker
	Timeout time.Duration
}

// Check pings each configured component under one shared timeout.
func (c *Checker) Check(ctx context.Context) Report {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := Report{Status: StatusServing, Checks: map[string]string{}}
	record := func(name string, err error) {
		if err != nil {
			r.Status = StatusNotServing
			r.Checks[name] = err.Error()
			return
		}
		r.Checks[name] = "ok"
	}
	if c.DB != nil {
		record("database", c.DB.PingContext(ctx))
	}
	if c.Policy != nil {
		record("policy", c.Policy.HealthCheck(ctx))
	}
	return r
}
