// Package risk scores a login attempt against the user's behavioral history.
package risk

import (
	"math"
	"time"

	"anomalyguard/backend/internal/geo"
	userdomain "anomalyguard/backend/internal/user/domain"
)

// Reason names, in the order they are evaluated and reported.
const (
	ReasonNewCountry   = "new_country"
	ReasonNewDevice    = "new_device"
	ReasonUnusualTime  = "unusual_time"
	ReasonUnusualDay   = "unusual_day_pattern"
	ReasonHighVelocity = "high_velocity"
)

// Reasons lists every factor name in evaluation order.
var Reasons = []string{ReasonNewCountry, ReasonNewDevice, ReasonUnusualTime, ReasonUnusualDay, ReasonHighVelocity}

const (
	minHistoryForStats = 5
	minHistoryForHours = 3
	hourTolerance      = 3
	weekendRareBelow   = 0.10
	weekendHabitAbove  = 0.50
)

// Weights is the contribution of each factor to the score.
type Weights struct {
	NewCountry   float64
	NewDevice    float64
	UnusualTime  float64
	UnusualDay   float64
	HighVelocity float64
}

// DefaultWeights sum to 1.0.
func DefaultWeights() Weights {
	return Weights{NewCountry: 0.25, NewDevice: 0.25, UnusualTime: 0.20, UnusualDay: 0.15, HighVelocity: 0.15}
}

// Options configures an Assessor. Zero values fall back to the defaults.
type Options struct {
	Weights           Weights
	VelocityWindow    time.Duration
	VelocityThreshold int
	Location          *time.Location
}

// Assessment is the transient result of scoring one attempt.
type Assessment struct {
	Score       float64  `json:"score"`
	Reasons     []string `json:"reasons"`
	Fingerprint string   `json:"-"`
	Device      string   `json:"-"`
	IP          string   `json:"ip"`
	Country     string   `json:"country"`
	City        string   `json:"city"`
}

// Has reports whether reason contributed to the score.
func (a Assessment) Has(reason string) bool {
	for _, r := range a.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}

// Record builds the login record for this attempt.
func (a Assessment) Record(status userdomain.LoginStatus, decision string, at time.Time) userdomain.LoginRecord {
	return userdomain.LoginRecord{
		IP:        a.IP,
		Country:   a.Country,
		City:      a.City,
		Device:    a.Device,
		Time:      at,
		RiskScore: a.Score,
		Status:    status,
		Reasons:   append([]string(nil), a.Reasons...),
		Decision:  decision,
	}
}

// Assessor is deterministic: the same resolution, user snapshot and now always give the same Assessment.
type Assessor struct {
	w         Weights
	window    time.Duration
	threshold int
	loc       *time.Location
}

func NewAssessor(opts Options) *Assessor {
	a := &Assessor{w: opts.Weights, window: opts.VelocityWindow, threshold: opts.VelocityThreshold, loc: opts.Location}
	if a.w == (Weights{}) {
		a.w = DefaultWeights()
	}
	if a.window <= 0 {
		a.window = 30 * time.Minute
	}
	if a.threshold <= 0 {
		a.threshold = 4
	}
	if a.loc == nil {
		a.loc = time.UTC
	}
	return a
}

// Assess scores res against the user's history as of now. user is treated as read-only.
func (a *Assessor) Assess(res geo.Resolution, user *userdomain.User, now time.Time) Assessment {
	p := NewProfile(user, now, a.window, a.loc)
	local := now.In(a.loc)

	out := Assessment{
		Reasons:     []string{},
		Fingerprint: res.Fingerprint,
		Device:      res.UserAgent,
		IP:          res.IP,
		Country:     res.Country,
		City:        res.City,
	}
	add := func(reason string, weight float64) {
		out.Reasons = append(out.Reasons, reason)
		out.Score += weight
	}

	if len(p.Countries) > 0 && !p.KnowsCountry(res.Country) {
		add(ReasonNewCountry, a.w.NewCountry)
	}
	// Trust can only exist after a completed login, so a first login never counts as a new device.
	if p.Count > 0 && !p.Trusts(res.Fingerprint) {
		add(ReasonNewDevice, a.w.NewDevice)
	}
	if unusualHour(p, local.Hour()) {
		add(ReasonUnusualTime, a.w.UnusualTime)
	}
	if p.Count > 0 {
		weekend := isWeekend(local)
		if (weekend && p.WeekendRatio < weekendRareBelow) || (!weekend && p.WeekendRatio > weekendHabitAbove) {
			add(ReasonUnusualDay, a.w.UnusualDay)
		}
	}
	if p.Recent >= a.threshold {
		add(ReasonHighVelocity, a.w.HighVelocity)
	}

	out.Score = clamp01(math.Round(out.Score*1e6) / 1e6)
	return out
}

func unusualHour(p Profile, hour int) bool {
	switch {
	case len(p.Hours) >= minHistoryForStats:
		mean, stddev := p.HourStats()
		return math.Abs(float64(hour)-mean) > 2*stddev
	case len(p.Hours) >= minHistoryForHours:
		return !p.NearHour(hour, hourTolerance)
	default:
		return false
	}
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
