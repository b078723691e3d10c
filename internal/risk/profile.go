package risk

import (
	"math"
	"time"

	devicedomain "anomalyguard/backend/internal/device/domain"
	userdomain "anomalyguard/backend/internal/user/domain"
)

// Profile is a read-only summary of a user's prior logins, bucketed in one time zone.
type Profile struct {
	Count     int
	Countries map[string]struct{}
	Hours     []int
	// WeekendRatio is the fraction of prior logins on Saturday or Sunday; 0 with no history.
	WeekendRatio float64
	// Recent is the number of prior logins within the velocity window before now.
	Recent  int
	devices []devicedomain.TrustedDevice
}

// NewProfile summarizes user's history as of now. A nil loc means UTC.
func NewProfile(user *userdomain.User, now time.Time, window time.Duration, loc *time.Location) Profile {
	if loc == nil {
		loc = time.UTC
	}
	p := Profile{Countries: make(map[string]struct{})}
	if user == nil {
		return p
	}
	p.devices = user.TrustedDevices
	p.Count = len(user.LoginHistory)
	p.Hours = make([]int, 0, p.Count)
	weekend := 0
	for _, rec := range user.LoginHistory {
		if rec.Country != "" {
			p.Countries[rec.Country] = struct{}{}
		}
		t := rec.Time.In(loc)
		p.Hours = append(p.Hours, t.Hour())
		if isWeekend(t) {
			weekend++
		}
		if age := now.Sub(rec.Time); age >= 0 && age < window {
			p.Recent++
		}
	}
	if p.Count > 0 {
		p.WeekendRatio = float64(weekend) / float64(p.Count)
	}
	return p
}

// KnowsCountry reports whether country appeared in a prior login.
func (p Profile) KnowsCountry(country string) bool {
	_, ok := p.Countries[country]
	return ok
}

// Trusts reports whether fingerprint belongs to a trusted device.
func (p Profile) Trusts(fingerprint string) bool {
	return devicedomain.IsTrusted(p.devices, fingerprint)
}

// HourStats returns the mean and population standard deviation of the login hours.
func (p Profile) HourStats() (mean, stddev float64) {
	if len(p.Hours) == 0 {
		return 0, 0
	}
	for _, h := range p.Hours {
		mean += float64(h)
	}
	mean /= float64(len(p.Hours))
	var sq float64
	for _, h := range p.Hours {
		d := float64(h) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(p.Hours)))
}

// NearHour reports whether some prior hour is within maxDist of hour on the 24h clock.
func (p Profile) NearHour(hour, maxDist int) bool {
	for _, h := range p.Hours {
		if hourDistance(h, hour) <= maxDist {
			return true
		}
	}
	return false
}

func hourDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	return min(d, 24-d)
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
