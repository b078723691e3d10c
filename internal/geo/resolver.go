// Package geo derives the client IP, device fingerprint and coarse location of a login request.
package geo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net"
	"strings"
	"time"
)

// RequestMeta is the request metadata the resolver reads.
type RequestMeta struct {
	RemoteAddr     string
	XForwardedFor  string
	UserAgent      string
	AcceptLanguage string
	// SecCHUA is the Sec-CH-UA client hint header.
	SecCHUA string
}

// Location is a best-effort geolocation. Empty fields mean unknown.
type Location struct {
	Country string
	City    string
}

// Resolution is the resolved view of one request.
type Resolution struct {
	IP          string
	Fingerprint string
	UserAgent   string
	Location
}

// Locator looks up the location of a public IP. Implementations return an empty Location when unsure.
type Locator interface {
	Lookup(ip net.IP) (Location, error)
}

// NopLocator is used when no geo database is configured.
type NopLocator struct{}

func (NopLocator) Lookup(net.IP) (Location, error) { return Location{}, nil }

// ClientIP returns the first X-Forwarded-For entry when present, else the host of remoteAddr,
// with any IPv4-mapped IPv6 prefix removed.
func ClientIP(remoteAddr, xForwardedFor string) string {
	ip := ""
	if xForwardedFor != "" {
		first, _, _ := strings.Cut(xForwardedFor, ",")
		ip = strings.TrimSpace(first)
	}
	if ip == "" {
		ip = strings.TrimSpace(remoteAddr)
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
	}
	return strings.TrimPrefix(ip, "::ffff:")
}

// Fingerprint hashes user agent, language, client hints and the resolved IP into a hex SHA-256 digest.
func Fingerprint(meta RequestMeta) string {
	ip := ClientIP(meta.RemoteAddr, meta.XForwardedFor)
	sum := sha256.Sum256([]byte(strings.Join([]string{meta.UserAgent, meta.AcceptLanguage, meta.SecCHUA, ip}, "|")))
	return hex.EncodeToString(sum[:])
}

// Resolver combines fingerprinting with a time-bounded location lookup.
type Resolver struct {
	locator Locator
	timeout time.Duration
	logger  *slog.Logger
}

// NewResolver returns a Resolver. A nil locator disables geolocation; timeout <= 0 means 500ms.
func NewResolver(locator Locator, timeout time.Duration, logger *slog.Logger) *Resolver {
	if locator == nil {
		locator = NopLocator{}
	}
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{locator: locator, timeout: timeout, logger: logger}
}

// Resolve never fails: lookup errors, timeouts and private addresses yield an empty Location.
func (r *Resolver) Resolve(ctx context.Context, meta RequestMeta) Resolution {
	ip := ClientIP(meta.RemoteAddr, meta.XForwardedFor)
	res := Resolution{
		IP:          ip,
		Fingerprint: Fingerprint(meta),
		UserAgent:   meta.UserAgent,
	}
	res.Location = r.locate(ctx, ip)
	return res
}

func (r *Resolver) locate(ctx context.Context, ip string) Location {
	parsed := net.ParseIP(ip)
	if !isPublic(parsed) {
		return Location{}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		loc Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{}
			}
		}()
		loc, err := r.locator.Lookup(parsed)
		done <- result{loc, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			r.logger.Debug("geo lookup failed", "ip", ip, "error", res.err)
			return Location{}
		}
		return res.loc
	case <-ctx.Done():
		r.logger.Warn("geo lookup timed out", "ip", ip, "timeout", r.timeout)
		return Location{}
	}
}

func isPublic(ip net.IP) bool {
	if ip == nil {
		return false
	}
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast())
}
