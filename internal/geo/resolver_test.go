package geo

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

type fakeLocator struct {
	loc   Location
	err   error
	delay time.Duration
	calls int
	panic bool
}

func (f *fakeLocator) Lookup(ip net.IP) (Location, error) {
	f.calls++
	if f.panic {
		panic("corrupt database")
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.loc, f.err
}

func TestClientIP(t *testing.T) {
	testCases := []struct {
		name, remote, xff, want string
	}{
		{"remote with port", "203.0.113.9:5123", "", "203.0.113.9"},
		{"xff first entry", "10.0.0.1:80", "198.51.100.7, 10.0.0.2", "198.51.100.7"},
		{"xff single", "10.0.0.1:80", " 198.51.100.8 ", "198.51.100.8"},
		{"ipv4 mapped", "[::ffff:203.0.113.5]:443", "", "203.0.113.5"},
		{"ipv4 mapped xff", "", "::ffff:198.51.100.1", "198.51.100.1"},
		{"bare remote", "203.0.113.10", "", "203.0.113.10"},
		{"ipv6", "[2001:db8::1]:443", "", "2001:db8::1"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClientIP(tc.remote, tc.xff); got != tc.want {
				t.Errorf("ClientIP(%q, %q) = %q, want %q", tc.remote, tc.xff, got, tc.want)
			}
		})
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	meta := RequestMeta{RemoteAddr: "203.0.113.9:1", UserAgent: "Mozilla/5.0", AcceptLanguage: "en-US", SecCHUA: `"Chromium";v="130"`}
	a, b := Fingerprint(meta), Fingerprint(meta)
	if a != b {
		t.Fatal("same inputs must give the same fingerprint")
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}

	viaProxy := meta
	viaProxy.RemoteAddr = "10.0.0.1:9"
	viaProxy.XForwardedFor = "203.0.113.9, 10.0.0.1"
	if Fingerprint(viaProxy) != a {
		t.Error("fingerprint must use the resolved client IP, not the proxy")
	}

	for _, changed := range []RequestMeta{
		{RemoteAddr: meta.RemoteAddr, UserAgent: "curl/8", AcceptLanguage: meta.AcceptLanguage, SecCHUA: meta.SecCHUA},
		{RemoteAddr: meta.RemoteAddr, UserAgent: meta.UserAgent, AcceptLanguage: "de-DE", SecCHUA: meta.SecCHUA},
		{RemoteAddr: meta.RemoteAddr, UserAgent: meta.UserAgent, AcceptLanguage: meta.AcceptLanguage},
		{RemoteAddr: "203.0.113.10:1", UserAgent: meta.UserAgent, AcceptLanguage: meta.AcceptLanguage, SecCHUA: meta.SecCHUA},
	} {
		if Fingerprint(changed) == a {
			t.Errorf("fingerprint did not change for %+v", changed)
		}
	}
}

func TestResolve_PublicIP(t *testing.T) {
	loc := &fakeLocator{loc: Location{Country: "US", City: "Boston"}}
	r := NewResolver(loc, time.Second, nil)
	res := r.Resolve(context.Background(), RequestMeta{RemoteAddr: "8.8.8.8:443", UserAgent: "ua"})
	if res.Country != "US" || res.City != "Boston" {
		t.Errorf("location = %+v", res.Location)
	}
	if res.IP != "8.8.8.8" || res.UserAgent != "ua" || res.Fingerprint == "" {
		t.Errorf("resolution = %+v", res)
	}
}

func TestResolve_PrivateIPSkipsLookup(t *testing.T) {
	for _, addr := range []string{"127.0.0.1:1", "10.1.2.3:1", "192.168.1.1:1", "[::1]:1", "garbage"} {
		loc := &fakeLocator{loc: Location{Country: "US"}}
		res := NewResolver(loc, time.Second, nil).Resolve(context.Background(), RequestMeta{RemoteAddr: addr})
		if res.Country != "" || loc.calls != 0 {
			t.Errorf("%s: country=%q calls=%d, want empty and no lookup", addr, res.Country, loc.calls)
		}
	}
}

func TestResolve_DegradesOnFailure(t *testing.T) {
	testCases := []struct {
		name string
		loc  *fakeLocator
	}{
		{"error", &fakeLocator{loc: Location{Country: "US"}, err: errors.New("not found")}},
		{"timeout", &fakeLocator{loc: Location{Country: "US"}, delay: 200 * time.Millisecond}},
		{"panic", &fakeLocator{panic: true}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewResolver(tc.loc, 20*time.Millisecond, nil)
			res := r.Resolve(context.Background(), RequestMeta{RemoteAddr: "8.8.8.8:1"})
			if res.Country != "" || res.City != "" {
				t.Errorf("location = %+v, want empty", res.Location)
			}
			if res.Fingerprint == "" {
				t.Error("fingerprint must still be produced")
			}
		})
	}
}

func TestNopLocator(t *testing.T) {
	res := NewResolver(nil, 0, nil).Resolve(context.Background(), RequestMeta{RemoteAddr: "8.8.8.8:1"})
	if res.Country != "" {
		t.Errorf("NopLocator country = %q", res.Country)
	}
}
