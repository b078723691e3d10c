// Package metrics provides Prometheus instrumentation for the login risk service.
package metrics

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "anomalyguard"

var (
	// HTTPRequestsTotal counts HTTP requests by method, route pattern and status bucket.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route pattern, and status class.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// LoginDecisionsTotal counts completed logins by policy decision.
	LoginDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_decisions_total",
			Help:      "Completed logins by decision (ALLOW, FLAG, CHALLENGE).",
		},
		[]string{"decision"},
	)

	// LoginFailuresTotal counts rejected logins by reason (credentials, storage, validation).
	LoginFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_failures_total",
			Help:      "Rejected login attempts by reason.",
		},
		[]string{"reason"},
	)

	// RiskFactorsTotal counts how often each risk factor fired.
	RiskFactorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_factors_total",
			Help:      "Triggered risk factors by name.",
		},
		[]string{"factor"},
	)

	RiskScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "risk_score",
		Help:      "Distribution of login risk scores.",
		Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})

	// OTPVerificationsTotal counts verification attempts by outcome.
	OTPVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_verifications_total",
			Help:      "OTP verification attempts by outcome (verified, invalid, expired, no_pending, error).",
		},
		[]string{"outcome"},
	)

	OTPDeliveryFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_delivery_failures_total",
		Help:      "OTP notifications that could not be delivered.",
	})

	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		LoginDecisionsTotal,
		LoginFailuresTotal,
		RiskFactorsTotal,
		RiskScore,
		OTPVerificationsTotal,
		OTPDeliveryFailuresTotal,
		DBOpenConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// Recorder is the narrow view the login service reports through.
type Recorder interface {
	Decision(decision string, score float64, reasons []string)
	LoginFailure(reason string)
	OTPVerification(outcome string)
	DeliveryFailure()
}

// Prometheus records into the package-level collectors.
type Prometheus struct{}

func (Prometheus) Decision(decision string, score float64, reasons []string) {
	LoginDecisionsTotal.WithLabelValues(decision).Inc()
	RiskScore.Observe(score)
	for _, r := range reasons {
		RiskFactorsTotal.WithLabelValues(r).Inc()
	}
}

func (Prometheus) LoginFailure(reason string) { LoginFailuresTotal.WithLabelValues(reason).Inc() }

func (Prometheus) OTPVerification(outcome string) {
	OTPVerificationsTotal.WithLabelValues(outcome).Inc()
}

func (Prometheus) DeliveryFailure() { OTPDeliveryFailuresTotal.Inc() }

// Nop discards everything.
type Nop struct{}

func (Nop) Decision(string, float64, []string) {}
func (Nop) LoginFailure(string)                {}
func (Nop) OTPVerification(string)             {}
func (Nop) DeliveryFailure()                   {}

// StartDBStatsCollector periodically samples sql.DBStats and the goroutine count.
// Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware records request metrics labelled by the chi route pattern, not the raw path.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(r.Method, path, statusBucket(sw.status)).Inc()
	})
}

// Handler returns the Prometheus metrics HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
