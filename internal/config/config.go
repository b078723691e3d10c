// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the JSON API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health endpoint; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN. Empty runs the in-memory credential store (development only).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	// When both key settings are empty an ephemeral ES256 key is generated (rejected in production).
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the session token lifetime (e.g. "168h").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// OTPLength is the number of digits in an emailed one-time code.
	OTPLength int `mapstructure:"OTP_LENGTH"`
	// OTPExpiresMinutes is the lifetime of a pending challenge.
	OTPExpiresMinutes int `mapstructure:"OTP_EXPIRES_MINUTES"`
	// OTPReturnToClient enables dev OTP mode: no email, code readable at GET /dev/otp/{userId}.
	// Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`

	// Decision thresholds: score < RiskAllowBelow allows, score >= RiskChallengeAt challenges, FLAG in between.
	RiskAllowBelow  float64 `mapstructure:"RISK_ALLOW_BELOW"`
	RiskChallengeAt float64 `mapstructure:"RISK_CHALLENGE_AT"`

	RiskWeightNewCountry   float64 `mapstructure:"RISK_WEIGHT_NEW_COUNTRY"`
	RiskWeightNewDevice    float64 `mapstructure:"RISK_WEIGHT_NEW_DEVICE"`
	RiskWeightUnusualTime  float64 `mapstructure:"RISK_WEIGHT_UNUSUAL_TIME"`
	RiskWeightUnusualDay   float64 `mapstructure:"RISK_WEIGHT_UNUSUAL_DAY"`
	RiskWeightHighVelocity float64 `mapstructure:"RISK_WEIGHT_HIGH_VELOCITY"`
	// RiskVelocityWindow is the trailing window for high_velocity (e.g. "30m").
	RiskVelocityWindow string `mapstructure:"RISK_VELOCITY_WINDOW"`
	// RiskVelocityThreshold is the number of prior attempts inside the window that triggers high_velocity.
	RiskVelocityThreshold int `mapstructure:"RISK_VELOCITY_THRESHOLD"`
	// RiskTimezone is the IANA zone used to bucket login hours and weekdays.
	RiskTimezone string `mapstructure:"RISK_TIMEZONE"`
	// PolicyRegoPath optionally points at a Rego module overriding the default decision policy.
	PolicyRegoPath string `mapstructure:"POLICY_REGO_PATH"`

	// GeoIPDBPath is the MaxMind City database path; empty disables geolocation.
	GeoIPDBPath      string `mapstructure:"GEOIP_DB_PATH"`
	GeoLookupTimeout string `mapstructure:"GEO_LOOKUP_TIMEOUT"`

	SMTPHost         string `mapstructure:"SMTP_HOST"`
	SMTPPort         int    `mapstructure:"SMTP_PORT"`
	SMTPUser         string `mapstructure:"SMTP_USER"`
	SMTPPass         string `mapstructure:"SMTP_PASS"`
	SMTPSecure       bool   `mapstructure:"SMTP_SECURE"`
	EmailFrom        string `mapstructure:"EMAIL_FROM"`
	EmailSendTimeout string `mapstructure:"EMAIL_SEND_TIMEOUT"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// OTLPEndpoint enables OpenTelemetry export when set (e.g. http://localhost:4317).
	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses; empty disables the event stream.
	KafkaBrokers        string `mapstructure:"KAFKA_BROKERS"`
	SecurityEventsTopic string `mapstructure:"SECURITY_EVENTS_TOPIC"`

	// Worker-only: Loki URL for the security event worker (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the security event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "anomalyguard-auth")
	v.SetDefault("JWT_AUDIENCE", "anomalyguard-api")
	v.SetDefault("JWT_ACCESS_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OTP_LENGTH", 6)
	v.SetDefault("OTP_EXPIRES_MINUTES", 30)
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("RISK_ALLOW_BELOW", 0.3)
	v.SetDefault("RISK_CHALLENGE_AT", 0.7)
	v.SetDefault("RISK_WEIGHT_NEW_COUNTRY", 0.25)
	v.SetDefault("RISK_WEIGHT_NEW_DEVICE", 0.25)
	v.SetDefault("RISK_WEIGHT_UNUSUAL_TIME", 0.20)
	v.SetDefault("RISK_WEIGHT_UNUSUAL_DAY", 0.15)
	v.SetDefault("RISK_WEIGHT_HIGH_VELOCITY", 0.15)
	v.SetDefault("RISK_VELOCITY_WINDOW", "30m")
	v.SetDefault("RISK_VELOCITY_THRESHOLD", 4)
	v.SetDefault("RISK_TIMEZONE", "UTC")
	v.SetDefault("POLICY_REGO_PATH", "")
	v.SetDefault("GEOIP_DB_PATH", "")
	v.SetDefault("GEO_LOOKUP_TIMEOUT", "500ms")
	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("SMTP_SECURE", false)
	v.SetDefault("EMAIL_FROM", "noreply@anomalyguard.ai")
	v.SetDefault("EMAIL_SEND_TIMEOUT", "10s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "anomalyguard")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SECURITY_EVENTS_TOPIC", "anomalyguard-security-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "anomalyguard-security-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.OTPReturnToClient && cfg.IsProduction() {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}
	if cfg.IsProduction() && (cfg.JWTPrivateKey == "" || cfg.JWTPublicKey == "") {
		return nil, errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required when APP_ENV=production")
	}
	if cfg.IsProduction() && cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL is required when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.OTPLength < 4 || cfg.OTPLength > 10 {
		return nil, errors.New("config: OTP_LENGTH must be between 4 and 10")
	}
	if cfg.OTPExpiresMinutes <= 0 {
		return nil, errors.New("config: OTP_EXPIRES_MINUTES must be positive")
	}

	if cfg.RiskAllowBelow < 0 || cfg.RiskChallengeAt > 1 || cfg.RiskAllowBelow > cfg.RiskChallengeAt {
		return nil, errors.New("config: risk thresholds must satisfy 0 <= RISK_ALLOW_BELOW <= RISK_CHALLENGE_AT <= 1")
	}
	for _, w := range []float64{
		cfg.RiskWeightNewCountry, cfg.RiskWeightNewDevice, cfg.RiskWeightUnusualTime,
		cfg.RiskWeightUnusualDay, cfg.RiskWeightHighVelocity,
	} {
		if w < 0 || w > 1 {
			return nil, errors.New("config: RISK_WEIGHT_* values must be between 0 and 1")
		}
	}
	if cfg.RiskVelocityThreshold <= 0 {
		return nil, errors.New("config: RISK_VELOCITY_THRESHOLD must be positive")
	}
	if _, err := time.LoadLocation(cfg.RiskTimezone); err != nil {
		return nil, errors.New("config: RISK_TIMEZONE is not a valid IANA time zone")
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 168*time.Hour)
}

// OTPTTL returns the pending challenge lifetime.
func (c *Config) OTPTTL() time.Duration {
	return time.Duration(c.OTPExpiresMinutes) * time.Minute
}

// VelocityWindow parses RiskVelocityWindow. Returns 30m if unset or invalid.
func (c *Config) VelocityWindow() time.Duration {
	return parseDuration(c.RiskVelocityWindow, 30*time.Minute)
}

// GeoTimeout parses GeoLookupTimeout. Returns 500ms if unset or invalid.
func (c *Config) GeoTimeout() time.Duration {
	return parseDuration(c.GeoLookupTimeout, 500*time.Millisecond)
}

// EmailTimeout parses EmailSendTimeout. Returns 10s if unset or invalid.
func (c *Config) EmailTimeout() time.Duration {
	return parseDuration(c.EmailSendTimeout, 10*time.Second)
}

// Location returns the zone used for hour/weekday bucketing. Falls back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.RiskTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the security event stream is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
