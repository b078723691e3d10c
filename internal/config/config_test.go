package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":9090")
	}
	if cfg.JWTIssuer != "anomalyguard-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "anomalyguard-auth")
	}
	if cfg.JWTAudience != "anomalyguard-api" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "anomalyguard-api")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.OTPLength != 6 {
		t.Errorf("OTPLength = %d, want 6", cfg.OTPLength)
	}
	if cfg.OTPTTL() != 30*time.Minute {
		t.Errorf("OTPTTL = %v, want 30m", cfg.OTPTTL())
	}
	if cfg.RiskAllowBelow != 0.3 || cfg.RiskChallengeAt != 0.7 {
		t.Errorf("thresholds = (%v, %v), want (0.3, 0.7)", cfg.RiskAllowBelow, cfg.RiskChallengeAt)
	}
	sum := cfg.RiskWeightNewCountry + cfg.RiskWeightNewDevice + cfg.RiskWeightUnusualTime +
		cfg.RiskWeightUnusualDay + cfg.RiskWeightHighVelocity
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("default weights sum = %v, want 1.0", sum)
	}
	if cfg.VelocityWindow() != 30*time.Minute {
		t.Errorf("VelocityWindow = %v, want 30m", cfg.VelocityWindow())
	}
	if cfg.RiskVelocityThreshold != 4 {
		t.Errorf("RiskVelocityThreshold = %d, want 4", cfg.RiskVelocityThreshold)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Location = %v, want UTC", cfg.Location())
	}
	if cfg.SMTPHost != "smtp.gmail.com" || cfg.SMTPPort != 587 {
		t.Errorf("SMTP = %s:%d, want smtp.gmail.com:587", cfg.SMTPHost, cfg.SMTPPort)
	}
	if cfg.EmailFrom != "noreply@anomalyguard.ai" {
		t.Errorf("EmailFrom = %q", cfg.EmailFrom)
	}
	if cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should default to false")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9999")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "10")
	os.Setenv("RISK_CHALLENGE_AT", "0.8")
	os.Setenv("RISK_WEIGHT_NEW_DEVICE", "0.4")
	os.Setenv("OTP_EXPIRES_MINUTES", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9999")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BcryptCost = %d, want 10", cfg.BcryptCost)
	}
	if cfg.RiskChallengeAt != 0.8 {
		t.Errorf("RiskChallengeAt = %v, want 0.8", cfg.RiskChallengeAt)
	}
	if cfg.RiskWeightNewDevice != 0.4 {
		t.Errorf("RiskWeightNewDevice = %v, want 0.4", cfg.RiskWeightNewDevice)
	}
	if cfg.OTPTTL() != 5*time.Minute {
		t.Errorf("OTPTTL = %v, want 5m", cfg.OTPTTL())
	}
}

func TestLoad_BCRYPT_COSTRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 12, false}, // Should default to 12
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestLoad_InvalidRiskSettings(t *testing.T) {
	testCases := []struct {
		name string
		key  string
		val  string
	}{
		{"allow above challenge", "RISK_ALLOW_BELOW", "0.9"},
		{"challenge above one", "RISK_CHALLENGE_AT", "1.5"},
		{"negative weight", "RISK_WEIGHT_UNUSUAL_TIME", "-0.1"},
		{"weight above one", "RISK_WEIGHT_NEW_COUNTRY", "2"},
		{"zero velocity threshold", "RISK_VELOCITY_THRESHOLD", "0"},
		{"bad timezone", "RISK_TIMEZONE", "Mars/Olympus"},
		{"otp too short", "OTP_LENGTH", "3"},
		{"otp expiry zero", "OTP_EXPIRES_MINUTES", "0"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil {
				t.Fatalf("Load should reject %s=%s", tc.key, tc.val)
			}
		})
	}
}

func TestLoad_OTPReturnToClientProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("OTP_RETURN_TO_CLIENT", "true")
	os.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should return error when OTP_RETURN_TO_CLIENT=true and APP_ENV=production")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
	if err.Error() != "config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production" {
		t.Errorf("error = %q, want production message", err.Error())
	}
}

func TestLoad_ProductionRequiresKeysAndDatabase(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "production")
	if _, err := Load(); err == nil {
		t.Fatal("Load should require JWT keys in production")
	}

	os.Setenv("JWT_PRIVATE_KEY", "/keys/private.pem")
	os.Setenv("JWT_PUBLIC_KEY", "/keys/public.pem")
	if _, err := Load(); err == nil {
		t.Fatal("Load should require DATABASE_URL in production")
	}

	os.Setenv("DATABASE_URL", "postgres://localhost/anomalyguard")
	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoad_OTPReturnToClientDevelopment(t *testing.T) {
	os.Clearenv()
	os.Setenv("OTP_RETURN_TO_CLIENT", "true")
	os.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should be true")
	}
}

func TestDurations_FallBackOnInvalid(t *testing.T) {
	cfg := &Config{
		JWTAccessTTL:       "invalid",
		RiskVelocityWindow: "-5m",
		GeoLookupTimeout:   "0",
		EmailSendTimeout:   "",
	}
	if got := cfg.AccessTTL(); got != 168*time.Hour {
		t.Errorf("AccessTTL = %v, want 168h", got)
	}
	if got := cfg.VelocityWindow(); got != 30*time.Minute {
		t.Errorf("VelocityWindow = %v, want 30m", got)
	}
	if got := cfg.GeoTimeout(); got != 500*time.Millisecond {
		t.Errorf("GeoTimeout = %v, want 500ms", got)
	}
	if got := cfg.EmailTimeout(); got != 10*time.Second {
		t.Errorf("EmailTimeout = %v, want 10s", got)
	}
}

func TestAccessTTL_ValidDuration(t *testing.T) {
	cfg := &Config{JWTAccessTTL: "30m"}
	if ttl := cfg.AccessTTL(); ttl != 30*time.Minute {
		t.Errorf("AccessTTL = %v, want %v", ttl, 30*time.Minute)
	}
}

func TestKafkaBrokersList(t *testing.T) {
	var nilCfg *Config
	if got := nilCfg.KafkaBrokersList(); got != nil {
		t.Errorf("nil config brokers = %v, want nil", got)
	}
	cfg := &Config{KafkaBrokers: " a:9092, ,b:9092 "}
	got := cfg.KafkaBrokersList()
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("KafkaBrokersList = %v, want [a:9092 b:9092]", got)
	}
}
