// seed inserts a demo account with a week-day morning login habit so the risk
// assessor has history to compare against. Idempotent: skips if the demo user exists.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"anomalyguard/backend/internal/config"
	"anomalyguard/backend/internal/db"
	devicedomain "anomalyguard/backend/internal/device/domain"
	"anomalyguard/backend/internal/geo"
	"anomalyguard/backend/internal/logging"
	"anomalyguard/backend/internal/security"
	userdomain "anomalyguard/backend/internal/user/domain"
	userrepo "anomalyguard/backend/internal/user/repository"
)

const (
	demoEmail    = "demo@example.com"
	demoPassword = "password123"
	demoAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 Safari/17.5"
	demoIP       = "8.8.8.8"
	historyDays  = 21
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	repo := userrepo.NewPostgresRepository(conn)

	existing, err := repo.GetByEmail(ctx, demoEmail)
	if err != nil {
		logger.Error("seed check", "error", err)
		os.Exit(1)
	}
	if existing != nil {
		logger.Info("seed already applied; skipping", "email", demoEmail)
		return
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(demoPassword))
	if err != nil {
		logger.Error("hash password", "error", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	u := &userdomain.User{
		ID:           uuid.NewString(),
		Email:        demoEmail,
		PasswordHash: hash,
		Name:         "Demo User",
		Company:      "Acme",
		CreatedAt:    now.AddDate(0, 0, -historyDays),
		UpdatedAt:    now,
	}
	if err := repo.Create(ctx, u); err != nil {
		logger.Error("create demo user", "error", err)
		os.Exit(1)
	}

	loc := cfg.Location()
	history := demoHistory(now.In(loc))
	fingerprint := geo.Fingerprint(geo.RequestMeta{XForwardedFor: demoIP, UserAgent: demoAgent})
	err = repo.Update(ctx, u.ID, func(u *userdomain.User) error {
		u.LoginHistory = append(u.LoginHistory, history...)
		u.TrustedDevices = devicedomain.Upsert(u.TrustedDevices, fingerprint, "Seeded laptop", history[len(history)-1].Time)
		return nil
	})
	if err != nil {
		logger.Error("seed history", "error", err)
		os.Exit(1)
	}

	logger.Info("seed completed", "email", demoEmail, "password", demoPassword, "logins", len(history))
}

// demoHistory returns one US login per weekday morning over the last historyDays days.
func demoHistory(now time.Time) []userdomain.LoginRecord {
	var out []userdomain.LoginRecord
	for d := historyDays; d >= 1; d-- {
		day := now.AddDate(0, 0, -d)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		at := time.Date(day.Year(), day.Month(), day.Day(), 9+d%3, 0, 0, 0, day.Location())
		out = append(out, userdomain.LoginRecord{
			IP:      demoIP,
			Country: "US",
			City:    "Mountain View",
			Device:  demoAgent,
			Time:    at.UTC(),
			Status:  userdomain.LoginStatusSuccess,
		})
	}
	return out
}
