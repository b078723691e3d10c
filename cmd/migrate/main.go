// migrate applies or rolls back the embedded credential store migrations and reports the schema version.
//
//	go run ./cmd/migrate -direction up|down|version
package main

import (
	"flag"
	"log/slog"
	"os"

	"anomalyguard/backend/internal/config"
	"anomalyguard/backend/internal/db/migrate"
	"anomalyguard/backend/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "up, down or version")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, "text")

	if *direction != "version" {
		if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
			logger.Error("migrate", "direction", *direction, "error", err)
			os.Exit(1)
		}
	}
	version, dirty, err := migrate.Version(cfg.DatabaseURL)
	if err != nil {
		logger.Error("schema version", "error", err)
		os.Exit(1)
	}
	logger.Info("schema", "version", version, "dirty", dirty)
}
