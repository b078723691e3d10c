package db

import "embed"

// MigrationFS embeds SQL migration files from internal/db/migrations.
// Applied on server start and by cmd/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
