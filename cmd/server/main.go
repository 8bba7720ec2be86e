// Package main implements the entry point for the Requiem API server,
// which tracks task progress through an event-sourced ledger, serves a
// persona-driven chat endpoint whose replies can carry progress
// directives, and exposes analytics over Prometheus.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/requiemhq/requiem-api/internal/config"
	"github.com/requiemhq/requiem-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String(
		"migrate",
		"",
		"run a migration command (up, down, status) and exit",
	)
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

// run loads configuration, dispatches migration commands, and otherwise
// boots the full application. Separated from main so exit handling
// lives in exactly one place.
func run(migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"generator", cfg.Chat.Generator,
		"telemetry_enabled", cfg.Telemetry.Enabled)

	db, err := setupAppDatabase(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	if migrateCmd != "" {
		defer closeDatabase(db, appLogger)
		return runMigrationCommand(db, migrateCmd, appLogger)
	}

	// The schema is kept current automatically so a fresh deployment
	// needs no separate migration step.
	if err := migrateUp(db, appLogger); err != nil {
		closeDatabase(db, appLogger)
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		closeDatabase(db, appLogger)
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
