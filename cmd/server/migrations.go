package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/requiemhq/requiem-api/migrations"
)

// migrationTableName is the table goose uses to track applied versions.
const migrationTableName = "schema_migrations"

// slogGooseLogger adapts the goose logger interface to slog.
type slogGooseLogger struct{}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(fmt.Sprintf(format, v...))
}

// Fatalf logs at error level without exiting; goose errors are also
// returned to the caller, which owns exit handling.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...))
}

// configureGoose points goose at the embedded migration files.
func configureGoose() error {
	goose.SetLogger(&slogGooseLogger{})
	goose.SetBaseFS(migrations.FS)
	goose.SetTableName(migrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return nil
}

// migrateUp applies all pending migrations.
func migrateUp(db *sql.DB, logger *slog.Logger) error {
	if err := configureGoose(); err != nil {
		return err
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	logger.Info("database schema is up to date")
	return nil
}

// runMigrationCommand executes the migration command named by the
// -migrate flag.
func runMigrationCommand(db *sql.DB, command string, logger *slog.Logger) error {
	if err := configureGoose(); err != nil {
		return err
	}

	logger.Info("running migration command", "command", command)

	var err error
	switch command {
	case "up":
		err = goose.Up(db, ".")
	case "down":
		err = goose.Down(db, ".")
	case "status":
		err = goose.Status(db, ".")
	default:
		return fmt.Errorf("unknown migration command %q (expected up, down or status)", command)
	}
	if err != nil {
		return fmt.Errorf("goose %s failed: %w", command, err)
	}

	logger.Info("migration command completed", "command", command)
	return nil
}
