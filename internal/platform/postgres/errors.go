package postgres

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes
const (
	pgUniqueViolationCode     = "23505"
	pgForeignKeyViolationCode = "23503"
)

// isUniqueViolation reports whether err is a PostgreSQL unique
// constraint violation, optionally matching a specific constraint name.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolationCode {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// isForeignKeyViolation reports whether err is a PostgreSQL foreign key
// constraint violation.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolationCode
}

// isTaskNameConflict reports whether a task insert failed because the
// name is already taken. The conflict-tolerant insert yields no row
// from RETURNING, so the duplicate arrives as sql.ErrNoRows; the unique
// violation branch covers writes that reach the constraint directly.
func isTaskNameConflict(err error) bool {
	return errors.Is(err, sql.ErrNoRows) ||
		isUniqueViolation(err, uniqueTaskNameConstraint)
}
