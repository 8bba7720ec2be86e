package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/requiemhq/requiem-api/internal/domain"
	"github.com/requiemhq/requiem-api/internal/platform/logger"
	"github.com/requiemhq/requiem-api/internal/store"
)

// PostgresTaskEventStore implements the store.TaskEventStore interface
// using a PostgreSQL database as the storage backend. The event log is
// append-only: rows are inserted and read, never updated.
type PostgresTaskEventStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskEventStore creates a new PostgreSQL implementation of the TaskEventStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskEventStore(db store.DBTX, logger *slog.Logger) *PostgresTaskEventStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskEventStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_event_store")),
	}
}

// Ensure PostgresTaskEventStore implements store.TaskEventStore interface
var _ store.TaskEventStore = (*PostgresTaskEventStore)(nil)

// WithTx returns a new TaskEventStore that executes against the given transaction.
func (s *PostgresTaskEventStore) WithTx(tx *sql.Tx) store.TaskEventStore {
	return &PostgresTaskEventStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.TaskEventStore.Create
// It appends a new event to the log, assigning its ID from the database sequence.
// Returns store.ErrInvalidEntity if the referenced task does not exist.
func (s *PostgresTaskEventStore) Create(ctx context.Context, event *domain.TaskEvent) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := event.Validate(); err != nil {
		log.Warn("task event validation failed during create",
			slog.String("error", err.Error()),
			slog.Int64("task_id", event.TaskID))
		return err
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO task_events (task_id, progress, source, note, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := s.db.QueryRowContext(
		ctx,
		query,
		event.TaskID,
		event.Progress,
		event.Source,
		event.Note,
		event.CreatedAt,
	).Scan(&event.ID)

	if err != nil {
		if isForeignKeyViolation(err) {
			log.Warn("foreign key violation during event creation",
				slog.String("error", err.Error()),
				slog.Int64("task_id", event.TaskID))
			return fmt.Errorf("%w: task with ID %d not found",
				store.ErrInvalidEntity, event.TaskID)
		}

		log.Error("failed to create task event",
			slog.String("error", err.Error()),
			slog.Int64("task_id", event.TaskID))
		return err
	}

	log.Debug("task event created",
		slog.Int64("event_id", event.ID),
		slog.Int64("task_id", event.TaskID),
		slog.Int("progress", event.Progress),
		slog.String("source", event.Source))
	return nil
}

// List implements store.TaskEventStore.List
// Events are ordered by created_at ascending with ID as tiebreak, the
// canonical ordering for all derived computations.
func (s *PostgresTaskEventStore) List(ctx context.Context) ([]*domain.TaskEvent, error) {
	query := `
		SELECT e.id, e.task_id, t.name, e.progress, e.source, e.note, e.created_at
		FROM task_events e
		JOIN tasks t ON t.id = e.task_id
		ORDER BY e.created_at ASC, e.id ASC
	`
	return s.queryEvents(ctx, query)
}

// ListRecent implements store.TaskEventStore.ListRecent
// The caller decides whether to re-reverse for chronological display.
func (s *PostgresTaskEventStore) ListRecent(ctx context.Context, limit int) ([]*domain.TaskEvent, error) {
	query := `
		SELECT e.id, e.task_id, t.name, e.progress, e.source, e.note, e.created_at
		FROM task_events e
		JOIN tasks t ON t.id = e.task_id
		ORDER BY e.created_at DESC, e.id DESC
		LIMIT $1
	`
	return s.queryEvents(ctx, query, limit)
}

// DeleteAll implements store.TaskEventStore.DeleteAll
func (s *PostgresTaskEventStore) DeleteAll(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM task_events`)
	if err != nil {
		log.Error("failed to delete all task events",
			slog.String("error", err.Error()))
		return err
	}

	if rowsAffected, raErr := result.RowsAffected(); raErr == nil {
		log.Info("deleted all task events", slog.Int64("count", rowsAffected))
	}
	return nil
}

// queryEvents runs an event SELECT and scans the full result set.
func (s *PostgresTaskEventStore) queryEvents(
	ctx context.Context,
	query string,
	args ...any,
) ([]*domain.TaskEvent, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query task events",
			slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Error("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var events []*domain.TaskEvent
	for rows.Next() {
		var event domain.TaskEvent
		var note sql.NullString

		err := rows.Scan(
			&event.ID,
			&event.TaskID,
			&event.TaskName,
			&event.Progress,
			&event.Source,
			&note,
			&event.CreatedAt,
		)
		if err != nil {
			log.Error("failed to scan task event row",
				slog.String("error", err.Error()))
			return nil, err
		}

		if note.Valid {
			event.Note = &note.String
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows",
			slog.String("error", err.Error()))
		return nil, err
	}

	if events == nil {
		events = []*domain.TaskEvent{}
	}
	return events, nil
}
