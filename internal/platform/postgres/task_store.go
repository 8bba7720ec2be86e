package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/requiemhq/requiem-api/internal/domain"
	"github.com/requiemhq/requiem-api/internal/platform/logger"
	"github.com/requiemhq/requiem-api/internal/store"
)

// uniqueTaskNameConstraint is the constraint backing the one-row-per-name
// invariant. Concurrent creators of the same new name race on it; the
// loser sees store.ErrTaskNameExists and re-reads the winner.
const uniqueTaskNameConstraint = "uq_tasks_name"

// taskInsertQuery tolerates the name conflict instead of raising it.
// Raising 23505 inside an open transaction would abort the transaction
// and make the loser's follow-up read of the winner row impossible;
// with DO NOTHING the duplicate surfaces as no row from RETURNING and
// the transaction stays usable.
const taskInsertQuery = `
	INSERT INTO tasks (name, progress, description, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT ON CONSTRAINT uq_tasks_name DO NOTHING
	RETURNING id
`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx returns a new TaskStore that executes against the given transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.TaskStore.Create
// It saves a new task, assigning its ID from the database sequence.
// Returns store.ErrTaskNameExists if the name is already taken.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_name", task.Name))
		return err
	}

	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(
		ctx,
		taskInsertQuery,
		task.Name,
		task.Progress,
		task.Description,
		task.UpdatedAt,
	).Scan(&task.ID)

	if err != nil {
		if isTaskNameConflict(err) {
			log.Debug("task name already exists",
				slog.String("task_name", task.Name))
			return store.ErrTaskNameExists
		}

		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_name", task.Name))
		return err
	}

	log.Info("task created successfully",
		slog.Int64("task_id", task.ID),
		slog.String("task_name", task.Name),
		slog.Int("progress", task.Progress))
	return nil
}

// GetByID implements store.TaskStore.GetByID
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, name, progress, description, updated_at
		FROM tasks
		WHERE id = $1
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.Int64("task_id", id))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return nil, err
	}

	return task, nil
}

// GetByName implements store.TaskStore.GetByName
// Lookup is an exact, case-sensitive match.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByName(ctx context.Context, name string) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, name, progress, description, updated_at
		FROM tasks
		WHERE name = $1
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_name", name))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by name",
			slog.String("error", err.Error()),
			slog.String("task_name", name))
		return nil, err
	}

	return task, nil
}

// Update implements store.TaskStore.Update
// It saves the snapshot fields of an existing task.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during update",
			slog.String("error", err.Error()),
			slog.Int64("task_id", task.ID))
		return err
	}

	task.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE tasks
		SET name = $1, progress = $2, description = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		task.Name,
		task.Progress,
		task.Description,
		task.UpdatedAt,
		task.ID,
	)

	if err != nil {
		if isUniqueViolation(err, uniqueTaskNameConstraint) {
			log.Debug("task name already exists",
				slog.String("task_name", task.Name))
			return store.ErrTaskNameExists
		}

		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", task.ID))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.Int64("task_id", task.ID))
		return err
	}

	if rowsAffected == 0 {
		log.Debug("task not found for update",
			slog.Int64("task_id", task.ID))
		return store.ErrTaskNotFound
	}

	log.Debug("task updated successfully",
		slog.Int64("task_id", task.ID),
		slog.Int("progress", task.Progress))
	return nil
}

// List implements store.TaskStore.List
// Tasks are returned ordered by ID ascending.
func (s *PostgresTaskStore) List(ctx context.Context) ([]*domain.Task, error) {
	query := `
		SELECT id, name, progress, description, updated_at
		FROM tasks
		ORDER BY id ASC
	`
	return s.queryTasks(ctx, query)
}

// ListIncomplete implements store.TaskStore.ListIncomplete
// It returns tasks below full progress, least-recently-touched first.
func (s *PostgresTaskStore) ListIncomplete(ctx context.Context) ([]*domain.Task, error) {
	query := fmt.Sprintf(`
		SELECT id, name, progress, description, updated_at
		FROM tasks
		WHERE progress < %d
		ORDER BY updated_at ASC, id ASC
	`, domain.ProgressMax)
	return s.queryTasks(ctx, query)
}

// DeleteAll implements store.TaskStore.DeleteAll
func (s *PostgresTaskStore) DeleteAll(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks`)
	if err != nil {
		log.Error("failed to delete all tasks",
			slog.String("error", err.Error()))
		return err
	}

	if rowsAffected, raErr := result.RowsAffected(); raErr == nil {
		log.Info("deleted all tasks", slog.Int64("count", rowsAffected))
	}
	return nil
}

// queryTasks runs a task SELECT and scans the full result set.
func (s *PostgresTaskStore) queryTasks(ctx context.Context, query string) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to query tasks",
			slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Error("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row",
				slog.String("error", err.Error()))
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows",
			slog.String("error", err.Error()))
		return nil, err
	}

	if tasks == nil {
		tasks = []*domain.Task{}
	}
	return tasks, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row into a domain.Task.
func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var description sql.NullString

	err := row.Scan(
		&task.ID,
		&task.Name,
		&task.Progress,
		&description,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		task.Description = &description.String
	}
	return &task, nil
}
