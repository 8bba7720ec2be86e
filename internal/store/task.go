package store

import (
	"context"
	"database/sql"

	"github.com/requiemhq/requiem-api/internal/domain"
)

// TaskStore defines the interface for task snapshot persistence.
// Mutating methods are reserved for the progress service, which is the
// single writer of task state; read methods are safe for any caller.
type TaskStore interface {
	// Create saves a new task to the store.
	// Returns ErrTaskNameExists if a task with the same name already exists.
	// Returns validation errors from the domain Task if data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Task, error)

	// GetByName retrieves a task by its exact, case-sensitive name.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByName(ctx context.Context, name string) (*domain.Task, error)

	// Update saves changes to an existing task's snapshot fields and
	// refreshes its updated_at timestamp.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// List retrieves all tasks ordered by ID ascending.
	List(ctx context.Context) ([]*domain.Task, error)

	// ListIncomplete retrieves all tasks with progress below completion,
	// ordered by updated_at ascending with ID as tiebreak, so the
	// least-recently-touched task comes first.
	ListIncomplete(ctx context.Context) ([]*domain.Task, error)

	// DeleteAll removes every task. Events must be deleted first; the
	// schema cascades but the reset flow deletes explicitly in order.
	DeleteAll(ctx context.Context) error

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) TaskStore
}

// TaskEventStore defines the interface for the append-only progress
// event log. Events are immutable once written.
type TaskEventStore interface {
	// Create appends a new event to the log.
	// Returns validation errors from the domain TaskEvent if data is invalid.
	// Returns ErrInvalidEntity if the referenced task does not exist.
	Create(ctx context.Context, event *domain.TaskEvent) error

	// List retrieves all events ordered by created_at ascending with ID
	// as tiebreak, with each event's TaskName resolved.
	List(ctx context.Context) ([]*domain.TaskEvent, error)

	// ListRecent retrieves the most recent limit events by created_at
	// descending, with each event's TaskName resolved.
	ListRecent(ctx context.Context, limit int) ([]*domain.TaskEvent, error)

	// DeleteAll removes every event from the log.
	DeleteAll(ctx context.Context) error

	// WithTx returns a new TaskEventStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TaskEventStore
}
