package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math"
	"strings"

	"github.com/requiemhq/requiem-api/internal/annotation"
	"github.com/requiemhq/requiem-api/internal/config"
	"github.com/requiemhq/requiem-api/internal/domain"
	"github.com/requiemhq/requiem-api/internal/events"
	"github.com/requiemhq/requiem-api/internal/store"
)

// TxRunner abstracts transaction execution so the service can be unit
// tested without a live database. The production implementation wraps
// store.RunInTransaction over a *sql.DB.
type TxRunner interface {
	// RunInTransaction executes fn within one transaction, committing
	// on nil and rolling back on error.
	RunInTransaction(ctx context.Context, fn store.TxFn) error
}

// DBTxRunner is the production TxRunner backed by a database handle.
type DBTxRunner struct {
	DB *sql.DB
}

// RunInTransaction implements TxRunner.
func (r DBTxRunner) RunInTransaction(ctx context.Context, fn store.TxFn) error {
	return store.RunInTransaction(ctx, r.DB, fn)
}

// CycleRequest describes one telemetry pass over the incomplete task
// set. Step and Note let the caller keep override/template resolution
// on its side while the service keeps the whole pass in one
// transaction.
type CycleRequest struct {
	// Source tags every event this cycle creates.
	Source string

	// MaxTasks caps how many tasks are advanced this cycle.
	MaxTasks int

	// Step resolves the step size for one task.
	Step func(task *domain.Task) int

	// Note resolves the event note for one task and its next progress
	// value. A nil return leaves the note absent.
	Note func(task *domain.Task, next int) *string
}

// ProgressService is the Progress Ledger: the single transactional
// writer of task snapshots and the append-only event log. Every
// mutating operation commits the snapshot update and its event row
// atomically or not at all.
type ProgressService interface {
	// GetOrCreateTask looks a task up by exact name, creating it with
	// zero progress if absent. Concurrent creators of the same new name
	// resolve to exactly one surviving row.
	GetOrCreateTask(ctx context.Context, name string) (*domain.Task, error)

	// ApplyProgressEvent clamps value, sets the task snapshot to it,
	// and appends a TaskEvent, all in one transaction.
	// Returns ErrTaskNotFound if the task does not exist.
	ApplyProgressEvent(
		ctx context.Context,
		taskID int64,
		value int,
		source string,
		note *string,
	) (*domain.TaskEvent, error)

	// ApplyDirective applies one extracted annotation: the named task is
	// created if unknown and its progress event recorded, in one
	// transaction.
	ApplyDirective(
		ctx context.Context,
		directive annotation.Directive,
		source string,
	) (*domain.TaskEvent, error)

	// UpdateTask is the manual edit path: it rewrites the snapshot
	// fields and records a "manual-update" event in the same
	// transaction. Returns ErrTaskNotFound if the task does not exist.
	UpdateTask(
		ctx context.Context,
		id int64,
		name string,
		progress int,
		description *string,
	) (*domain.Task, error)

	// AdvanceNextTask nudges the least-recently-updated incomplete task
	// forward by at most step (always at least 1). Returns nil, nil
	// when every task is complete.
	AdvanceNextTask(ctx context.Context, step int) (*domain.Task, error)

	// RunCycle performs one telemetry pass in a single transaction and
	// returns the events it created, oldest-touched tasks first.
	RunCycle(ctx context.Context, req CycleRequest) ([]*domain.TaskEvent, error)

	// ResetFromSeeds deletes all events then all tasks, then seeds
	// fresh tasks from configuration. Fully destructive.
	ResetFromSeeds(ctx context.Context, seeds []config.SeedTask) ([]*domain.Task, error)

	// SeedTasks reconciles the configured seed list into the task set
	// without touching history: existing tasks (by name) are updated,
	// missing ones inserted. Used at startup.
	SeedTasks(ctx context.Context, seeds []config.SeedTask) error

	// ListTasks returns all tasks ordered by ID ascending.
	ListTasks(ctx context.Context) ([]*domain.Task, error)

	// RecentEvents returns the most recent limit events, newest first.
	RecentEvents(ctx context.Context, limit int) ([]*domain.TaskEvent, error)
}

// OverallProgress returns the arithmetic mean of the tasks' progress
// values rounded to two decimal places, and 0.0 for an empty set.
func OverallProgress(tasks []*domain.Task) float64 {
	if len(tasks) == 0 {
		return 0.0
	}

	total := 0
	for _, task := range tasks {
		total += task.Progress
	}

	mean := float64(total) / float64(len(tasks))
	return math.Round(mean*100) / 100
}

// progressServiceImpl implements the ProgressService interface
type progressServiceImpl struct {
	txRunner   TxRunner
	taskStore  store.TaskStore
	eventStore store.TaskEventStore
	emitter    events.Emitter
	logger     *slog.Logger
}

// NewProgressService creates a new ProgressService.
// It returns an error if any of the required dependencies are nil.
func NewProgressService(
	txRunner TxRunner,
	taskStore store.TaskStore,
	eventStore store.TaskEventStore,
	emitter events.Emitter,
	logger *slog.Logger,
) (ProgressService, error) {
	if txRunner == nil {
		return nil, &ProgressServiceError{
			Operation: "create_service",
			Message:   "txRunner cannot be nil",
		}
	}
	if taskStore == nil {
		return nil, &ProgressServiceError{
			Operation: "create_service",
			Message:   "taskStore cannot be nil",
		}
	}
	if eventStore == nil {
		return nil, &ProgressServiceError{
			Operation: "create_service",
			Message:   "eventStore cannot be nil",
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &progressServiceImpl{
		txRunner:   txRunner,
		taskStore:  taskStore,
		eventStore: eventStore,
		emitter:    emitter,
		logger:     logger.With("component", "progress_service"),
	}, nil
}

// GetOrCreateTask implements ProgressService.GetOrCreateTask
func (s *progressServiceImpl) GetOrCreateTask(ctx context.Context, name string) (*domain.Task, error) {
	var result *domain.Task

	err := s.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		taskStore := s.taskStore.WithTx(tx)

		task, err := s.getOrCreateTaskTx(ctx, taskStore, name)
		if err != nil {
			return err
		}
		result = task
		return nil
	})

	if err != nil {
		return nil, NewProgressServiceError("get_or_create_task", "failed to resolve task", err)
	}
	return result, nil
}

// getOrCreateTaskTx resolves a task by name inside an open transaction.
// The database's unique constraint arbitrates concurrent creators: the
// loser of the insert race re-reads the winner's row.
func (s *progressServiceImpl) getOrCreateTaskTx(
	ctx context.Context,
	taskStore store.TaskStore,
	name string,
) (*domain.Task, error) {
	task, err := taskStore.GetByName(ctx, name)
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, store.ErrTaskNotFound) {
		return nil, err
	}

	task, err = domain.NewTask(name, 0, nil)
	if err != nil {
		return nil, err
	}

	err = taskStore.Create(ctx, task)
	if err == nil {
		s.logger.Info("task auto-created",
			"task_id", task.ID,
			"task_name", task.Name)
		return task, nil
	}
	if errors.Is(err, store.ErrTaskNameExists) {
		return taskStore.GetByName(ctx, name)
	}
	return nil, err
}

// ApplyProgressEvent implements ProgressService.ApplyProgressEvent
func (s *progressServiceImpl) ApplyProgressEvent(
	ctx context.Context,
	taskID int64,
	value int,
	source string,
	note *string,
) (*domain.TaskEvent, error) {
	var result *domain.TaskEvent

	err := s.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		taskStore := s.taskStore.WithTx(tx)

		task, err := taskStore.GetByID(ctx, taskID)
		if err != nil {
			return err
		}

		event, err := s.applyProgressEventTx(ctx, tx, task, value, source, note)
		if err != nil {
			return err
		}
		result = event
		return nil
	})

	if err != nil {
		return nil, NewProgressServiceError("apply_event", "failed to apply progress event", err)
	}

	s.notify(ctx, result)
	return result, nil
}

// ApplyDirective implements ProgressService.ApplyDirective
func (s *progressServiceImpl) ApplyDirective(
	ctx context.Context,
	directive annotation.Directive,
	source string,
) (*domain.TaskEvent, error) {
	var result *domain.TaskEvent

	err := s.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		taskStore := s.taskStore.WithTx(tx)

		task, err := s.getOrCreateTaskTx(ctx, taskStore, directive.TaskName)
		if err != nil {
			return err
		}

		event, err := s.applyProgressEventTx(ctx, tx, task, directive.Progress, source, directive.Note)
		if err != nil {
			return err
		}
		result = event
		return nil
	})

	if err != nil {
		return nil, NewProgressServiceError("apply_directive", "failed to apply directive", err)
	}

	s.notify(ctx, result)
	return result, nil
}

// applyProgressEventTx writes the snapshot update and its event row
// inside an open transaction. This is the only code path that mutates a
// task's progress together with the event log.
func (s *progressServiceImpl) applyProgressEventTx(
	ctx context.Context,
	tx *sql.Tx,
	task *domain.Task,
	value int,
	source string,
	note *string,
) (*domain.TaskEvent, error) {
	taskStore := s.taskStore.WithTx(tx)
	eventStore := s.eventStore.WithTx(tx)

	task.SetProgress(value)
	if err := taskStore.Update(ctx, task); err != nil {
		return nil, err
	}

	event, err := domain.NewTaskEvent(task.ID, task.Progress, source, note)
	if err != nil {
		return nil, err
	}
	if err := eventStore.Create(ctx, event); err != nil {
		return nil, err
	}

	event.TaskName = task.Name
	return event, nil
}

// UpdateTask implements ProgressService.UpdateTask
func (s *progressServiceImpl) UpdateTask(
	ctx context.Context,
	id int64,
	name string,
	progress int,
	description *string,
) (*domain.Task, error) {
	var result *domain.Task

	err := s.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		taskStore := s.taskStore.WithTx(tx)

		task, err := taskStore.GetByID(ctx, id)
		if err != nil {
			return err
		}

		task.Name = strings.TrimSpace(name)
		task.Description = description
		if err := task.Validate(); err != nil {
			return err
		}

		if _, err := s.applyProgressEventTx(
			ctx, tx, task, progress, domain.EventSourceManualUpdate, nil); err != nil {
			return err
		}

		result = task
		return nil
	})

	if err != nil {
		return nil, NewProgressServiceError("update_task", "failed to update task", err)
	}

	s.logger.Info("task updated manually",
		"task_id", result.ID,
		"task_name", result.Name,
		"progress", result.Progress)
	return result, nil
}

// AdvanceNextTask implements ProgressService.AdvanceNextTask
// Only the snapshot moves here; the chat-side nudge mirrors a user
// touch, not an observed progress event.
func (s *progressServiceImpl) AdvanceNextTask(ctx context.Context, step int) (*domain.Task, error) {
	var result *domain.Task

	err := s.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		taskStore := s.taskStore.WithTx(tx)

		tasks, err := taskStore.ListIncomplete(ctx)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			return nil
		}

		task := tasks[0]
		task.SetProgress(task.Progress + boundedIncrement(task.Progress, step))
		if err := taskStore.Update(ctx, task); err != nil {
			return err
		}

		result = task
		return nil
	})

	if err != nil {
		return nil, NewProgressServiceError("advance_next_task", "failed to advance task", err)
	}

	if result != nil {
		s.logger.Debug("advanced least-recently-touched task",
			"task_id", result.ID,
			"task_name", result.Name,
			"progress", result.Progress)
	}
	return result, nil
}

// boundedIncrement caps step at the remaining distance to completion
// while guaranteeing forward movement of at least 1 whenever the task
// is incomplete.
func boundedIncrement(progress, step int) int {
	if step < 1 {
		step = 1
	}
	remaining := domain.ProgressMax - progress
	if remaining < 1 {
		return 0
	}
	if step > remaining {
		return remaining
	}
	return step
}

// RunCycle implements ProgressService.RunCycle
func (s *progressServiceImpl) RunCycle(
	ctx context.Context,
	req CycleRequest,
) ([]*domain.TaskEvent, error) {
	var created []*domain.TaskEvent

	err := s.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		taskStore := s.taskStore.WithTx(tx)

		tasks, err := taskStore.ListIncomplete(ctx)
		if err != nil {
			return err
		}

		for _, task := range tasks {
			if len(created) >= req.MaxTasks {
				break
			}

			step := req.Step(task)
			next := task.Progress + step
			if next > domain.ProgressMax {
				next = domain.ProgressMax
			}
			// A saturated or misconfigured step makes no forward
			// movement; skip without consuming the per-cycle cap.
			if next <= task.Progress {
				continue
			}

			var note *string
			if req.Note != nil {
				note = req.Note(task, next)
			}

			event, err := s.applyProgressEventTx(ctx, tx, task, next, req.Source, note)
			if err != nil {
				return err
			}
			created = append(created, event)
		}

		return nil
	})

	if err != nil {
		return nil, NewProgressServiceError("run_cycle", "telemetry cycle failed", err)
	}

	for _, event := range created {
		s.notify(ctx, event)
	}
	return created, nil
}

// ResetFromSeeds implements ProgressService.ResetFromSeeds
// Events are deleted before tasks to respect the cascade direction.
func (s *progressServiceImpl) ResetFromSeeds(
	ctx context.Context,
	seeds []config.SeedTask,
) ([]*domain.Task, error) {
	var seeded []*domain.Task

	err := s.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		taskStore := s.taskStore.WithTx(tx)
		eventStore := s.eventStore.WithTx(tx)

		if err := eventStore.DeleteAll(ctx); err != nil {
			return err
		}
		if err := taskStore.DeleteAll(ctx); err != nil {
			return err
		}

		for _, seed := range seeds {
			task, err := domain.NewTask(seed.Name, seed.Progress, seed.Description)
			if err != nil {
				return err
			}
			if err := taskStore.Create(ctx, task); err != nil {
				return err
			}
			seeded = append(seeded, task)
		}

		return nil
	})

	if err != nil {
		return nil, NewProgressServiceError("reset", "failed to reset tasks from seeds", err)
	}

	s.logger.Info("progress state reset from configuration",
		"seeded_tasks", len(seeded))
	if seeded == nil {
		seeded = []*domain.Task{}
	}
	return seeded, nil
}

// SeedTasks implements ProgressService.SeedTasks
func (s *progressServiceImpl) SeedTasks(ctx context.Context, seeds []config.SeedTask) error {
	err := s.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		taskStore := s.taskStore.WithTx(tx)

		for _, seed := range seeds {
			existing, err := taskStore.GetByName(ctx, seed.Name)
			if err == nil {
				existing.Progress = domain.ClampProgress(seed.Progress)
				if seed.Description != nil {
					existing.Description = seed.Description
				}
				if err := taskStore.Update(ctx, existing); err != nil {
					return err
				}
				continue
			}
			if !errors.Is(err, store.ErrTaskNotFound) {
				return err
			}

			task, err := domain.NewTask(seed.Name, seed.Progress, seed.Description)
			if err != nil {
				return err
			}
			if err := taskStore.Create(ctx, task); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return NewProgressServiceError("seed", "failed to seed tasks", err)
	}
	return nil
}

// ListTasks implements ProgressService.ListTasks
func (s *progressServiceImpl) ListTasks(ctx context.Context) ([]*domain.Task, error) {
	tasks, err := s.taskStore.List(ctx)
	if err != nil {
		return nil, NewProgressServiceError("list_tasks", "failed to list tasks", err)
	}
	return tasks, nil
}

// RecentEvents implements ProgressService.RecentEvents
func (s *progressServiceImpl) RecentEvents(ctx context.Context, limit int) ([]*domain.TaskEvent, error) {
	events, err := s.eventStore.ListRecent(ctx, limit)
	if err != nil {
		return nil, NewProgressServiceError("recent_events", "failed to list recent events", err)
	}
	return events, nil
}

// notify publishes an in-process notification for a committed event.
func (s *progressServiceImpl) notify(ctx context.Context, event *domain.TaskEvent) {
	if s.emitter == nil || event == nil {
		return
	}
	s.emitter.EmitProgressChanged(ctx, events.NewProgressChanged(
		event.TaskID,
		event.TaskName,
		event.Progress,
		event.Source,
	))
}
