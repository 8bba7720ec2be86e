package domain

import (
	"errors"
	"time"
)

// Well-known event sources. Callers may also supply free-form source
// tags; these constants cover the paths owned by this repository.
const (
	EventSourceAPI          = "api"
	EventSourceManualUpdate = "manual-update"
	EventSourceTelemetry    = "auto-telemetry"
)

// Common validation errors for TaskEvent
var (
	ErrEmptyEventTaskID = errors.New("task event task ID cannot be empty")
	ErrEmptyEventSource = errors.New("task event source cannot be empty")
)

// TaskEvent is an immutable record of a single progress observation for
// one task. Events are never updated after insertion; ordering for all
// derived computations is CreatedAt ascending with ID as tiebreak.
type TaskEvent struct {
	ID     int64 `json:"id"`
	TaskID int64 `json:"task_id"`
	// TaskName is resolved from the owning task on read paths. It is not
	// a column of task_events.
	TaskName  string    `json:"task_name,omitempty"`
	Progress  int       `json:"progress"`
	Source    string    `json:"source"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskEvent creates a TaskEvent for the given task with a clamped
// progress value. Returns an error if validation fails.
func NewTaskEvent(taskID int64, progress int, source string, note *string) (*TaskEvent, error) {
	event := &TaskEvent{
		TaskID:    taskID,
		Progress:  ClampProgress(progress),
		Source:    source,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}

	return event, nil
}

// Validate checks if the TaskEvent has valid data.
func (e *TaskEvent) Validate() error {
	if e.TaskID <= 0 {
		return ErrEmptyEventTaskID
	}
	if e.Source == "" {
		return ErrEmptyEventSource
	}
	return nil
}
