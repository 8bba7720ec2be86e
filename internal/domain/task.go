package domain

import (
	"errors"
	"strings"
	"time"
)

// Progress bounds for a task. Every stored progress value is clamped
// into this range before it touches the database.
const (
	ProgressMin = 0
	ProgressMax = 100
)

// Common validation errors for Task
var (
	ErrEmptyTaskName = errors.New("task name cannot be empty")
)

// Task is a named unit of tracked progress. The Progress field is the
// current snapshot value; the full history lives in task_events.
type Task struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Progress    int       `json:"progress"`
	Description *string   `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTask creates a Task with the given name and initial progress.
// The progress value is clamped to [ProgressMin, ProgressMax].
// Returns an error if validation fails.
func NewTask(name string, progress int, description *string) (*Task, error) {
	task := &Task{
		Name:        strings.TrimSpace(name),
		Progress:    ClampProgress(progress),
		Description: description,
		UpdatedAt:   time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyTaskName
	}
	return nil
}

// Completed reports whether the task has reached full progress.
func (t *Task) Completed() bool {
	return t.Progress >= ProgressMax
}

// Started reports whether the task has any recorded progress.
func (t *Task) Started() bool {
	return t.Progress > ProgressMin
}

// SetProgress clamps and applies a new progress value, refreshing the
// UpdatedAt timestamp.
func (t *Task) SetProgress(value int) {
	t.Progress = ClampProgress(value)
	t.UpdatedAt = time.Now().UTC()
}

// ClampProgress bounds a raw progress value to [ProgressMin, ProgressMax].
func ClampProgress(value int) int {
	if value < ProgressMin {
		return ProgressMin
	}
	if value > ProgressMax {
		return ProgressMax
	}
	return value
}
