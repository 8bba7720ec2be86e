package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProgressChanged is an in-process notification that a progress event
// was committed for a task. It mirrors the durable TaskEvent row but is
// delivered to in-memory observers (logging, future cache/webhook
// fan-out) without a database read.
type ProgressChanged struct {
	// ID is a unique identifier for this notification
	ID uuid.UUID `json:"id"`

	// TaskID and TaskName identify the task whose snapshot changed
	TaskID   int64  `json:"task_id"`
	TaskName string `json:"task_name"`

	// Progress is the new snapshot value
	Progress int `json:"progress"`

	// Source is the event source tag ("api", "manual-update", ...)
	Source string `json:"source"`

	// OccurredAt is the commit time of the underlying event
	OccurredAt time.Time `json:"occurred_at"`
}

// NewProgressChanged creates a notification for a committed progress event.
func NewProgressChanged(taskID int64, taskName string, progress int, source string) *ProgressChanged {
	return &ProgressChanged{
		ID:         uuid.New(),
		TaskID:     taskID,
		TaskName:   taskName,
		Progress:   progress,
		Source:     source,
		OccurredAt: time.Now().UTC(),
	}
}

// Handler defines an interface for components that observe progress
// notifications. Handlers must not mutate task state; the progress
// service is the sole writer.
type Handler interface {
	// HandleProgressChanged processes the given notification.
	// Returns an error if the notification cannot be handled.
	HandleProgressChanged(ctx context.Context, event *ProgressChanged) error
}

// Emitter defines an interface for components that publish progress
// notifications. This lets the service layer notify observers without
// direct knowledge of them.
type Emitter interface {
	// EmitProgressChanged publishes the notification to all registered handlers.
	EmitProgressChanged(ctx context.Context, event *ProgressChanged)
}
