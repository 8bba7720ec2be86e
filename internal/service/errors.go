package service

import (
	"errors"
	"fmt"

	"github.com/requiemhq/requiem-api/internal/store"
)

// Common sentinel errors for the progress service
var (
	// ErrTaskNotFound indicates that the requested task does not exist.
	// Returned for explicit id-based requests; name-based paths create
	// the task instead of failing.
	ErrTaskNotFound = errors.New("task not found")
)

// ProgressServiceError wraps errors from the progress service with context.
type ProgressServiceError struct {
	// Operation is the operation that failed (e.g., "apply_event", "reset")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ProgressServiceError.
func (e *ProgressServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("progress service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("progress service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ProgressServiceError) Unwrap() error {
	return e.Err
}

// NewProgressServiceError creates a new ProgressServiceError.
// It maps known store-level sentinels to service-level ones and returns
// them directly without wrapping.
func NewProgressServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrTaskNotFound) {
		return ErrTaskNotFound
	}

	if errors.Is(err, store.ErrTaskNotFound) {
		return ErrTaskNotFound
	}

	return &ProgressServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
