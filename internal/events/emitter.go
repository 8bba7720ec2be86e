package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEmitter is a simple implementation of the Emitter interface
// that stores registered handlers in memory and dispatches
// notifications to them synchronously.
type InMemoryEmitter struct {
	handlers []Handler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewInMemoryEmitter creates a new instance of InMemoryEmitter.
func NewInMemoryEmitter(logger *slog.Logger) *InMemoryEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEmitter{
		handlers: make([]Handler, 0),
		logger:   logger.With("component", "progress_emitter"),
	}
}

// Ensure InMemoryEmitter implements Emitter
var _ Emitter = (*InMemoryEmitter)(nil)

// RegisterHandler adds a new handler to receive progress notifications.
func (e *InMemoryEmitter) RegisterHandler(handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered progress handler", "handler_count", len(e.handlers))
}

// EmitProgressChanged publishes the notification to all registered
// handlers. Handler failures are logged and do not stop delivery to the
// remaining handlers; notification is best-effort and never blocks the
// write path with an error.
func (e *InMemoryEmitter) EmitProgressChanged(ctx context.Context, event *ProgressChanged) {
	e.mu.RLock()
	handlers := make([]Handler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	for i, handler := range handlers {
		if err := handler.HandleProgressChanged(ctx, event); err != nil {
			e.logger.Error("handler failed to process progress notification",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"task_name", event.TaskName)
		}
	}
}

// LoggingHandler is the default observer: it records every committed
// progress change in the structured log.
type LoggingHandler struct {
	logger *slog.Logger
}

// NewLoggingHandler creates a LoggingHandler.
func NewLoggingHandler(logger *slog.Logger) *LoggingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingHandler{logger: logger.With("component", "progress_log")}
}

// Ensure LoggingHandler implements Handler
var _ Handler = (*LoggingHandler)(nil)

// HandleProgressChanged implements Handler.
func (h *LoggingHandler) HandleProgressChanged(_ context.Context, event *ProgressChanged) error {
	h.logger.Info("task progress changed",
		"task_id", event.TaskID,
		"task_name", event.TaskName,
		"progress", event.Progress,
		"source", event.Source)
	return nil
}
