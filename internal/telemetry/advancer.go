// Package telemetry contains the background worker that keeps
// incomplete tasks moving forward on a fixed cadence, independent of
// any inbound request.
package telemetry

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/requiemhq/requiem-api/internal/config"
	"github.com/requiemhq/requiem-api/internal/domain"
	"github.com/requiemhq/requiem-api/internal/service"
)

// noteTimestampLayout matches the timestamp rendered into templated
// telemetry notes.
const noteTimestampLayout = "2006-01-02 15:04:05Z"

// Cycler is the slice of the progress service the advancer drives.
type Cycler interface {
	RunCycle(ctx context.Context, req service.CycleRequest) ([]*domain.TaskEvent, error)
}

// Advancer periodically nudges the least-recently-touched incomplete
// tasks forward. It runs at most one loop goroutine; Start when
// disabled or already running is a no-op, and Stop waits for any
// in-flight cycle before returning.
type Advancer struct {
	cfg    config.TelemetryConfig
	cycler Cycler
	logger *slog.Logger

	// timeFunc is injectable for testing templated notes.
	timeFunc func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewAdvancer creates an Advancer over the given cycler.
func NewAdvancer(cfg config.TelemetryConfig, cycler Cycler, logger *slog.Logger) *Advancer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Advancer{
		cfg:      cfg,
		cycler:   cycler,
		logger:   logger.With("component", "telemetry_advancer"),
		timeFunc: time.Now,
	}
}

// Start launches the background loop. It returns immediately; the loop
// runs until Stop is called.
func (a *Advancer) Start() {
	if !a.cfg.Enabled {
		a.logger.Info("telemetry advancer is disabled by configuration")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.running = true
	a.cancel = cancel
	a.done = make(chan struct{})

	a.logger.Info("starting telemetry advancer",
		"interval", a.cfg.Interval(),
		"max_tasks_per_cycle", a.cfg.MaxTasksPerCycle)

	go a.run(ctx, a.done)
}

// Stop signals cancellation and waits for the loop to drain, bounded by
// one interval plus a margin. Safe to call at any time, including
// before Start and more than once.
func (a *Advancer) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	cancel := a.cancel
	done := a.done
	a.running = false
	a.cancel = nil
	a.done = nil
	a.mu.Unlock()

	a.logger.Info("stopping telemetry advancer")
	cancel()

	select {
	case <-done:
	case <-time.After(a.cfg.Interval() + time.Second):
		a.logger.Warn("telemetry advancer did not drain before deadline")
	}
}

func (a *Advancer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// Re-check after waking so a Stop issued mid-sleep skips the
		// final tick.
		if ctx.Err() != nil {
			return
		}

		a.tick(ctx)
		timer.Reset(a.cfg.Interval())
	}
}

// tick performs one telemetry cycle. Failures are logged and swallowed;
// the loop never exits on error.
func (a *Advancer) tick(ctx context.Context) {
	created, err := a.cycler.RunCycle(ctx, service.CycleRequest{
		Source:   a.cfg.Source,
		MaxTasks: a.cfg.MaxTasksPerCycle,
		Step:     a.resolveStep,
		Note:     a.resolveNote,
	})
	if err != nil {
		a.logger.Error("telemetry cycle failed", "error", err)
		return
	}

	if len(created) == 0 {
		a.logger.Debug("telemetry cycle completed with no tasks updated")
		return
	}

	for _, event := range created {
		a.logger.Debug("telemetry advanced task",
			"task_name", event.TaskName,
			"progress", event.Progress,
			"source", event.Source)
	}
}

// resolveStep returns the per-task override step when configured, else
// the default step.
func (a *Advancer) resolveStep(task *domain.Task) int {
	if override, ok := a.cfg.TaskOverrides[task.Name]; ok {
		return override.Step
	}
	return a.cfg.DefaultStep
}

// resolveNote returns the per-task override note when configured and
// non-empty, else the note template with {task}, {timestamp} and
// {progress} substituted.
func (a *Advancer) resolveNote(task *domain.Task, next int) *string {
	if override, ok := a.cfg.TaskOverrides[task.Name]; ok && override.Note != "" {
		note := override.Note
		return &note
	}

	replacer := strings.NewReplacer(
		"{task}", task.Name,
		"{timestamp}", a.timeFunc().UTC().Format(noteTimestampLayout),
		"{progress}", strconv.Itoa(next),
	)
	note := replacer.Replace(a.cfg.NoteTemplate)
	return &note
}
