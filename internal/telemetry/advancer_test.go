package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/requiemhq/requiem-api/internal/config"
	"github.com/requiemhq/requiem-api/internal/domain"
	"github.com/requiemhq/requiem-api/internal/service"
)

// countingCycler records RunCycle invocations and can be told to fail.
type countingCycler struct {
	mu       sync.Mutex
	calls    int
	requests []service.CycleRequest
	err      error
}

func (c *countingCycler) RunCycle(
	ctx context.Context,
	req service.CycleRequest,
) ([]*domain.TaskEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	return nil, nil
}

func (c *countingCycler) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func testTelemetryConfig() config.TelemetryConfig {
	return config.TelemetryConfig{
		Enabled:          true,
		IntervalSeconds:  0.01,
		MaxTasksPerCycle: 1,
		Source:           "auto-telemetry",
		DefaultStep:      5,
		NoteTemplate:     "Automated telemetry pulse for {task} @ {timestamp}",
	}
}

func waitForCalls(t *testing.T, cycler *countingCycler, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cycler.Calls() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("cycler reached only %d of %d calls", cycler.Calls(), want)
}

func TestAdvancerDisabledStartIsNoOp(t *testing.T) {
	t.Parallel()

	cfg := testTelemetryConfig()
	cfg.Enabled = false
	cycler := &countingCycler{}

	advancer := NewAdvancer(cfg, cycler, nil)
	advancer.Start()
	defer advancer.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, cycler.Calls())
}

func TestAdvancerStopBeforeStartIsSafe(t *testing.T) {
	t.Parallel()

	advancer := NewAdvancer(testTelemetryConfig(), &countingCycler{}, nil)
	advancer.Stop()
	advancer.Stop()
}

func TestAdvancerTicksRepeatedly(t *testing.T) {
	t.Parallel()

	cycler := &countingCycler{}
	advancer := NewAdvancer(testTelemetryConfig(), cycler, nil)

	advancer.Start()
	defer advancer.Stop()

	waitForCalls(t, cycler, 3)
}

func TestAdvancerDoubleStartRunsOneLoop(t *testing.T) {
	t.Parallel()

	cycler := &countingCycler{}
	cfg := testTelemetryConfig()
	cfg.IntervalSeconds = 60

	advancer := NewAdvancer(cfg, cycler, nil)
	advancer.Start()
	advancer.Start()
	defer advancer.Stop()

	// Only the immediate first tick of a single loop should land.
	waitForCalls(t, cycler, 1)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, cycler.Calls())
}

func TestAdvancerSurvivesTickErrors(t *testing.T) {
	t.Parallel()

	cycler := &countingCycler{err: errors.New("store unavailable")}
	advancer := NewAdvancer(testTelemetryConfig(), cycler, nil)

	advancer.Start()
	defer advancer.Stop()

	// Every tick fails; the loop keeps scheduling the next one anyway.
	waitForCalls(t, cycler, 3)
}

func TestAdvancerStopWakesMidSleep(t *testing.T) {
	t.Parallel()

	cfg := testTelemetryConfig()
	cfg.IntervalSeconds = 60
	cycler := &countingCycler{}

	advancer := NewAdvancer(cfg, cycler, nil)
	advancer.Start()
	waitForCalls(t, cycler, 1)

	stopped := make(chan struct{})
	go func() {
		advancer.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return promptly while the loop was sleeping")
	}
}

func TestAdvancerRestartsAfterStop(t *testing.T) {
	t.Parallel()

	cycler := &countingCycler{}
	advancer := NewAdvancer(testTelemetryConfig(), cycler, nil)

	advancer.Start()
	waitForCalls(t, cycler, 1)
	advancer.Stop()

	before := cycler.Calls()
	advancer.Start()
	defer advancer.Stop()
	waitForCalls(t, cycler, before+1)
}

func TestResolveStep(t *testing.T) {
	t.Parallel()

	cfg := testTelemetryConfig()
	cfg.TaskOverrides = map[string]config.TaskOverride{
		"Deploy": {Step: 12},
	}
	advancer := NewAdvancer(cfg, &countingCycler{}, nil)

	assert.Equal(t, 12, advancer.resolveStep(&domain.Task{Name: "Deploy"}))
	assert.Equal(t, 5, advancer.resolveStep(&domain.Task{Name: "Test"}))
}

func TestResolveNote(t *testing.T) {
	t.Parallel()

	cfg := testTelemetryConfig()
	cfg.NoteTemplate = "pulse for {task} @ {timestamp} -> {progress}"
	cfg.TaskOverrides = map[string]config.TaskOverride{
		"Deploy": {Step: 12, Note: "deploy override"},
		"Silent": {Step: 3},
	}

	advancer := NewAdvancer(cfg, &countingCycler{}, nil)
	advancer.timeFunc = func() time.Time {
		return time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)
	}

	t.Run("override note wins", func(t *testing.T) {
		t.Parallel()
		note := advancer.resolveNote(&domain.Task{Name: "Deploy"}, 50)
		require.NotNil(t, note)
		assert.Equal(t, "deploy override", *note)
	})

	t.Run("empty override note falls back to template", func(t *testing.T) {
		t.Parallel()
		note := advancer.resolveNote(&domain.Task{Name: "Silent"}, 33)
		require.NotNil(t, note)
		assert.Equal(t, "pulse for Silent @ 2026-03-01 12:30:45Z -> 33", *note)
	})

	t.Run("template substitution", func(t *testing.T) {
		t.Parallel()
		note := advancer.resolveNote(&domain.Task{Name: "Test"}, 7)
		require.NotNil(t, note)
		assert.Equal(t, "pulse for Test @ 2026-03-01 12:30:45Z -> 7", *note)
	})
}

func TestTickRequestShape(t *testing.T) {
	t.Parallel()

	cycler := &countingCycler{}
	advancer := NewAdvancer(testTelemetryConfig(), cycler, nil)

	advancer.tick(context.Background())

	require.Len(t, cycler.requests, 1)
	req := cycler.requests[0]
	assert.Equal(t, "auto-telemetry", req.Source)
	assert.Equal(t, 1, req.MaxTasks)
	assert.NotNil(t, req.Step)
	assert.NotNil(t, req.Note)
}
