// Package analytics derives point-in-time rollups from the task set and
// the progress event log. Everything here is read-only; computation is
// pure so it can be exercised without a database and reused by both the
// report endpoint and the metrics collector.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/requiemhq/requiem-api/internal/domain"
	"github.com/requiemhq/requiem-api/internal/service"
	"github.com/requiemhq/requiem-api/internal/store"
)

// TaskSummary is the per-task slice of a Summary.
type TaskSummary struct {
	Name            string     `json:"name"`
	Progress        int        `json:"progress"`
	Completed       bool       `json:"completed"`
	EventsCount     int        `json:"events_count"`
	LastEventAt     *time.Time `json:"last_event_at,omitempty"`
	LastEventSource *string    `json:"last_event_source,omitempty"`
	LastEventNote   *string    `json:"last_event_note,omitempty"`

	// SecondsToCompletion is the elapsed time between a task's first
	// event and its first completing event. A completed task with no
	// events reports 0.0; nil means the task has not completed.
	SecondsToCompletion *float64 `json:"seconds_to_completion,omitempty"`
}

// Summary is an immutable snapshot of the whole system's progress state.
type Summary struct {
	TasksTotal      int     `json:"tasks_total"`
	TasksCompleted  int     `json:"tasks_completed"`
	TasksInProgress int     `json:"tasks_in_progress"`
	TasksNotStarted int     `json:"tasks_not_started"`
	OverallProgress float64 `json:"overall_progress"`

	EventsTotal    int            `json:"events_total"`
	EventsBySource map[string]int `json:"events_by_source"`
	LastEventAt    *time.Time     `json:"last_event_at,omitempty"`

	AverageCompletionSeconds *float64 `json:"average_completion_seconds,omitempty"`

	PerTask []TaskSummary `json:"per_task"`
}

// Compute builds a Summary from the full task and event sets. Events
// may arrive in any order; they are grouped per task and sorted by
// created_at with id as tiebreak before derivation.
func Compute(tasks []*domain.Task, events []*domain.TaskEvent) Summary {
	grouped := groupEventsByTask(events)

	eventsBySource := make(map[string]int)
	var lastEventAt *time.Time
	for _, event := range events {
		eventsBySource[event.Source]++
		if lastEventAt == nil || event.CreatedAt.After(*lastEventAt) {
			at := event.CreatedAt
			lastEventAt = &at
		}
	}

	perTask := make([]TaskSummary, 0, len(tasks))
	tasksCompleted := 0
	tasksInProgress := 0
	var completionValues []float64

	for _, task := range tasks {
		summary := buildTaskSummary(task, grouped[task.ID])
		perTask = append(perTask, summary)

		if task.Completed() {
			tasksCompleted++
		} else if task.Started() {
			tasksInProgress++
		}
		if summary.SecondsToCompletion != nil {
			completionValues = append(completionValues, *summary.SecondsToCompletion)
		}
	}

	var averageCompletion *float64
	if len(completionValues) > 0 {
		total := 0.0
		for _, value := range completionValues {
			total += value
		}
		avg := total / float64(len(completionValues))
		averageCompletion = &avg
	}

	return Summary{
		TasksTotal:      len(tasks),
		TasksCompleted:  tasksCompleted,
		TasksInProgress: tasksInProgress,
		// Derived by subtraction so the three buckets always sum to the
		// total.
		TasksNotStarted: len(tasks) - tasksCompleted - tasksInProgress,
		OverallProgress: service.OverallProgress(tasks),

		EventsTotal:    len(events),
		EventsBySource: eventsBySource,
		LastEventAt:    lastEventAt,

		AverageCompletionSeconds: averageCompletion,

		PerTask: perTask,
	}
}

func groupEventsByTask(events []*domain.TaskEvent) map[int64][]*domain.TaskEvent {
	grouped := make(map[int64][]*domain.TaskEvent)
	for _, event := range events {
		grouped[event.TaskID] = append(grouped[event.TaskID], event)
	}
	for _, group := range grouped {
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].ID < group[j].ID
			}
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		})
	}
	return grouped
}

func buildTaskSummary(task *domain.Task, events []*domain.TaskEvent) TaskSummary {
	summary := TaskSummary{
		Name:                task.Name,
		Progress:            task.Progress,
		Completed:           task.Completed(),
		EventsCount:         len(events),
		SecondsToCompletion: secondsToCompletion(task, events),
	}

	if len(events) > 0 {
		last := events[len(events)-1]
		at := last.CreatedAt
		source := last.Source
		summary.LastEventAt = &at
		summary.LastEventSource = &source
		summary.LastEventNote = last.Note
	}

	return summary
}

func secondsToCompletion(task *domain.Task, events []*domain.TaskEvent) *float64 {
	if len(events) == 0 {
		if task.Completed() {
			zero := 0.0
			return &zero
		}
		return nil
	}

	for _, event := range events {
		if event.Progress >= domain.ProgressMax {
			seconds := event.CreatedAt.Sub(events[0].CreatedAt).Seconds()
			return &seconds
		}
	}
	return nil
}

// Service fetches the full task and event sets and computes a Summary.
// It holds only read-side store handles and never opens a write
// transaction.
type Service struct {
	taskStore  store.TaskStore
	eventStore store.TaskEventStore
}

// NewService creates an analytics Service over the given stores.
func NewService(taskStore store.TaskStore, eventStore store.TaskEventStore) *Service {
	return &Service{taskStore: taskStore, eventStore: eventStore}
}

// Summarize computes a fresh Summary from current store state.
func (s *Service) Summarize(ctx context.Context) (Summary, error) {
	tasks, err := s.taskStore.List(ctx)
	if err != nil {
		return Summary{}, err
	}

	events, err := s.eventStore.List(ctx)
	if err != nil {
		return Summary{}, err
	}

	return Compute(tasks, events), nil
}
