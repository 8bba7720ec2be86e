package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric namespace shared by every exported series.
const metricNamespace = "requiem"

// Summarizer is the slice of the analytics service the collector needs.
type Summarizer interface {
	Summarize(ctx context.Context) (Summary, error)
}

// Collector exposes analytics rollups as Prometheus metrics. A fresh
// Summary is computed at scrape time so the exposition always reflects
// current store state; nothing is cached between scrapes.
type Collector struct {
	summarizer    Summarizer
	logger        *slog.Logger
	scrapeTimeout time.Duration

	tasksTotal      *prometheus.Desc
	tasksCompleted  *prometheus.Desc
	tasksInProgress *prometheus.Desc
	tasksNotStarted *prometheus.Desc
	overallProgress *prometheus.Desc

	eventsTotal    *prometheus.Desc
	eventsBySource *prometheus.Desc

	averageCompletionSeconds *prometheus.Desc

	taskProgress          *prometheus.Desc
	taskEvents            *prometheus.Desc
	taskCompletionSeconds *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a Collector over the given summarizer.
func NewCollector(summarizer Summarizer, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	return &Collector{
		summarizer:    summarizer,
		logger:        logger.With("component", "analytics_collector"),
		scrapeTimeout: 10 * time.Second,

		tasksTotal: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "tasks_total"),
			"Total number of tasks tracked.",
			nil, nil),
		tasksCompleted: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "tasks_completed"),
			"Number of tasks completed (progress == 100).",
			nil, nil),
		tasksInProgress: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "tasks_in_progress"),
			"Tasks with a non-zero, non-complete progress value.",
			nil, nil),
		tasksNotStarted: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "tasks_not_started"),
			"Tasks that have not started yet.",
			nil, nil),
		overallProgress: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "overall_progress"),
			"Average progress percentage across all tasks.",
			nil, nil),

		eventsTotal: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "events_total"),
			"Total progress events recorded.",
			nil, nil),
		eventsBySource: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "events_by_source"),
			"Progress events recorded, grouped by source tag.",
			[]string{"source"}, nil),

		averageCompletionSeconds: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "average_completion_seconds"),
			"Average seconds to completion for completed tasks.",
			nil, nil),

		taskProgress: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "task_progress"),
			"Current progress value per task.",
			[]string{"task"}, nil),
		taskEvents: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "task_events"),
			"Recorded events per task.",
			[]string{"task"}, nil),
		taskCompletionSeconds: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "task_completion_seconds"),
			"Seconds from first event to first completing event, per completed task.",
			[]string{"task"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tasksTotal
	ch <- c.tasksCompleted
	ch <- c.tasksInProgress
	ch <- c.tasksNotStarted
	ch <- c.overallProgress
	ch <- c.eventsTotal
	ch <- c.eventsBySource
	ch <- c.averageCompletionSeconds
	ch <- c.taskProgress
	ch <- c.taskEvents
	ch <- c.taskCompletionSeconds
}

// Collect implements prometheus.Collector. A failed summary computation
// is logged and yields an empty scrape rather than a panic.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.scrapeTimeout)
	defer cancel()

	summary, err := c.summarizer.Summarize(ctx)
	if err != nil {
		c.logger.Error("failed to compute analytics for scrape", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(
		c.tasksTotal, prometheus.GaugeValue, float64(summary.TasksTotal))
	ch <- prometheus.MustNewConstMetric(
		c.tasksCompleted, prometheus.GaugeValue, float64(summary.TasksCompleted))
	ch <- prometheus.MustNewConstMetric(
		c.tasksInProgress, prometheus.GaugeValue, float64(summary.TasksInProgress))
	ch <- prometheus.MustNewConstMetric(
		c.tasksNotStarted, prometheus.GaugeValue, float64(summary.TasksNotStarted))
	ch <- prometheus.MustNewConstMetric(
		c.overallProgress, prometheus.GaugeValue, summary.OverallProgress)

	ch <- prometheus.MustNewConstMetric(
		c.eventsTotal, prometheus.CounterValue, float64(summary.EventsTotal))
	for source, count := range summary.EventsBySource {
		ch <- prometheus.MustNewConstMetric(
			c.eventsBySource, prometheus.CounterValue, float64(count), source)
	}

	if summary.AverageCompletionSeconds != nil {
		ch <- prometheus.MustNewConstMetric(
			c.averageCompletionSeconds, prometheus.GaugeValue,
			*summary.AverageCompletionSeconds)
	}

	for _, task := range summary.PerTask {
		ch <- prometheus.MustNewConstMetric(
			c.taskProgress, prometheus.GaugeValue, float64(task.Progress), task.Name)
		ch <- prometheus.MustNewConstMetric(
			c.taskEvents, prometheus.CounterValue, float64(task.EventsCount), task.Name)
		if task.SecondsToCompletion != nil {
			ch <- prometheus.MustNewConstMetric(
				c.taskCompletionSeconds, prometheus.GaugeValue,
				*task.SecondsToCompletion, task.Name)
		}
	}
}
