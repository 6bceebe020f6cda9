package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Board state metrics
	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "board_tasks_total",
			Help: "Total number of tasks by column",
		},
		[]string{"column"},
	)

	PresenceActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "board_presence_active",
			Help: "Number of currently connected users",
		},
	)

	// Mutation metrics
	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_mutations_total",
			Help: "Total number of task mutations by operation and status",
		},
		[]string{"operation", "status"},
	)

	MutationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "board_mutation_duration_seconds",
			Help:    "Time taken to apply a task mutation in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Conflict metrics
	ConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_conflicts_total",
			Help: "Total number of resolved conflicts by kind",
		},
		[]string{"kind"},
	)

	LockContentionTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "board_lock_contention_total",
			Help: "Total number of failed lock acquisitions on a task move",
		},
	)

	// Durability queue metrics
	FlushQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "board_flush_queue_depth",
			Help: "Current number of pending write-behind jobs",
		},
	)

	FlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "board_flush_duration_seconds",
			Help:    "Time taken to flush a durability job in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FlushRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "board_flush_retries_total",
			Help: "Total number of durability job retries",
		},
	)

	FlushFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "board_flush_failures_total",
			Help: "Total number of durability jobs that exhausted their retries",
		},
	)

	// Transport metrics
	ConnectionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "board_connections_total",
			Help: "Number of currently open websocket connections",
		},
	)

	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_events_total",
			Help: "Total number of events handled by type and status",
		},
		[]string{"type", "status"},
	)

	EventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "board_event_duration_seconds",
			Help:    "Time taken to handle an event in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(PresenceActive)
	prometheus.MustRegister(MutationsTotal)
	prometheus.MustRegister(MutationDuration)
	prometheus.MustRegister(ConflictsTotal)
	prometheus.MustRegister(LockContentionTotal)
	prometheus.MustRegister(FlushQueueDepth)
	prometheus.MustRegister(FlushDuration)
	prometheus.MustRegister(FlushRetriesTotal)
	prometheus.MustRegister(FlushFailuresTotal)
	prometheus.MustRegister(ConnectionsTotal)
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(EventDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
