/*
Package metrics provides Prometheus metrics collection and exposition for
the board coordinator.

All metrics are registered at package init against the default Prometheus
registry and exposed for scraping via Handler(), mounted at /metrics by
pkg/api.

# Metrics Catalog

Board state:

	board_tasks_total{column}       Gauge   task count per column
	board_presence_active           Gauge   currently connected users

Mutations:

	board_mutations_total{operation,status}      Counter   create/update/move/delete outcomes
	board_mutation_duration_seconds{operation}   Histogram time to apply a mutation

Conflicts:

	board_conflicts_total{kind}          Counter   resolved conflicts by kind
	board_lock_contention_total          Counter   failed move-lock acquisitions

Durability queue:

	board_flush_queue_depth              Gauge     pending write-behind jobs
	board_flush_duration_seconds         Histogram time to flush a job
	board_flush_retries_total            Counter   job retries
	board_flush_failures_total           Counter   jobs that exhausted retries

Transport:

	board_connections_total              Gauge     open websocket connections
	board_events_total{type,status}      Counter   events handled by type and status
	board_event_duration_seconds{type}   Histogram time to handle an event

# Usage

	timer := metrics.NewTimer()
	// ... apply mutation ...
	timer.ObserveDurationVec(metrics.MutationDuration, "move")

	metrics.MutationsTotal.WithLabelValues("move", "ok").Inc()
	metrics.TasksTotal.WithLabelValues("todo").Set(12)

Timer wraps the start-observe pattern used throughout the coordinator:
construct it when an operation begins, call ObserveDuration or
ObserveDurationVec when it ends.

# Integration Points

  - pkg/coordinator: periodic Collector samples board/queue/presence gauges
  - pkg/router: records event counters/histograms (board_mutations_total
    and board_mutation_duration_seconds are registered, but nothing in
    the coordinator records them)
  - pkg/flush: records queue depth and retry/failure counters
  - pkg/api: serves /metrics, /health, /ready
*/
package metrics
