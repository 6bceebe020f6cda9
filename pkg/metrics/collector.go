package metrics

import (
	"context"
	"time"

	"github.com/collabboard/coordinator/pkg/types"
)

// TaskLister is the slice of the cache a Collector needs to produce
// per-column task counts. Satisfied by pkg/cache.Cache.
type TaskLister interface {
	ListAll(ctx context.Context) ([]*types.Task, error)
}

// PresenceLister is the slice of the presence registry a Collector needs.
// Satisfied by pkg/presence.Registry.
type PresenceLister interface {
	ListActive() []types.UserPresence
}

// QueueDepther reports how many durability jobs are pending. Satisfied by
// pkg/flush.Queue.
type QueueDepther interface {
	Depth() int
}

// Collector periodically samples board state and publishes it as gauges.
type Collector struct {
	tasks    TaskLister
	presence PresenceLister
	queue    QueueDepther
	stopCh   chan struct{}
}

// NewCollector creates a metrics collector over the given board state
// sources. Any of them may be nil to skip that sampling.
func NewCollector(tasks TaskLister, presence PresenceLister, queue QueueDepther) *Collector {
	return &Collector{
		tasks:    tasks,
		presence: presence,
		queue:    queue,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15 second interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectTaskMetrics()
	c.collectPresenceMetrics()
	c.collectQueueMetrics()
}

func (c *Collector) collectTaskMetrics() {
	if c.tasks == nil {
		return
	}
	tasks, err := c.tasks.ListAll(context.Background())
	if err != nil {
		return
	}

	counts := make(map[types.ColumnID]int)
	for _, task := range tasks {
		counts[task.ColumnID]++
	}

	for _, col := range []types.ColumnID{types.ColumnTodo, types.ColumnInProgress, types.ColumnDone} {
		TasksTotal.WithLabelValues(string(col)).Set(float64(counts[col]))
	}
}

func (c *Collector) collectPresenceMetrics() {
	if c.presence == nil {
		return
	}
	PresenceActive.Set(float64(len(c.presence.ListActive())))
}

func (c *Collector) collectQueueMetrics() {
	if c.queue == nil {
		return
	}
	FlushQueueDepth.Set(float64(c.queue.Depth()))
}
