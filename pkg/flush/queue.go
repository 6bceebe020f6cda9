/*
Package flush implements the coordinator's write-behind durability queue.
Every mutation the task service applies to the cache is also queued here
for a delayed, deduplicated write to durable storage: if the same task is
upserted several times, each within FlushDelay of the previous enqueue,
only the last version is ever written,
and a flush that fails is retried with exponential backoff instead of
dropping the write on the floor.
*/
package flush

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/collabboard/coordinator/pkg/cache"
	"github.com/collabboard/coordinator/pkg/durable"
	"github.com/collabboard/coordinator/pkg/log"
	"github.com/collabboard/coordinator/pkg/metrics"
	"github.com/collabboard/coordinator/pkg/order"
	"github.com/collabboard/coordinator/pkg/types"
)

// FlushDelay is how long a job sits in the queue, debouncing further
// writes to the same key, before it becomes eligible to run.
const FlushDelay = 500 * time.Millisecond

// Workers is the number of goroutines draining the queue concurrently.
const Workers = 5

// MaxAttempts is the total number of attempts (the first run plus
// retries) a failing job gets before it is dropped and counted as a
// durable failure.
const MaxAttempts = 5

// JobKind identifies the durable operation a queued job performs.
type JobKind string

const (
	JobUpsert    JobKind = "upsert"
	JobDelete    JobKind = "delete"
	JobRebalance JobKind = "rebalance"
)

// Job is one unit of deferred durable work. ID is deterministic per
// logical target (task or column) so that enqueuing the same target
// again collapses into the existing, not-yet-run job rather than
// queuing a duplicate write. Jobs carry no snapshot of the data they'll
// act on: apply always re-reads the cache's current state for TaskID/
// ColumnID at execution time, so a job that waited out its debounce
// window (or was retried) never clobbers a newer write with stale data.
type Job struct {
	ID       string
	Kind     JobKind
	TaskID   string         // set for JobUpsert, JobDelete
	ColumnID types.ColumnID // set for JobDelete, JobRebalance
	ready    time.Time
	attempt  int
}

func upsertJobID(taskID string) string         { return fmt.Sprintf("task_%s", taskID) }
func rebalanceJobID(col types.ColumnID) string { return fmt.Sprintf("rebalance_%s", col) }

// Queue is the debounced write-behind durability queue. It holds at most
// one pending job per id: re-enqueuing the same id replaces the pending
// job and pushes its ready time out another FlushDelay.
type Queue struct {
	store  durable.Store
	cache  cache.Cache
	logger zerolog.Logger

	mu      sync.Mutex
	pending map[string]*Job

	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewQueue creates a queue that drains into store, reading current task
// state from c at execution time.
func NewQueue(store durable.Store, c cache.Cache) *Queue {
	return &Queue{
		store:   store,
		cache:   c,
		logger:  log.WithComponent("flush"),
		pending: make(map[string]*Job),
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// EnqueueUpsert schedules taskID to be durably upserted, collapsing with
// any already-pending upsert for the same task. The value written is
// whatever the cache holds for taskID when the job actually runs, not a
// snapshot taken now.
func (q *Queue) EnqueueUpsert(taskID string) {
	q.enqueue(&Job{
		ID:     upsertJobID(taskID),
		Kind:   JobUpsert,
		TaskID: taskID,
	})
}

// EnqueueDelete schedules a task for durable deletion.
func (q *Queue) EnqueueDelete(columnID types.ColumnID, taskID string) {
	q.enqueue(&Job{
		ID:       upsertJobID(taskID),
		Kind:     JobDelete,
		TaskID:   taskID,
		ColumnID: columnID,
	})
}

// EnqueueRebalance schedules columnID's tasks to be recomputed and
// written with fresh, evenly spaced Order values. The recompute itself
// (read, sort, reassign, write back to cache) happens inside apply, not
// here, so it runs exactly once per collapsed job instead of racing
// whatever caller happened to detect the exhausted gap.
func (q *Queue) EnqueueRebalance(columnID types.ColumnID) {
	q.enqueue(&Job{
		ID:       rebalanceJobID(columnID),
		Kind:     JobRebalance,
		ColumnID: columnID,
	})
}

func (q *Queue) enqueue(job *Job) {
	job.ready = time.Now().Add(FlushDelay)

	q.mu.Lock()
	q.pending[job.ID] = job
	depth := len(q.pending)
	q.mu.Unlock()

	metrics.FlushQueueDepth.Set(float64(depth))

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Depth returns the number of distinct jobs currently pending.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Start begins the worker pool draining the queue.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go q.dispatchLoop(ctx)
}

// Stop signals the dispatch loop and workers to shut down and waits for
// in-flight jobs to finish.
func (q *Queue) Stop() {
	close(q.stopCh)
	q.wg.Wait()
}

// Drain forces every currently pending job to run immediately, ignoring
// its debounce window, and blocks until they complete or ctx expires.
// Intended for graceful shutdown: run before Stop so a bounded shutdown
// window still gets pending mutations onto durable storage instead of
// discarding up to FlushDelay worth of writes.
func (q *Queue) Drain(ctx context.Context) {
	q.mu.Lock()
	jobs := make([]*Job, 0, len(q.pending))
	for id, job := range q.pending {
		jobs = append(jobs, job)
		delete(q.pending, id)
	}
	q.mu.Unlock()

	metrics.FlushQueueDepth.Set(0)

	var wg sync.WaitGroup
	for _, job := range jobs {
		job := job
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.runJob(ctx, job)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// dispatchLoop periodically pulls ready jobs off the pending map and
// hands them to the worker pool.
func (q *Queue) dispatchLoop(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(FlushDelay / 2)
	defer ticker.Stop()

	jobs := make(chan *Job, Workers*4)
	var workerWG sync.WaitGroup
	for i := 0; i < Workers; i++ {
		workerWG.Add(1)
		go q.worker(ctx, jobs, &workerWG)
	}

	for {
		select {
		case <-ticker.C:
			q.dispatchReady(jobs)
		case <-q.wake:
			q.dispatchReady(jobs)
		case <-q.stopCh:
			close(jobs)
			workerWG.Wait()
			return
		case <-ctx.Done():
			close(jobs)
			workerWG.Wait()
			return
		}
	}
}

func (q *Queue) dispatchReady(jobs chan<- *Job) {
	now := time.Now()

	q.mu.Lock()
	var ready []*Job
	for id, job := range q.pending {
		if now.After(job.ready) || now.Equal(job.ready) {
			ready = append(ready, job)
			delete(q.pending, id)
		}
	}
	depth := len(q.pending)
	q.mu.Unlock()

	metrics.FlushQueueDepth.Set(float64(depth))

	for _, job := range ready {
		jobs <- job
	}
}

func (q *Queue) worker(ctx context.Context, jobs <-chan *Job, wg *sync.WaitGroup) {
	defer wg.Done()

	for job := range jobs {
		q.runJob(ctx, job)
	}
}

func (q *Queue) runJob(ctx context.Context, job *Job) {
	timer := metrics.NewTimer()
	err := q.apply(job)
	timer.ObserveDuration(metrics.FlushDuration)

	if err == nil {
		return
	}

	job.attempt++
	if job.attempt >= MaxAttempts {
		metrics.FlushFailuresTotal.Inc()
		q.logger.Error().
			Err(err).
			Str("job_id", job.ID).
			Int("attempt", job.attempt).
			Msg("durability job exhausted retries, dropping")
		return
	}

	metrics.FlushRetriesTotal.Inc()
	backoff := time.Duration(1<<uint(job.attempt)) * 100 * time.Millisecond
	q.logger.Warn().
		Err(err).
		Str("job_id", job.ID).
		Int("attempt", job.attempt).
		Dur("backoff", backoff).
		Msg("durability job failed, will retry")

	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return
	}

	job.ready = time.Now()
	q.mu.Lock()
	if _, ok := q.pending[job.ID]; !ok {
		// Only reinsert if nothing fresher was enqueued while we backed off;
		// a newer enqueue already carries this job's data forward.
		q.pending[job.ID] = job
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) apply(job *Job) error {
	ctx := context.Background()

	switch job.Kind {
	case JobUpsert:
		current, ok, err := q.cache.Get(ctx, job.TaskID)
		if err != nil {
			return fmt.Errorf("read current task %s: %w", job.TaskID, err)
		}
		if !ok {
			// Deleted (or never created) by the time this job ran; nothing
			// to persist. A colliding JobDelete would normally have
			// replaced this job outright, so this is just a safety net.
			return nil
		}
		return q.store.PutTask(current)
	case JobDelete:
		return q.store.DeleteTask(job.TaskID)
	case JobRebalance:
		return q.applyRebalance(ctx, job.ColumnID)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

// applyRebalance re-reads columnID's current tasks, assigns fresh evenly
// spaced Order values, and writes each one back to both the cache and
// durable storage. Running this at execution time (rather than at
// enqueue time in the caller) means the column-wide mutation is
// serialized by this job's single id instead of racing an independent
// upsert for one of the same tasks.
func (q *Queue) applyRebalance(ctx context.Context, columnID types.ColumnID) error {
	tasks, err := q.cache.ListColumn(ctx, columnID)
	if err != nil {
		return fmt.Errorf("rebalance column %s: read: %w", columnID, err)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Order < tasks[j].Order })

	keys := order.Rebalanced(len(tasks))
	for i, t := range tasks {
		t.Order = keys[i]
		if err := q.cache.Put(ctx, t); err != nil {
			return fmt.Errorf("rebalance column %s: write cache: %w", columnID, err)
		}
		if err := q.store.PutTask(t); err != nil {
			return fmt.Errorf("rebalance column %s: write durable: %w", columnID, err)
		}
	}

	log.WithColumnID(string(columnID)).Debug().Int("tasks", len(tasks)).Msg("rebalanced column orders")
	return nil
}
