/*
Package cache is the coordinator's authoritative, in-memory view of the
board: every task currently on any column, kept warm so reads never touch
durable storage. A write updates the task record and its column/global
set indices atomically; a 1-hour sliding TTL protects against a board
that's simply gone cold rather than one that's actively serving writes.

MemCache is the default, process-local implementation. RedisCache backs
the same interface with an external store, for a coordinator deployment
that wants cache state to survive a process restart or be shared across
replicas.
*/
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/collabboard/coordinator/pkg/types"
)

// TTL is the sliding expiry applied to the board's cache entries on every
// write (Put); reads do not extend it. A task not written for this long
// is considered cold and its entry may be evicted.
const TTL = time.Hour

// Cache is the authoritative read/write surface the rest of the
// coordinator uses for task state. All methods are safe for concurrent
// use.
type Cache interface {
	// Put atomically upserts a task into its column's index and the
	// global index, refreshing TTL.
	Put(ctx context.Context, task *types.Task) error

	// Delete atomically removes a task from every index it appears in.
	Delete(ctx context.Context, columnID types.ColumnID, taskID string) error

	// Get returns a task by id, or ok=false if absent or expired.
	Get(ctx context.Context, taskID string) (task *types.Task, ok bool, err error)

	// ListColumn returns every task currently indexed under columnID, in
	// no particular order; callers sort by Order themselves.
	ListColumn(ctx context.Context, columnID types.ColumnID) ([]*types.Task, error)

	// ListAll returns every task across every column.
	ListAll(ctx context.Context) ([]*types.Task, error)
}

// MemCache is a process-local Cache backed by maps guarded by a mutex,
// with a secondary index per column for ListColumn.
type MemCache struct {
	mu      sync.RWMutex
	tasks   map[string]*entry
	columns map[types.ColumnID]map[string]struct{}
}

type entry struct {
	task      *types.Task
	expiresAt time.Time
}

// NewMemCache returns an empty in-memory cache.
func NewMemCache() *MemCache {
	return &MemCache{
		tasks:   make(map[string]*entry),
		columns: make(map[types.ColumnID]map[string]struct{}),
	}
}

func (c *MemCache) Put(_ context.Context, task *types.Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.tasks[task.ID]; ok && existing.task.ColumnID != task.ColumnID {
		c.removeFromColumnLocked(existing.task.ColumnID, task.ID)
	}

	c.tasks[task.ID] = &entry{task: task.Copy(), expiresAt: time.Now().Add(TTL)}

	set, ok := c.columns[task.ColumnID]
	if !ok {
		set = make(map[string]struct{})
		c.columns[task.ColumnID] = set
	}
	set[task.ID] = struct{}{}

	return nil
}

func (c *MemCache) Delete(_ context.Context, columnID types.ColumnID, taskID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.tasks, taskID)
	c.removeFromColumnLocked(columnID, taskID)
	return nil
}

func (c *MemCache) removeFromColumnLocked(columnID types.ColumnID, taskID string) {
	set, ok := c.columns[columnID]
	if !ok {
		return
	}
	delete(set, taskID)
	if len(set) == 0 {
		delete(c.columns, columnID)
	}
}

func (c *MemCache) Get(_ context.Context, taskID string) (*types.Task, bool, error) {
	c.mu.RLock()
	e, ok := c.tasks[taskID]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	return e.task.Copy(), true, nil
}

func (c *MemCache) ListColumn(_ context.Context, columnID types.ColumnID) ([]*types.Task, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	ids := c.columns[columnID]
	tasks := make([]*types.Task, 0, len(ids))
	for id := range ids {
		if e, ok := c.tasks[id]; ok && now.Before(e.expiresAt) {
			tasks = append(tasks, e.task.Copy())
		}
	}
	return tasks, nil
}

func (c *MemCache) ListAll(_ context.Context) ([]*types.Task, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	tasks := make([]*types.Task, 0, len(c.tasks))
	for _, e := range c.tasks {
		if now.Before(e.expiresAt) {
			tasks = append(tasks, e.task.Copy())
		}
	}
	return tasks, nil
}

// EvictExpired drops every entry whose TTL has elapsed. Nothing in the
// coordinator calls it on a schedule; Get, ListColumn and ListAll already
// skip expired entries, but they stay in memory until this runs.
func (c *MemCache) EvictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, e := range c.tasks {
		if now.After(e.expiresAt) {
			delete(c.tasks, id)
			c.removeFromColumnLocked(e.task.ColumnID, id)
		}
	}
}
