package flush

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/collabboard/coordinator/pkg/cache"
	"github.com/collabboard/coordinator/pkg/types"
)

type fakeStore struct {
	mu       sync.Mutex
	puts     map[string]*types.Task
	deletes  map[string]bool
	putCalls int
	failNext int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		puts:    make(map[string]*types.Task),
		deletes: make(map[string]bool),
	}
}

func (f *fakeStore) PutTask(task *types.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if f.failNext > 0 {
		f.failNext--
		return errors.New("simulated failure")
	}
	f.puts[task.ID] = task.Copy()
	return nil
}

func (f *fakeStore) DeleteTask(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes[id] = true
	delete(f.puts, id)
	return nil
}

func (f *fakeStore) GetTask(id string) (*types.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.puts[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return t, nil
}

func (f *fakeStore) ListTasks() ([]*types.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Task
	for _, t := range f.puts {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) Close() error { return nil }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestQueueUpsertEventuallyFlushes(t *testing.T) {
	store := newFakeStore()
	c := cache.NewMemCache()
	q := NewQueue(store, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	task := &types.Task{ID: "t1", ColumnID: types.ColumnTodo, Title: "a"}
	if err := c.Put(ctx, task); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	q.EnqueueUpsert(task.ID)

	waitFor(t, 2*time.Second, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		_, ok := store.puts["t1"]
		return ok
	})
}

func TestQueueCollapsesRepeatedUpserts(t *testing.T) {
	store := newFakeStore()
	c := cache.NewMemCache()
	q := NewQueue(store, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	for i := 0; i < 5; i++ {
		task := &types.Task{ID: "t1", ColumnID: types.ColumnTodo, Title: "a", Version: i}
		if err := c.Put(ctx, task); err != nil {
			t.Fatalf("seed cache: %v", err)
		}
		q.EnqueueUpsert(task.ID)
	}

	waitFor(t, 2*time.Second, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		t, ok := store.puts["t1"]
		return ok && t.Version == 4
	})

	store.mu.Lock()
	calls := store.putCalls
	store.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected collapsed writes to result in 1 PutTask call, got %d", calls)
	}
}

func TestQueueDeleteRemovesTask(t *testing.T) {
	store := newFakeStore()
	c := cache.NewMemCache()
	q := NewQueue(store, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	store.puts["t1"] = &types.Task{ID: "t1"}
	q.EnqueueDelete(types.ColumnTodo, "t1")

	waitFor(t, 2*time.Second, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.deletes["t1"]
	})
}

func TestQueueRetriesOnFailure(t *testing.T) {
	store := newFakeStore()
	store.failNext = 1
	c := cache.NewMemCache()
	q := NewQueue(store, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	task := &types.Task{ID: "t1", ColumnID: types.ColumnTodo}
	if err := c.Put(ctx, task); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	q.EnqueueUpsert(task.ID)

	waitFor(t, 3*time.Second, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		_, ok := store.puts["t1"]
		return ok
	})
}

func TestQueueDrainFlushesImmediately(t *testing.T) {
	store := newFakeStore()
	c := cache.NewMemCache()
	q := NewQueue(store, c)

	ctx := context.Background()
	t1 := &types.Task{ID: "t1", ColumnID: types.ColumnTodo, Title: "a"}
	t2 := &types.Task{ID: "t2", ColumnID: types.ColumnTodo, Title: "b"}
	if err := c.Put(ctx, t1); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	if err := c.Put(ctx, t2); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	q.EnqueueUpsert(t1.ID)
	q.EnqueueUpsert(t2.ID)

	drainCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	q.Drain(drainCtx)

	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.puts["t1"]; !ok {
		t.Fatal("expected t1 to be flushed by Drain")
	}
	if _, ok := store.puts["t2"]; !ok {
		t.Fatal("expected t2 to be flushed by Drain")
	}
	if q.Depth() != 0 {
		t.Fatalf("Depth() after Drain = %d, want 0", q.Depth())
	}
}

func TestQueueDepthReflectsPendingJobs(t *testing.T) {
	store := newFakeStore()
	c := cache.NewMemCache()
	q := NewQueue(store, c)

	q.EnqueueUpsert("t1")
	q.EnqueueUpsert("t2")

	if got := q.Depth(); got != 2 {
		t.Fatalf("Depth() = %d, want 2", got)
	}
}
