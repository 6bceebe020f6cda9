package task

import (
	"context"
	"testing"

	"github.com/collabboard/coordinator/pkg/cache"
	"github.com/collabboard/coordinator/pkg/flush"
	"github.com/collabboard/coordinator/pkg/types"
)

type nullStore struct{}

func (nullStore) PutTask(*types.Task) error        { return nil }
func (nullStore) DeleteTask(string) error          { return nil }
func (nullStore) GetTask(string) (*types.Task, error) { return nil, nil }
func (nullStore) ListTasks() ([]*types.Task, error)  { return nil, nil }
func (nullStore) Close() error                     { return nil }

func newTestService() *Service {
	c := cache.NewMemCache()
	return NewService(c, flush.NewQueue(nullStore{}, c))
}

func TestCreateTaskEmptyColumnOrderIsHalf(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	task, err := s.CreateTask(ctx, CreateInput{
		ID:       "t1",
		ColumnID: types.ColumnTodo,
		Title:    "A",
	})
	if err != nil {
		t.Fatalf("CreateTask returned error: %v", err)
	}
	if task.Order != 0.5 {
		t.Fatalf("Order = %v, want 0.5", task.Order)
	}
	if task.Version != 1 {
		t.Fatalf("Version = %d, want 1", task.Version)
	}
}

func TestCreateTaskAppendsToBottom(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	first, _ := s.CreateTask(ctx, CreateInput{ID: "t1", ColumnID: types.ColumnTodo, Title: "A"})
	second, _ := s.CreateTask(ctx, CreateInput{ID: "t2", ColumnID: types.ColumnTodo, Title: "B"})

	if second.Order <= first.Order {
		t.Fatalf("second.Order (%v) should be greater than first.Order (%v)", second.Order, first.Order)
	}
}

func TestUpdateTaskNotFound(t *testing.T) {
	s := newTestService()
	title := "new"
	_, err := s.UpdateTask(context.Background(), UpdateInput{ID: "ghost", Title: &title})
	if err != ErrNotFound {
		t.Fatalf("UpdateTask error = %v, want ErrNotFound", err)
	}
}

func TestUpdateTaskIncrementsVersionAndLeavesPositionAlone(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	created, _ := s.CreateTask(ctx, CreateInput{ID: "t1", ColumnID: types.ColumnTodo, Title: "A"})

	title := "B"
	updated, err := s.UpdateTask(ctx, UpdateInput{ID: "t1", Title: &title, UpdatedByName: "Ada"})
	if err != nil {
		t.Fatalf("UpdateTask returned error: %v", err)
	}
	if updated.Title != "B" {
		t.Fatalf("Title = %q, want B", updated.Title)
	}
	if updated.Version != created.Version+1 {
		t.Fatalf("Version = %d, want %d", updated.Version, created.Version+1)
	}
	if updated.Order != created.Order || updated.ColumnID != created.ColumnID {
		t.Fatal("UpdateTask must not touch columnId/order")
	}
}

func TestMoveTaskChangesColumnAndOrder(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	created, _ := s.CreateTask(ctx, CreateInput{ID: "t1", ColumnID: types.ColumnTodo, Title: "A"})

	moved, err := s.MoveTask(ctx, MoveInput{ID: "t1", ColumnID: types.ColumnDone, Order: 10})
	if err != nil {
		t.Fatalf("MoveTask returned error: %v", err)
	}
	if moved.ColumnID != types.ColumnDone {
		t.Fatalf("ColumnID = %v, want done", moved.ColumnID)
	}
	if moved.Order != 10 {
		t.Fatalf("Order = %v, want 10", moved.Order)
	}
	if moved.Version != created.Version+1 {
		t.Fatalf("Version = %d, want %d", moved.Version, created.Version+1)
	}

	todo, _ := s.cache.ListColumn(ctx, types.ColumnTodo)
	if len(todo) != 0 {
		t.Fatalf("expected todo column empty after move, got %d", len(todo))
	}
}

func TestMoveTaskTriggersRebalanceOnExhaustedGap(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	s.CreateTask(ctx, CreateInput{ID: "a", ColumnID: types.ColumnTodo, Title: "A"})
	s.CreateTask(ctx, CreateInput{ID: "b", ColumnID: types.ColumnTodo, Title: "B"})

	// Force an exhausted gap directly adjacent to "a" at order 0.5.
	if _, err := s.MoveTask(ctx, MoveInput{ID: "b", ColumnID: types.ColumnTodo, Order: 0.5 + 1e-10}); err != nil {
		t.Fatalf("MoveTask returned error: %v", err)
	}

	// MoveTask only enqueues the rebalance; run the pending flush jobs so
	// the JobRebalance rewrite reaches the cache.
	s.queue.Drain(ctx)

	tasks, _ := s.cache.ListColumn(ctx, types.ColumnTodo)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks after rebalance, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.Order != 1000 && task.Order != 2000 {
			t.Fatalf("expected rebalanced orders to be multiples of 1000, got %v", task.Order)
		}
	}
}

func TestDeleteTaskIsIdempotent(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	s.CreateTask(ctx, CreateInput{ID: "t1", ColumnID: types.ColumnTodo, Title: "A"})

	if err := s.DeleteTask(ctx, "t1"); err != nil {
		t.Fatalf("first DeleteTask returned error: %v", err)
	}
	if err := s.DeleteTask(ctx, "t1"); err != nil {
		t.Fatalf("second DeleteTask returned error: %v", err)
	}
}

func TestGetAllTasksSortedByColumnThenOrder(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	s.CreateTask(ctx, CreateInput{ID: "d1", ColumnID: types.ColumnDone, Title: "D"})
	s.CreateTask(ctx, CreateInput{ID: "t1", ColumnID: types.ColumnTodo, Title: "A"})
	s.CreateTask(ctx, CreateInput{ID: "t2", ColumnID: types.ColumnTodo, Title: "B"})

	tasks, err := s.GetAllTasks(ctx)
	if err != nil {
		t.Fatalf("GetAllTasks returned error: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	for i := 1; i < len(tasks); i++ {
		if tasks[i].ColumnID < tasks[i-1].ColumnID {
			t.Fatal("tasks not sorted by columnId")
		}
		if tasks[i].ColumnID == tasks[i-1].ColumnID && tasks[i].Order < tasks[i-1].Order {
			t.Fatal("tasks not sorted by order within column")
		}
	}
}
