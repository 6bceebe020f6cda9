/*
Package task implements the coordinator's pure mutation logic: create,
update, move, and delete, plus the sorted board read. It has no
transport coupling — pkg/router calls into it after validating a payload
and, for moves, acquiring the per-task lock.
*/
package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/collabboard/coordinator/pkg/cache"
	"github.com/collabboard/coordinator/pkg/flush"
	"github.com/collabboard/coordinator/pkg/log"
	"github.com/collabboard/coordinator/pkg/order"
	"github.com/collabboard/coordinator/pkg/types"
)

// ErrNotFound is returned when a mutation targets a task id the cache
// does not currently hold.
var ErrNotFound = errors.New("task: not found")

// CreateInput is the validated payload for createTask.
type CreateInput struct {
	ID           string
	ColumnID     types.ColumnID
	Title        string
	Description  string
	CreatorName  string
	CreatorColor string
}

// UpdateInput is the validated payload for updateTask. Title and
// Description are nil when the caller did not request a change to that
// field.
type UpdateInput struct {
	ID             string
	Title          *string
	Description    *string
	UpdatedByName  string
	UpdatedByColor string
}

// MoveInput is the validated payload for moveTask. Callers MUST hold the
// per-task lock for ID before calling Move.
type MoveInput struct {
	ID             string
	ColumnID       types.ColumnID
	Order          float64
	UpdatedByName  string
	UpdatedByColor string
}

// Service implements the task mutation operations against a shared
// cache, enqueuing every successful write to the durability queue.
type Service struct {
	cache  cache.Cache
	queue  *flush.Queue
	logger zerolog.Logger
}

// NewService constructs a task service over the given cache and
// durability queue.
func NewService(c cache.Cache, q *flush.Queue) *Service {
	return &Service{cache: c, queue: q, logger: log.WithComponent("task")}
}

// CreateTask assigns an append-to-bottom order, version 1, and writes
// the new task to the cache.
func (s *Service) CreateTask(ctx context.Context, in CreateInput) (*types.Task, error) {
	existing, err := s.cache.ListColumn(ctx, in.ColumnID)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	max := maxOrder(existing)
	pos, err := order.Between(max, nil)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	now := time.Now()
	task := &types.Task{
		ID:             in.ID,
		ColumnID:       in.ColumnID,
		Title:          in.Title,
		Description:    in.Description,
		Order:          pos,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
		CreatorName:    in.CreatorName,
		CreatorColor:   in.CreatorColor,
		UpdatedByName:  in.CreatorName,
		UpdatedByColor: in.CreatorColor,
	}

	if err := s.cache.Put(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.queue.EnqueueUpsert(task.ID)

	return task, nil
}

// UpdateTask applies only title/description, regardless of the client's
// reported version: those fields are disjoint from the columnId/order a
// move writes, so a concurrent move and update both apply (see
// pkg/conflict) and a version mismatch never rejects the mutation here.
func (s *Service) UpdateTask(ctx context.Context, in UpdateInput) (*types.Task, error) {
	current, ok, err := s.cache.Get(ctx, in.ID)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	if in.Title != nil {
		current.Title = *in.Title
	}
	if in.Description != nil {
		current.Description = *in.Description
	}
	current.Version++
	current.UpdatedAt = time.Now()
	current.UpdatedByName = in.UpdatedByName
	current.UpdatedByColor = in.UpdatedByColor

	if err := s.cache.Put(ctx, current); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	s.queue.EnqueueUpsert(current.ID)

	return current, nil
}

// MoveTask updates columnId/order. Callers must hold the per-task lock
// before calling this; MoveTask does not acquire it itself. A neighbor
// check after the write schedules a rebalance if the new gap is
// exhausted.
func (s *Service) MoveTask(ctx context.Context, in MoveInput) (*types.Task, error) {
	current, ok, err := s.cache.Get(ctx, in.ID)
	if err != nil {
		return nil, fmt.Errorf("move task: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	oldColumn := current.ColumnID
	current.ColumnID = in.ColumnID
	current.Order = in.Order
	current.Version++
	current.UpdatedAt = time.Now()
	current.UpdatedByName = in.UpdatedByName
	current.UpdatedByColor = in.UpdatedByColor

	if oldColumn != in.ColumnID {
		if err := s.cache.Delete(ctx, oldColumn, current.ID); err != nil {
			return nil, fmt.Errorf("move task: %w", err)
		}
	}
	if err := s.cache.Put(ctx, current); err != nil {
		return nil, fmt.Errorf("move task: %w", err)
	}
	s.queue.EnqueueUpsert(current.ID)

	if err := s.checkRebalance(ctx, in.ColumnID); err != nil {
		s.logger.Warn().Err(err).Str("column_id", string(in.ColumnID)).Msg("rebalance check failed")
	}

	return current, nil
}

// checkRebalance inspects the column's sorted orders for an exhausted
// adjacent gap and, if found, enqueues a rebalance job for the whole
// column. It only detects; the actual read-sort-reassign-write happens
// later inside the flush queue's JobRebalance handler, serialized by
// that job's column-scoped id, not here in MoveTask's hot path.
func (s *Service) checkRebalance(ctx context.Context, columnID types.ColumnID) error {
	tasks, err := s.cache.ListColumn(ctx, columnID)
	if err != nil {
		return err
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Order < tasks[j].Order })

	for i := 1; i < len(tasks); i++ {
		if order.Exhausted(tasks[i-1].Order, tasks[i].Order) {
			s.queue.EnqueueRebalance(columnID)
			return nil
		}
	}
	return nil
}

// DeleteTask is idempotent: deleting an already-absent task is a
// success.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	current, ok, err := s.cache.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if !ok {
		return nil
	}

	if err := s.cache.Delete(ctx, current.ColumnID, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.queue.EnqueueDelete(current.ColumnID, id)
	return nil
}

// GetAllTasks returns every task sorted by (columnId, order), the shape
// consumed by the board snapshot.
func (s *Service) GetAllTasks(ctx context.Context) ([]*types.Task, error) {
	tasks, err := s.cache.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].ColumnID != tasks[j].ColumnID {
			return tasks[i].ColumnID < tasks[j].ColumnID
		}
		return tasks[i].Order < tasks[j].Order
	})
	return tasks, nil
}

// maxOrder returns a pointer to the largest order in tasks, or nil if
// tasks is empty (the "unbounded" append case).
func maxOrder(tasks []*types.Task) *float64 {
	if len(tasks) == 0 {
		return nil
	}
	max := tasks[0].Order
	for _, t := range tasks[1:] {
		if t.Order > max {
			max = t.Order
		}
	}
	return &max
}
