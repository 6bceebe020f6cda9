package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/collabboard/coordinator/pkg/types"
)

// RedisCache implements Cache against an external Redis instance, so the
// authoritative view can survive a coordinator process restart and be
// shared across replicas serving the same board.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache wraps an existing Redis client. keyPrefix namespaces all
// keys this cache touches, in case the Redis instance is shared.
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	return &RedisCache{client: client, keyPrefix: keyPrefix}
}

func (c *RedisCache) taskKey(taskID string) string {
	return fmt.Sprintf("%s:task:%s", c.keyPrefix, taskID)
}

func (c *RedisCache) columnKey(columnID types.ColumnID) string {
	return fmt.Sprintf("%s:column:%s", c.keyPrefix, columnID)
}

func (c *RedisCache) globalKey() string {
	return fmt.Sprintf("%s:tasks", c.keyPrefix)
}

// Put atomically writes the task record plus its column and global set
// memberships in a single pipeline, refreshing TTL on all three keys.
func (c *RedisCache) Put(ctx context.Context, task *types.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("cache: marshal task: %w", err)
	}

	existing, existingOK, err := c.Get(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("cache: lookup existing task: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.taskKey(task.ID), data, TTL)
	if existingOK && existing.ColumnID != task.ColumnID {
		pipe.SRem(ctx, c.columnKey(existing.ColumnID), task.ID)
	}
	pipe.SAdd(ctx, c.columnKey(task.ColumnID), task.ID)
	pipe.Expire(ctx, c.columnKey(task.ColumnID), TTL)
	pipe.SAdd(ctx, c.globalKey(), task.ID)
	pipe.Expire(ctx, c.globalKey(), TTL)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("cache: put task %s: %w", task.ID, err)
	}
	return nil
}

// Delete atomically removes a task's record and both set memberships.
func (c *RedisCache) Delete(ctx context.Context, columnID types.ColumnID, taskID string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.taskKey(taskID))
	pipe.SRem(ctx, c.columnKey(columnID), taskID)
	pipe.SRem(ctx, c.globalKey(), taskID)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("cache: delete task %s: %w", taskID, err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, taskID string) (*types.Task, bool, error) {
	data, err := c.client.Get(ctx, c.taskKey(taskID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get task %s: %w", taskID, err)
	}

	var task types.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, false, fmt.Errorf("cache: unmarshal task %s: %w", taskID, err)
	}
	return &task, true, nil
}

func (c *RedisCache) ListColumn(ctx context.Context, columnID types.ColumnID) ([]*types.Task, error) {
	ids, err := c.client.SMembers(ctx, c.columnKey(columnID)).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: list column %s: %w", columnID, err)
	}
	return c.fetchAll(ctx, ids)
}

func (c *RedisCache) ListAll(ctx context.Context) ([]*types.Task, error) {
	ids, err := c.client.SMembers(ctx, c.globalKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: list all: %w", err)
	}
	return c.fetchAll(ctx, ids)
}

func (c *RedisCache) fetchAll(ctx context.Context, ids []string) ([]*types.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.taskKey(id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: mget tasks: %w", err)
	}

	tasks := make([]*types.Task, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		var task types.Task
		if err := json.Unmarshal([]byte(s), &task); err != nil {
			return nil, fmt.Errorf("cache: unmarshal task: %w", err)
		}
		tasks = append(tasks, &task)
	}
	return tasks, nil
}
