package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/glassdome/overseer/internal/reaper/types"
)

const (
	taskKeyPrefix   = "glassdome:tasks:"
	resultKeyPrefix = "glassdome:results:"
)

// RedisQueue is a TaskQueue/EventBus pair backed by Redis lists: one list
// key per partition, LPUSH on publish, BRPOP on consume. This gives FIFO
// per-partition ordering and lets multiple Overseer processes share one
// Reaper backend.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue wraps an already-connected *redis.Client.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func taskKey(agentType string) string   { return taskKeyPrefix + agentType }
func resultKey(missionID string) string { return resultKeyPrefix + missionID }

// Publish LPUSHes task onto its agent-type partition.
func (q *RedisQueue) Publish(ctx context.Context, task types.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("queue: marshal task: %w", err)
	}
	return q.client.LPush(ctx, taskKey(task.AgentType), data).Err()
}

// Consume BRPOPs the next task from agentType's partition, blocking until
// one is available or ctx is cancelled.
func (q *RedisQueue) Consume(ctx context.Context, agentType string) (types.Task, error) {
	res, err := q.client.BRPop(ctx, 0, taskKey(agentType)).Result()
	if err != nil {
		return types.Task{}, err
	}
	// BRPop returns [key, value]; value is res[1].
	var t types.Task
	if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
		return types.Task{}, fmt.Errorf("queue: unmarshal task: %w", err)
	}
	return t, nil
}

// QueueDepth reports the current list length for agentType's partition.
func (q *RedisQueue) QueueDepth(ctx context.Context, agentType string) (int, error) {
	n, err := q.client.LLen(ctx, taskKey(agentType)).Result()
	return int(n), err
}

// PublishResult LPUSHes event onto its mission-id partition.
func (q *RedisQueue) PublishResult(ctx context.Context, event types.ResultEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue: marshal result: %w", err)
	}
	return q.client.LPush(ctx, resultKey(event.MissionID), data).Err()
}

// SubscribeResults BRPOPs the next event from missionID's partition,
// blocking until one is available or ctx is cancelled.
func (q *RedisQueue) SubscribeResults(ctx context.Context, missionID string) (types.ResultEvent, error) {
	res, err := q.client.BRPop(ctx, 0, resultKey(missionID)).Result()
	if err != nil {
		return types.ResultEvent{}, err
	}
	var e types.ResultEvent
	if err := json.Unmarshal([]byte(res[1]), &e); err != nil {
		return types.ResultEvent{}, fmt.Errorf("queue: unmarshal result: %w", err)
	}
	return e, nil
}

// PendingCount reports the current list length for missionID's partition.
func (q *RedisQueue) PendingCount(ctx context.Context, missionID string) (int, error) {
	n, err := q.client.LLen(ctx, resultKey(missionID)).Result()
	return int(n), err
}
