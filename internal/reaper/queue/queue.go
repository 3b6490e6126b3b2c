// Package queue implements the Reaper's two logically separate
// channels: a task queue partitioned by agent type, and an event bus
// partitioned by mission id. Both ship an in-memory implementation for
// single-process deployments and a Redis-backed implementation for
// distributed ones, behind the same interfaces.
package queue

import (
	"context"

	"github.com/glassdome/overseer/internal/reaper/types"
)

// TaskQueue partitions Tasks by agent-type tag (reaper-linux,
// reaper-windows, reaper-macos). Consume blocks until ctx is cancelled or
// a task is available; callers run it in a loop for an infinite sequence.
type TaskQueue interface {
	Publish(ctx context.Context, task types.Task) error
	Consume(ctx context.Context, agentType string) (types.Task, error)
	QueueDepth(ctx context.Context, agentType string) (int, error)
}

// EventBus partitions ResultEvents by mission id. SubscribeResults blocks
// until ctx is cancelled or an event is available.
type EventBus interface {
	PublishResult(ctx context.Context, event types.ResultEvent) error
	SubscribeResults(ctx context.Context, missionID string) (types.ResultEvent, error)
	PendingCount(ctx context.Context, missionID string) (int, error)
}
