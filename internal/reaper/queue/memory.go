package queue

import (
	"context"
	"sync"

	"github.com/glassdome/overseer/internal/reaper/types"
)

// partitionBuffer bounds each partition channel. Growth beyond this is
// the caller's responsibility to avoid (the engine never schedules more
// than the planner asks for); a generous buffer keeps tests and small
// deployments from blocking on Publish.
const partitionBuffer = 4096

// MemoryQueue is an in-process TaskQueue backed by one buffered channel
// per agent-type partition. Suitable for single-process deployments and
// tests; state does not survive a restart.
type MemoryQueue struct {
	mu         sync.Mutex
	partitions map[string]chan types.Task
}

// NewMemoryQueue constructs an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{partitions: make(map[string]chan types.Task)}
}

func (q *MemoryQueue) partition(agentType string) chan types.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.partitions[agentType]
	if !ok {
		ch = make(chan types.Task, partitionBuffer)
		q.partitions[agentType] = ch
	}
	return ch
}

// Publish enqueues task to the partition named by task.AgentType.
func (q *MemoryQueue) Publish(ctx context.Context, task types.Task) error {
	select {
	case q.partition(task.AgentType) <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume blocks until a task is available on agentType's partition or
// ctx is cancelled.
func (q *MemoryQueue) Consume(ctx context.Context, agentType string) (types.Task, error) {
	select {
	case t := <-q.partition(agentType):
		return t, nil
	case <-ctx.Done():
		return types.Task{}, ctx.Err()
	}
}

// QueueDepth returns the number of tasks currently buffered for agentType.
func (q *MemoryQueue) QueueDepth(ctx context.Context, agentType string) (int, error) {
	return len(q.partition(agentType)), nil
}

// MemoryEventBus is an in-process EventBus backed by one buffered channel
// per mission-id partition.
type MemoryEventBus struct {
	mu         sync.Mutex
	partitions map[string]chan types.ResultEvent
}

// NewMemoryEventBus constructs an empty MemoryEventBus.
func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{partitions: make(map[string]chan types.ResultEvent)}
}

func (b *MemoryEventBus) partition(missionID string) chan types.ResultEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.partitions[missionID]
	if !ok {
		ch = make(chan types.ResultEvent, partitionBuffer)
		b.partitions[missionID] = ch
	}
	return ch
}

// PublishResult enqueues event to the partition named by event.MissionID.
func (b *MemoryEventBus) PublishResult(ctx context.Context, event types.ResultEvent) error {
	select {
	case b.partition(event.MissionID) <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubscribeResults blocks until an event is available on missionID's
// partition or ctx is cancelled.
func (b *MemoryEventBus) SubscribeResults(ctx context.Context, missionID string) (types.ResultEvent, error) {
	select {
	case e := <-b.partition(missionID):
		return e, nil
	case <-ctx.Done():
		return types.ResultEvent{}, ctx.Err()
	}
}

// PendingCount returns the number of events currently buffered for
// missionID.
func (b *MemoryEventBus) PendingCount(ctx context.Context, missionID string) (int, error) {
	return len(b.partition(missionID)), nil
}
