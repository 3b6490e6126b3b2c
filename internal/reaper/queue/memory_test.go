package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glassdome/overseer/internal/reaper/types"
)

func TestMemoryQueue_PublishConsume_PerPartitionFIFO(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, types.Task{ID: "t1", AgentType: "reaper-linux"}))
	require.NoError(t, q.Publish(ctx, types.Task{ID: "t2", AgentType: "reaper-linux"}))
	require.NoError(t, q.Publish(ctx, types.Task{ID: "w1", AgentType: "reaper-windows"}))

	got1, err := q.Consume(ctx, "reaper-linux")
	require.NoError(t, err)
	assert.Equal(t, "t1", got1.ID)

	got2, err := q.Consume(ctx, "reaper-linux")
	require.NoError(t, err)
	assert.Equal(t, "t2", got2.ID)

	gotW, err := q.Consume(ctx, "reaper-windows")
	require.NoError(t, err)
	assert.Equal(t, "w1", gotW.ID)
}

func TestMemoryQueue_QueueDepth(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	depth, err := q.QueueDepth(ctx, "reaper-linux")
	require.NoError(t, err)
	assert.Equal(t, 0, depth)

	require.NoError(t, q.Publish(ctx, types.Task{ID: "t1", AgentType: "reaper-linux"}))
	depth, err = q.QueueDepth(ctx, "reaper-linux")
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestMemoryQueue_ConsumeBlocksUntilCancelled(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Consume(ctx, "reaper-linux")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryEventBus_PublishSubscribe_PerMissionPartition(t *testing.T) {
	b := NewMemoryEventBus()
	ctx := context.Background()

	require.NoError(t, b.PublishResult(ctx, types.ResultEvent{TaskID: "t1", MissionID: "m1"}))
	require.NoError(t, b.PublishResult(ctx, types.ResultEvent{TaskID: "t2", MissionID: "m2"}))

	e1, err := b.SubscribeResults(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "t1", e1.TaskID)

	pending, err := b.PendingCount(ctx, "m2")
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}
