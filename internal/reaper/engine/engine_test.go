package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glassdome/overseer/internal/reaper/planner"
	"github.com/glassdome/overseer/internal/reaper/queue"
	"github.com/glassdome/overseer/internal/reaper/store"
	"github.com/glassdome/overseer/internal/reaper/types"
)

func newTestEngine(missionID string) (*Engine, *store.MemoryStore, queue.TaskQueue, queue.EventBus) {
	st := store.NewMemoryStore()
	tq := queue.NewMemoryQueue()
	eb := queue.NewMemoryEventBus()
	p := planner.New(planner.DefaultCatalog())
	e := New(missionID, tq, eb, st, p, zap.NewNop())
	return e, st, tq, eb
}

func TestStartMission_SchedulesInitialDiscoverTasks(t *testing.T) {
	e, st, tq, _ := newTestEngine("m1")
	ctx := context.Background()

	initial := types.MissionState{
		LabID: "lab-1",
		Hosts: map[string]types.HostState{
			"h1": {HostID: "h1", OS: "linux", IPAddress: "10.0.0.5", MaxFailures: 3},
		},
	}
	require.NoError(t, e.StartMission(ctx, initial))
	defer e.Stop()

	task, err := tq.Consume(ctx, "reaper-linux")
	require.NoError(t, err)
	assert.Equal(t, "linux.discover", task.Action)

	mission, ok, err := st.Load(ctx, "m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.MissionRunning, mission.Status)
	assert.Len(t, mission.PendingTasks, 1)
}

func TestProcessResult_SuccessMovesTaskToCompletedAndSchedulesNext(t *testing.T) {
	e, st, tq, _ := newTestEngine("m1")
	ctx := context.Background()

	initial := types.MissionState{
		Hosts: map[string]types.HostState{
			"h1": {HostID: "h1", OS: "linux", MaxFailures: 3},
		},
	}
	require.NoError(t, e.StartMission(ctx, initial))
	defer e.Stop()

	task, err := tq.Consume(ctx, "reaper-linux")
	require.NoError(t, err)

	err = e.ProcessResult(ctx, types.ResultEvent{
		TaskID: task.ID, MissionID: "m1", HostID: "h1",
		Action: "linux.discover", Status: types.ResultSuccess,
		Data: map[string]interface{}{"hostname": "web-1"}, Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)

	mission, ok, err := st.Load(ctx, "m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, mission.CompletedTasks, task.ID)
	assert.NotContains(t, mission.PendingTasks, task.ID)
	assert.Equal(t, types.HostHealthy, mission.Hosts["h1"].LastStatus)

	next, err := tq.Consume(ctx, "reaper-linux")
	require.NoError(t, err)
	assert.Equal(t, "linux.baseline", next.Action)
}

func TestProcessResult_LockoutAfterMaxFailures(t *testing.T) {
	e, st, tq, _ := newTestEngine("m1")
	ctx := context.Background()

	initial := types.MissionState{
		Hosts: map[string]types.HostState{
			"h1": {HostID: "h1", OS: "linux", MaxFailures: 3},
		},
	}
	require.NoError(t, e.StartMission(ctx, initial))
	defer e.Stop()

	task, err := tq.Consume(ctx, "reaper-linux")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err = e.ProcessResult(ctx, types.ResultEvent{
			TaskID: task.ID, MissionID: "m1", HostID: "h1",
			Action: "linux.discover", Status: types.ResultError, Retriable: false,
			Timestamp: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	mission, ok, err := st.Load(ctx, "m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mission.Hosts["h1"].Locked)
	assert.Equal(t, types.MissionCompleted, mission.Status)
}

func TestProcessResult_IdempotentOnReprocessedEvent(t *testing.T) {
	e, st, tq, _ := newTestEngine("m1")
	ctx := context.Background()

	initial := types.MissionState{
		Hosts: map[string]types.HostState{"h1": {HostID: "h1", OS: "linux", MaxFailures: 3}},
	}
	require.NoError(t, e.StartMission(ctx, initial))
	defer e.Stop()

	task, err := tq.Consume(ctx, "reaper-linux")
	require.NoError(t, err)

	event := types.ResultEvent{
		TaskID: task.ID, MissionID: "m1", HostID: "h1",
		Action: "linux.discover", Status: types.ResultSuccess, Timestamp: time.Now().UTC(),
	}
	require.NoError(t, e.ProcessResult(ctx, event))
	require.NoError(t, e.ProcessResult(ctx, event))

	mission, _, err := st.Load(ctx, "m1")
	require.NoError(t, err)

	count := 0
	for _, id := range mission.CompletedTasks {
		if id == task.ID {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
