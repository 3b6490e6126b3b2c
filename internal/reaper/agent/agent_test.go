package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glassdome/overseer/internal/reaper/queue"
	"github.com/glassdome/overseer/internal/reaper/types"
)

type stubExecutor struct {
	discoverErr error
	panicOn     string
}

func (e *stubExecutor) Discover(ctx context.Context, task types.Task) (map[string]interface{}, error) {
	if e.panicOn == "discover" {
		panic("boom")
	}
	if _, err := RequireParam(task, "ip_address"); err != nil {
		return nil, err
	}
	if e.discoverErr != nil {
		return nil, e.discoverErr
	}
	return map[string]interface{}{"hostname": "h1"}, nil
}
func (e *stubExecutor) Baseline(ctx context.Context, task types.Task) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}
func (e *stubExecutor) InjectVuln(ctx context.Context, task types.Task) (map[string]interface{}, error) {
	return map[string]interface{}{"vulnerabilities_injected": []string{"v1"}}, nil
}
func (e *stubExecutor) VerifyVuln(ctx context.Context, task types.Task) (map[string]interface{}, error) {
	return map[string]interface{}{"exploitable": true}, nil
}

func TestWorker_UnknownActionProducesErrorEvent(t *testing.T) {
	tq := queue.NewMemoryQueue()
	eb := queue.NewMemoryEventBus()
	w := New("reaper-linux", &stubExecutor{}, tq, eb, zap.NewNop())

	ctx := context.Background()
	task := types.Task{ID: "t1", MissionID: "m1", HostID: "h1", AgentType: "reaper-linux", Action: "linux.teleport"}
	require.NoError(t, tq.Publish(ctx, task))

	consumed, err := tq.Consume(ctx, "reaper-linux")
	require.NoError(t, err)
	w.handle(ctx, consumed)

	event, err := eb.SubscribeResults(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, types.ResultError, event.Status)
	assert.Equal(t, ErrUnknownAction, event.ErrorCode)
}

func TestWorker_MissingParamProducesNonRetriableError(t *testing.T) {
	tq := queue.NewMemoryQueue()
	eb := queue.NewMemoryEventBus()
	w := New("reaper-linux", &stubExecutor{}, tq, eb, zap.NewNop())

	ctx := context.Background()
	task := types.Task{ID: "t1", MissionID: "m1", HostID: "h1", Action: "linux.discover", Params: map[string]interface{}{}}
	w.handle(ctx, task)

	event, err := eb.SubscribeResults(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, ErrMissingParam, event.ErrorCode)
	assert.False(t, event.Retriable)
}

func TestWorker_ExecutorErrorProducesRetriableDiscoveryFailed(t *testing.T) {
	tq := queue.NewMemoryQueue()
	eb := queue.NewMemoryEventBus()
	w := New("reaper-linux", &stubExecutor{discoverErr: errors.New("ssh refused")}, tq, eb, zap.NewNop())

	ctx := context.Background()
	task := types.Task{ID: "t1", MissionID: "m1", HostID: "h1", Action: "linux.discover", Params: map[string]interface{}{"ip_address": "10.0.0.5"}}
	w.handle(ctx, task)

	event, err := eb.SubscribeResults(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, ErrDiscoveryFailed, event.ErrorCode)
	assert.True(t, event.Retriable)
}

func TestWorker_PanicProducesAgentExceptionInsteadOfCrashing(t *testing.T) {
	tq := queue.NewMemoryQueue()
	eb := queue.NewMemoryEventBus()
	w := New("reaper-linux", &stubExecutor{panicOn: "discover"}, tq, eb, zap.NewNop())

	ctx := context.Background()
	task := types.Task{ID: "t1", MissionID: "m1", HostID: "h1", Action: "linux.discover", Params: map[string]interface{}{"ip_address": "10.0.0.5"}}
	assert.NotPanics(t, func() { w.handle(ctx, task) })

	event, err := eb.SubscribeResults(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, ErrAgentException, event.ErrorCode)
	assert.True(t, event.Retriable)
}

func TestWorker_SuccessProducesSuccessEventWithData(t *testing.T) {
	tq := queue.NewMemoryQueue()
	eb := queue.NewMemoryEventBus()
	w := New("reaper-linux", &stubExecutor{}, tq, eb, zap.NewNop())

	ctx := context.Background()
	task := types.Task{ID: "t1", MissionID: "m1", HostID: "h1", Action: "linux.discover", Params: map[string]interface{}{"ip_address": "10.0.0.5"}}
	w.handle(ctx, task)

	event, err := eb.SubscribeResults(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, types.ResultSuccess, event.Status)
	assert.Equal(t, "h1", event.Data["hostname"])
}

func TestTruncateOutput_KeepsLastMaxBytes(t *testing.T) {
	long := make([]byte, maxOutputBytes+100)
	for i := range long {
		long[i] = 'a'
	}
	long[len(long)-1] = 'z'

	out := TruncateOutput(string(long))
	assert.Len(t, out, maxOutputBytes)
	assert.Equal(t, byte('z'), out[len(out)-1])
}

func TestLinuxExecutor_InjectVuln_ReturnsCategoryVuln(t *testing.T) {
	e := NewLinuxExecutor()
	data, err := e.InjectVuln(context.Background(), types.Task{Params: map[string]interface{}{"category": "web"}})
	require.NoError(t, err)
	assert.Equal(t, "web", data["category"])
}
