package overseer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glassdome/overseer/internal/knowledgebase"
	"github.com/glassdome/overseer/internal/platform"
	"github.com/glassdome/overseer/internal/reaper/planner"
	"github.com/glassdome/overseer/internal/reaper/queue"
	"github.com/glassdome/overseer/internal/reaper/store"
	"github.com/glassdome/overseer/internal/reaper/types"
	"github.com/glassdome/overseer/internal/registry"
	"github.com/glassdome/overseer/internal/systemstate"
)

func newTestOverseer(t *testing.T) *Overseer {
	t.Helper()
	state := newTestState(t)
	return New(
		Config{},
		registry.NewStore(nil),
		state,
		platform.NewFactoryWithClients(nil),
		knowledgebase.Noop{},
		queue.NewMemoryQueue(),
		queue.NewMemoryEventBus(),
		store.NewMemoryStore(),
		planner.New(planner.DefaultCatalog()),
		zap.NewNop(),
	)
}

func TestReceiveRequest_ApprovesWellFormedDeploy(t *testing.T) {
	o := newTestOverseer(t)
	decision := o.ReceiveRequest(context.Background(), ActionDeployVM, map[string]interface{}{
		"platform": "proxmox", "os": "ubuntu",
		"specs": map[string]interface{}{"cores": float64(2), "memory_mib": float64(2048)},
	}, "alice")

	assert.True(t, decision.Approved)
	assert.NotEmpty(t, decision.RequestID)

	req, ok := o.state.GetRequest(decision.RequestID)
	require.True(t, ok)
	assert.Equal(t, systemstate.RequestApproved, req.Status)
}

func TestReceiveRequest_DeniesMalformedSchema(t *testing.T) {
	o := newTestOverseer(t)
	decision := o.ReceiveRequest(context.Background(), ActionDeployVM, map[string]interface{}{"platform": "proxmox"}, "alice")

	assert.False(t, decision.Approved)
	assert.NotEmpty(t, decision.Reason)

	req, ok := o.state.GetRequest(decision.RequestID)
	require.True(t, ok)
	assert.Equal(t, systemstate.RequestDenied, req.Status)
}

func TestReceiveRequest_DeniesDestroyAll(t *testing.T) {
	o := newTestOverseer(t)
	decision := o.ReceiveRequest(context.Background(), ActionDestroyVM, map[string]interface{}{"vm_id": "vm-1", "all": true}, "alice")
	assert.False(t, decision.Approved)
}

func TestReceiveRequest_DeniesProductionWithoutForce(t *testing.T) {
	o := newTestOverseer(t)
	o.state.PutVM(systemstate.VM{ID: "vm-1", IsProduction: true})

	decision := o.ReceiveRequest(context.Background(), ActionDestroyVM, map[string]interface{}{"vm_id": "vm-1"}, "alice")
	assert.False(t, decision.Approved)

	decision = o.ReceiveRequest(context.Background(), ActionDestroyVM, map[string]interface{}{"vm_id": "vm-1", "force_production": true}, "alice")
	assert.True(t, decision.Approved)
}

func TestCreateReaperMission_RefusesDuplicateID(t *testing.T) {
	o := newTestOverseer(t)
	ctx := context.Background()

	ok, _ := o.CreateReaperMission(ctx, "mission-1", "lab-1", "full_chain", []types.HostState{
		{HostID: "h1", OS: "linux"},
	})
	require.True(t, ok)

	ok, reason := o.CreateReaperMission(ctx, "mission-1", "lab-1", "full_chain", []types.HostState{
		{HostID: "h1", OS: "linux"},
	})
	assert.False(t, ok)
	assert.Equal(t, "already exists", reason)

	o.missionsMu.Lock()
	e := o.missions["mission-1"]
	o.missionsMu.Unlock()
	e.Stop()
}

func TestCancelReaperMission_StopsEngineAndMarksCancelled(t *testing.T) {
	o := newTestOverseer(t)
	ctx := context.Background()

	ok, _ := o.CreateReaperMission(ctx, "mission-2", "lab-1", "full_chain", []types.HostState{
		{HostID: "h1", OS: "linux"},
	})
	require.True(t, ok)

	require.NoError(t, o.CancelReaperMission(ctx, "mission-2"))

	mission, found, err := o.MissionStatus(ctx, "mission-2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, types.MissionCancelled, mission.Status)
}

func TestCancelReaperMission_UnknownMissionErrors(t *testing.T) {
	o := newTestOverseer(t)
	err := o.CancelReaperMission(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestRun_GracefulShutdownPersistsState(t *testing.T) {
	o := newTestOverseer(t)
	o.cfg.MonitorInterval = 10 * time.Millisecond
	o.cfg.StateSyncInterval = 10 * time.Millisecond
	o.cfg.HealthInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
