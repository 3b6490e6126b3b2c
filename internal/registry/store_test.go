package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResource(id string, t ResourceType, state State) *Resource {
	return &Resource{
		ID:    id,
		Type:  t,
		Name:  "r1",
		State: state,
		Platform: PlatformIdentity{
			Platform: "proxmox", PlatformID: "100",
		},
		Tier: 1,
	}
}

func TestRegister_EmitsCreatedThenStateChangedThenNoop(t *testing.T) {
	s := NewStore(nil)
	sub := s.SubscribeEvents("")
	defer sub.Close()

	r := newTestResource("proxmox:VM:100", TypeVM, StateStopped)
	s.Register(r)

	ev := <-sub.Events()
	assert.Equal(t, EventCreated, ev.Kind)

	r.State = StateRunning
	s.Register(r)
	ev = <-sub.Events()
	assert.Equal(t, EventStateChanged, ev.Kind)
	assert.Equal(t, StateStopped, ev.OldState)
	assert.Equal(t, StateRunning, ev.NewState)

	// Re-registering an identical resource must not emit a second event.
	s.Register(r)
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event on identical re-register: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestListByType_AndListByLab(t *testing.T) {
	s := NewStore(nil)
	r := newTestResource("proxmox:LabVM:100", TypeLabVM, StateRunning)
	r.LabID = "lab-1"
	s.Register(r)

	require.Len(t, s.ListByType(TypeLabVM), 1)
	require.Len(t, s.ListByLab("lab-1"), 1)
	assert.Equal(t, r.ID, s.ListByLab("lab-1")[0].ID)
}

func TestDetectDrift_StateMismatchAutoFixOnTier1(t *testing.T) {
	r := newTestResource("proxmox:LabVM:100", TypeLabVM, StateStopped)
	r.DesiredState = StateRunning
	r.Tier = 1

	d := DetectDrift(r)
	require.NotNil(t, d)
	assert.Equal(t, DriftStateMismatch, d.Kind)
	assert.True(t, d.AutoFix)
	assert.Equal(t, "set_state:running", d.SuggestedFix)
}

func TestDetectDrift_NoDesiredState_ReturnsNil(t *testing.T) {
	r := newTestResource("proxmox:VM:100", TypeVM, StateRunning)
	assert.Nil(t, DetectDrift(r))
}

func TestDetectDrift_NetworkMismatchNeverAutoFixes(t *testing.T) {
	r := newTestResource("proxmox:LabVM:100", TypeLabVM, StateRunning)
	r.Config = map[string]string{"network": "vlan10"}
	r.DesiredConfig = map[string]string{"network": "vlan20"}

	d := DetectDrift(r)
	require.NotNil(t, d)
	assert.Equal(t, DriftNetworkMismatch, d.Kind)
	assert.False(t, d.AutoFix)
	assert.Equal(t, SeverityCritical, d.Severity)
}

func TestRecordAndResolveDrift(t *testing.T) {
	s := NewStore(nil)
	d := &Drift{ResourceID: "r1", Kind: DriftStateMismatch, LabID: "lab-1"}
	s.RecordDrift(d)

	require.Len(t, s.GetDrifts("lab-1"), 1)

	s.ResolveDrift("r1")
	assert.Empty(t, s.GetDrifts("lab-1"))
}

func TestRecordDrift_ReplacesExistingActiveDrift(t *testing.T) {
	s := NewStore(nil)
	s.RecordDrift(&Drift{ResourceID: "r1", Kind: DriftStateMismatch, LabID: "lab-1"})
	s.RecordDrift(&Drift{ResourceID: "r1", Kind: DriftNameMismatch, LabID: "lab-1"})

	drifts := s.GetDrifts("lab-1")
	require.Len(t, drifts, 1)
	assert.Equal(t, DriftNameMismatch, drifts[0].Kind)
}

func TestAgentHeartbeat_ExpiresAfterTTL(t *testing.T) {
	s := NewStore(nil)
	s.AgentHeartbeat("agent-1", map[string]string{"polls": "1"})
	require.NotNil(t, s.GetAgentStatus("agent-1"))

	s.mu.Lock()
	s.agents["agent-1"].LastSeen = time.Now().Add(-agentHeartbeatTTL - time.Second)
	s.mu.Unlock()

	assert.Nil(t, s.GetAgentStatus("agent-1"))
}

func TestGetLabSnapshot_HealthyWhenNoDriftsAndAllRunning(t *testing.T) {
	s := NewStore(nil)
	gw := newTestResource("proxmox:LabVM:1", TypeLabVM, StateRunning)
	gw.LabID = "lab-1"
	gw.Config = map[string]string{"role": "gateway"}
	s.Register(gw)

	vm := newTestResource("proxmox:LabVM:2", TypeLabVM, StateRunning)
	vm.LabID = "lab-1"
	s.Register(vm)

	snap := s.GetLabSnapshot("lab-1")
	assert.True(t, snap.Healthy)
	assert.Equal(t, 2, snap.TotalVMs)
	assert.NotNil(t, snap.Gateway)
}

func TestGetRecentEvents_BoundedRing(t *testing.T) {
	s := NewStore(nil)
	for i := 0; i < ringBufferSize+10; i++ {
		s.PublishEvent(StateChange{Kind: EventCreated, ResourceID: "r"})
	}
	events := s.GetRecentEvents(0)
	assert.Len(t, events, ringBufferSize)
}
