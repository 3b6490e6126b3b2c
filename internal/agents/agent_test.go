package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	gderrors "github.com/glassdome/overseer/internal/errors"
	"github.com/glassdome/overseer/internal/platform"
	"github.com/glassdome/overseer/internal/registry"
)

type fakeClient struct {
	vms []platform.VMInfo
	err error
}

func (f *fakeClient) TestConnection(ctx context.Context) error { return f.err }
func (f *fakeClient) ListVMs(ctx context.Context) ([]platform.VMInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vms, nil
}
func (f *fakeClient) GetVM(ctx context.Context, id string) (*platform.VMInfo, error) { return nil, nil }
func (f *fakeClient) CreateVM(ctx context.Context, spec platform.VMSpec) (*platform.VMInfo, error) {
	return nil, nil
}
func (f *fakeClient) StartVM(ctx context.Context, id string) error         { return nil }
func (f *fakeClient) StopVM(ctx context.Context, id string) error          { return nil }
func (f *fakeClient) DeleteVM(ctx context.Context, id string) error        { return nil }
func (f *fakeClient) RenameVM(ctx context.Context, id, name string) error  { return nil }
func (f *fakeClient) GetVMIP(ctx context.Context, id string) (string, error) { return "", nil }
func (f *fakeClient) ListHosts(ctx context.Context) ([]platform.HostInfo, error) { return nil, nil }
func (f *fakeClient) ListNetworks(ctx context.Context) ([]platform.NetworkInfo, error) {
	return nil, nil
}

var _ platform.Client = (*fakeClient)(nil)

func TestAgent_PollRegistersVMsAndHeartbeats(t *testing.T) {
	client := &fakeClient{vms: []platform.VMInfo{
		{ID: "100", Name: "lab-42-web", Status: "running", IP: "10.0.0.5"},
	}}
	store := registry.NewStore(nil)
	a := New("proxmox", 1, time.Second, client, store, zap.NewNop())

	a.pollOnce(context.Background())

	resources := store.ListByType(registry.TypeLabVM)
	require.Len(t, resources, 1)
	assert.Equal(t, "lab-42-web", resources[0].Name)
	assert.Equal(t, "42", resources[0].LabID)
	assert.Equal(t, registry.StateRunning, resources[0].State)

	status := store.GetAgentStatus("proxmox")
	require.NotNil(t, status)
	assert.Equal(t, "1", status.Status["polls"])
}

func TestAgent_DeletionDetectedBetweenPolls(t *testing.T) {
	client := &fakeClient{vms: []platform.VMInfo{{ID: "100", Name: "lab-1-web", Status: "running"}}}
	store := registry.NewStore(nil)
	a := New("proxmox", 1, time.Second, client, store, zap.NewNop())

	a.pollOnce(context.Background())
	require.Len(t, store.ListByType(registry.TypeLabVM), 1)

	client.vms = nil
	a.pollOnce(context.Background())
	assert.Empty(t, store.ListByType(registry.TypeLabVM))
}

func TestAgent_ErrorDoesNotCrashLoop(t *testing.T) {
	client := &fakeClient{err: gderrors.Transient("proxmox_unreachable", "connection refused", nil)}
	store := registry.NewStore(nil)
	a := New("proxmox", 1, time.Second, client, store, zap.NewNop())

	assert.NotPanics(t, func() { a.pollOnce(context.Background()) })
	status := store.GetAgentStatus("proxmox")
	require.NotNil(t, status)
	assert.Equal(t, "1", status.Status["errors"])
}

func TestLabIDFromName(t *testing.T) {
	assert.Equal(t, "42", labIDFromName("lab-42-web"))
	assert.Equal(t, "", labIDFromName("standalone-vm"))
	assert.Equal(t, "", labIDFromName("lab-"))
}
