package overseer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glassdome/overseer/internal/platform"
	"github.com/glassdome/overseer/internal/systemstate"
)

type fakeDispatchClient struct {
	createErr error
	startErr  error
	stopErr   error
	deleteErr error
	created   platform.VMInfo
}

func (f *fakeDispatchClient) TestConnection(ctx context.Context) error { return nil }
func (f *fakeDispatchClient) ListVMs(ctx context.Context) ([]platform.VMInfo, error) {
	return nil, nil
}
func (f *fakeDispatchClient) GetVM(ctx context.Context, id string) (*platform.VMInfo, error) {
	return nil, nil
}
func (f *fakeDispatchClient) CreateVM(ctx context.Context, spec platform.VMSpec) (*platform.VMInfo, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	info := f.created
	if info.ID == "" {
		info.ID = "vm-new"
	}
	info.Status = "running"
	return &info, nil
}
func (f *fakeDispatchClient) StartVM(ctx context.Context, id string) error { return f.startErr }
func (f *fakeDispatchClient) StopVM(ctx context.Context, id string) error  { return f.stopErr }
func (f *fakeDispatchClient) DeleteVM(ctx context.Context, id string) error {
	return f.deleteErr
}
func (f *fakeDispatchClient) RenameVM(ctx context.Context, id, name string) error { return nil }
func (f *fakeDispatchClient) GetVMIP(ctx context.Context, id string) (string, error) {
	return "", nil
}
func (f *fakeDispatchClient) ListHosts(ctx context.Context) ([]platform.HostInfo, error) {
	return nil, nil
}
func (f *fakeDispatchClient) ListNetworks(ctx context.Context) ([]platform.NetworkInfo, error) {
	return nil, nil
}

var _ platform.Client = (*fakeDispatchClient)(nil)

func newDispatchTestOverseer(t *testing.T, client platform.Client) *Overseer {
	t.Helper()
	o := newTestOverseer(t)
	o.clients = platform.NewFactoryWithClients(map[platform.Name]platform.Client{platform.Proxmox: client})
	return o
}

func TestDispatchDeploy_CreatesVMAndRecordsState(t *testing.T) {
	client := &fakeDispatchClient{created: platform.VMInfo{ID: "vm-42", CPUCores: 2, MemoryMB: 2048}}
	o := newDispatchTestOverseer(t, client)

	result, err := o.dispatch(context.Background(), ActionDeployVM, map[string]interface{}{
		"platform": "proxmox", "os": "ubuntu", "user": "alice",
		"specs": map[string]interface{}{"cores": float64(2), "memory_mib": float64(2048)},
	})
	require.NoError(t, err)
	assert.Equal(t, "vm-42", result["vm_id"])

	vm, ok := o.state.GetVM("vm-42")
	require.True(t, ok)
	assert.Equal(t, "running", vm.Status)
	assert.Equal(t, "alice", vm.DeployedBy)
}

func TestDispatchStartStop_UpdatesTrackedStatus(t *testing.T) {
	client := &fakeDispatchClient{}
	o := newDispatchTestOverseer(t, client)
	o.state.PutVM(systemstate.VM{ID: "vm-1", Platform: "proxmox", Status: "stopped"})

	_, err := o.dispatch(context.Background(), ActionStartVM, map[string]interface{}{"vm_id": "vm-1"})
	require.NoError(t, err)
	vm, _ := o.state.GetVM("vm-1")
	assert.Equal(t, "running", vm.Status)

	_, err = o.dispatch(context.Background(), ActionStopVM, map[string]interface{}{"vm_id": "vm-1"})
	require.NoError(t, err)
	vm, _ = o.state.GetVM("vm-1")
	assert.Equal(t, "stopped", vm.Status)
}

func TestDispatchDestroy_RemovesVMFromState(t *testing.T) {
	client := &fakeDispatchClient{}
	o := newDispatchTestOverseer(t, client)
	o.state.PutVM(systemstate.VM{ID: "vm-1", Platform: "proxmox", Status: "stopped"})

	_, err := o.dispatch(context.Background(), ActionDestroyVM, map[string]interface{}{"vm_id": "vm-1"})
	require.NoError(t, err)

	_, ok := o.state.GetVM("vm-1")
	assert.False(t, ok)
}

func TestDispatchStart_UnknownVMErrors(t *testing.T) {
	o := newDispatchTestOverseer(t, &fakeDispatchClient{})
	_, err := o.dispatch(context.Background(), ActionStartVM, map[string]interface{}{"vm_id": "does-not-exist"})
	assert.Error(t, err)
}
