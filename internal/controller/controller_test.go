package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glassdome/overseer/internal/platform"
	"github.com/glassdome/overseer/internal/registry"
)

type recordingClient struct {
	started []string
	stopped []string
	renamed map[string]string
}

func (c *recordingClient) TestConnection(ctx context.Context) error { return nil }
func (c *recordingClient) ListVMs(ctx context.Context) ([]platform.VMInfo, error) { return nil, nil }
func (c *recordingClient) GetVM(ctx context.Context, id string) (*platform.VMInfo, error) {
	return nil, nil
}
func (c *recordingClient) CreateVM(ctx context.Context, spec platform.VMSpec) (*platform.VMInfo, error) {
	return nil, nil
}
func (c *recordingClient) StartVM(ctx context.Context, id string) error {
	c.started = append(c.started, id)
	return nil
}
func (c *recordingClient) StopVM(ctx context.Context, id string) error {
	c.stopped = append(c.stopped, id)
	return nil
}
func (c *recordingClient) DeleteVM(ctx context.Context, id string) error { return nil }
func (c *recordingClient) RenameVM(ctx context.Context, id, name string) error {
	if c.renamed == nil {
		c.renamed = map[string]string{}
	}
	c.renamed[id] = name
	return nil
}
func (c *recordingClient) GetVMIP(ctx context.Context, id string) (string, error) { return "", nil }
func (c *recordingClient) ListHosts(ctx context.Context) ([]platform.HostInfo, error) {
	return nil, nil
}
func (c *recordingClient) ListNetworks(ctx context.Context) ([]platform.NetworkInfo, error) {
	return nil, nil
}

func newTestController(t *testing.T, client platform.Client) (*Controller, *registry.Store) {
	t.Helper()
	store := registry.NewStore(nil)
	clients := platform.NewFactoryWithClients(map[platform.Name]platform.Client{
		platform.Proxmox: client,
	})
	return New(store, clients, zap.NewNop(), defaultPeriod), store
}

func TestController_DriftAutoFix_StartsStoppedTier1VM(t *testing.T) {
	client := &recordingClient{}
	c, store := newTestController(t, client)

	store.Register(&registry.Resource{
		ID:    "proxmox:LabVM:100",
		Type:  registry.TypeLabVM,
		Name:  "lab-1-web",
		State: registry.StateStopped,
		Platform: registry.PlatformIdentity{
			Platform:   "proxmox",
			PlatformID: "100",
		},
		LabID:        "1",
		Tier:         1,
		DesiredState: registry.StateRunning,
	})

	result := c.ReconcileLab(context.Background(), "1")

	assert.Equal(t, 1, result.VMsChecked)
	assert.Equal(t, 1, result.DriftsFound)
	assert.Equal(t, 1, result.DriftsFixed)
	assert.Equal(t, []string{"100"}, client.started)
	assert.Empty(t, store.GetDrifts("1"))
}

func TestController_NetworkDrift_NeverAutoFixed(t *testing.T) {
	client := &recordingClient{}
	c, store := newTestController(t, client)

	store.Register(&registry.Resource{
		ID:    "proxmox:LabVM:200",
		Type:  registry.TypeLabVM,
		Name:  "lab-1-db",
		State: registry.StateRunning,
		Platform: registry.PlatformIdentity{
			Platform:   "proxmox",
			PlatformID: "200",
		},
		LabID:         "1",
		Tier:          1,
		Config:        map[string]string{"network": "vlan10"},
		DesiredConfig: map[string]string{"network": "vlan20"},
	})

	result := c.ReconcileLab(context.Background(), "1")

	assert.Equal(t, 1, result.DriftsFound)
	assert.Equal(t, 0, result.DriftsFixed)
	require.Len(t, store.GetDrifts("1"), 1)
	assert.Empty(t, client.started)
}
