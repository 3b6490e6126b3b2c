package platform

import (
	"context"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gderrors "github.com/glassdome/overseer/internal/errors"
)

func newTestProxmoxClient() *ProxmoxClient {
	c := NewProxmoxClient(ProxmoxConfig{
		BaseURL:     "https://pve.example.test:8006",
		Username:    "root@pam",
		TokenID:     "glassdome",
		TokenSecret: "secret",
		DefaultNode: "pve1",
	})
	httpmock.ActivateNonDefault(c.HTTPClient())
	return c
}

func TestProxmoxClient_GetVM_NotFound(t *testing.T) {
	c := newTestProxmoxClient()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://pve.example.test:8006/api2/json/nodes/pve1/qemu/999/status/current",
		httpmock.NewStringResponder(404, `{"errors":{}}`))

	_, err := c.GetVM(context.Background(), "999")
	require.Error(t, err)
	assert.True(t, gderrors.Is(err, gderrors.KindNotFound))
}

func TestProxmoxClient_GetVM_Success(t *testing.T) {
	c := newTestProxmoxClient()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://pve.example.test:8006/api2/json/nodes/pve1/qemu/100/status/current",
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{
			"data": map[string]interface{}{
				"name":    "lab-1-web",
				"status":  "running",
				"maxmem":  4294967296,
				"maxdisk": 21474836480,
				"cpus":    2,
			},
		}))

	vm, err := c.GetVM(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, "lab-1-web", vm.Name)
	assert.Equal(t, "running", vm.Status)
	assert.Equal(t, 4096, vm.MemoryMB)
	assert.Equal(t, 20, vm.DiskGB)
}

func TestProxmoxClient_TestConnection_AuthError(t *testing.T) {
	c := newTestProxmoxClient()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://pve.example.test:8006/api2/json/version",
		httpmock.NewStringResponder(401, `{}`))

	err := c.TestConnection(context.Background())
	require.Error(t, err)
	assert.True(t, gderrors.Is(err, gderrors.KindAuth))
}

func TestProxmoxClient_DeleteVM_NotFoundIsIdempotent(t *testing.T) {
	c := newTestProxmoxClient()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("DELETE", "https://pve.example.test:8006/api2/json/nodes/pve1/qemu/404",
		httpmock.NewStringResponder(404, `{}`))

	err := c.DeleteVM(context.Background(), "404")
	assert.NoError(t, err)
}

func TestProxmoxClient_CreateVM_ValidationError(t *testing.T) {
	c := newTestProxmoxClient()
	defer httpmock.DeactivateAndReset()

	_, err := c.CreateVM(context.Background(), VMSpec{})
	require.Error(t, err)
	assert.True(t, gderrors.Is(err, gderrors.KindValidation))
}

func TestProxmoxClient_ListHosts(t *testing.T) {
	c := newTestProxmoxClient()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://pve.example.test:8006/api2/json/nodes",
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{
			"data": []map[string]interface{}{
				{"node": "pve1", "status": "online", "maxcpu": 16, "maxmem": 68719476736, "mem": 34359738368},
			},
		}))

	hosts, err := c.ListHosts(context.Background())
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "pve1", hosts[0].ID)
	assert.Equal(t, 16, hosts[0].CPUAvailable)
	assert.Equal(t, 32768, hosts[0].MemoryAvailMB)
}
