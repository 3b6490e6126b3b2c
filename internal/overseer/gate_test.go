package overseer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glassdome/overseer/internal/systemstate"
)

func newTestState(t *testing.T) *systemstate.Store {
	t.Helper()
	s, err := systemstate.Load(filepath.Join(t.TempDir(), "system_state.json"), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestCheckSchema_DeployVMRequiresCoreFields(t *testing.T) {
	err := checkSchema(ActionDeployVM, map[string]interface{}{"platform": "proxmox", "os": "ubuntu"})
	assert.Error(t, err)

	err = checkSchema(ActionDeployVM, map[string]interface{}{
		"platform": "proxmox", "os": "ubuntu",
		"specs": map[string]interface{}{"cores": float64(2), "memory_mib": float64(2048)},
	})
	assert.NoError(t, err)
}

func TestCheckSchema_UnknownActionRejected(t *testing.T) {
	err := checkSchema(Action("teleport_vm"), map[string]interface{}{})
	assert.Error(t, err)
}

func TestCheckSafety_RefusesDestroyAll(t *testing.T) {
	err := checkSafety(ActionDestroyVM, map[string]interface{}{"vm_id": "vm-1", "all": true}, 20)
	assert.Error(t, err)
}

func TestCheckSafety_DeployCountBoundary(t *testing.T) {
	err := checkSafety(ActionDeployVM, map[string]interface{}{"count": float64(20)}, 20)
	assert.NoError(t, err)

	err = checkSafety(ActionDeployVM, map[string]interface{}{"count": float64(21)}, 20)
	assert.Error(t, err)
}

func TestCheckResources_SkipsWhenTargetHostAbsent(t *testing.T) {
	st := newTestState(t)
	err := checkResources(st, ActionDeployVM, map[string]interface{}{
		"platform": "proxmox",
		"specs":    map[string]interface{}{"cores": float64(2), "memory_mib": float64(2048)},
	})
	assert.NoError(t, err)
}

func TestCheckResources_InsufficientHostRefused(t *testing.T) {
	st := newTestState(t)
	st.PutHost(systemstate.Host{Platform: "proxmox", Identifier: "pve1", CPUAvailable: 1, MemoryAvailMB: 512, DiskAvailGB: 10})

	err := checkResources(st, ActionDeployVM, map[string]interface{}{
		"platform": "proxmox", "target_host": "pve1",
		"specs": map[string]interface{}{"cores": float64(4), "memory_mib": float64(4096)},
	})
	assert.Error(t, err)
}

func TestCheckProductionProtection_RefusesWithoutForceFlag(t *testing.T) {
	st := newTestState(t)
	st.PutVM(systemstate.VM{ID: "vm-1", IsProduction: true})

	err := checkProductionProtection(st, ActionDestroyVM, map[string]interface{}{"vm_id": "vm-1"})
	assert.Error(t, err)

	err = checkProductionProtection(st, ActionDestroyVM, map[string]interface{}{"vm_id": "vm-1", "force_production": true})
	assert.NoError(t, err)
}

func TestCheckProductionProtection_IgnoresNonProductionVM(t *testing.T) {
	st := newTestState(t)
	st.PutVM(systemstate.VM{ID: "vm-1", IsProduction: false})

	err := checkProductionProtection(st, ActionStopVM, map[string]interface{}{"vm_id": "vm-1"})
	assert.NoError(t, err)
}
