package overseer

import (
	"fmt"

	"github.com/glassdome/overseer/internal/systemstate"
)

// Action enumerates the four request-gate actions the Overseer accepts.
type Action string

const (
	ActionDeployVM  Action = "deploy_vm"
	ActionDestroyVM Action = "destroy_vm"
	ActionStartVM   Action = "start_vm"
	ActionStopVM    Action = "stop_vm"
)

// Decision is ReceiveRequest's return value.
type Decision struct {
	Approved      bool   `json:"approved"`
	RequestID     string `json:"request_id"`
	Reason        string `json:"reason,omitempty"`
	QueuePosition int    `json:"queue_position,omitempty"`
}

func deny(requestID, reason string) Decision {
	return Decision{Approved: false, RequestID: requestID, Reason: reason}
}

// checkSchema validates action is a known verb and carries its required
// params, per spec.md §6's canonical request shapes.
func checkSchema(action Action, params map[string]interface{}) error {
	switch action {
	case ActionDeployVM:
		if _, ok := stringParam(params, "platform"); !ok {
			return fmt.Errorf("deploy_vm requires platform")
		}
		if _, ok := stringParam(params, "os"); !ok {
			return fmt.Errorf("deploy_vm requires os")
		}
		specs, ok := params["specs"].(map[string]interface{})
		if !ok {
			return fmt.Errorf("deploy_vm requires specs")
		}
		if _, ok := numberParam(specs, "cores"); !ok {
			return fmt.Errorf("deploy_vm.specs requires cores")
		}
		if _, ok := numberParam(specs, "memory_mib"); !ok {
			return fmt.Errorf("deploy_vm.specs requires memory_mib")
		}
		return nil
	case ActionDestroyVM, ActionStartVM, ActionStopVM:
		if _, ok := stringParam(params, "vm_id"); !ok {
			return fmt.Errorf("%s requires vm_id", action)
		}
		return nil
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

// checkSafety applies the domain-specific invariants spec.md §4.6(2)
// calls out explicitly: no destroy_vm{all:true}, no deploy_vm above the
// configured max deploy count.
func checkSafety(action Action, params map[string]interface{}, maxDeployCount int) error {
	switch action {
	case ActionDestroyVM:
		if b, ok := params["all"].(bool); ok && b {
			return fmt.Errorf("destroy_vm with all=true is refused")
		}
	case ActionDeployVM:
		count := 1
		if n, ok := numberParam(params, "count"); ok {
			count = int(n)
		}
		if count > maxDeployCount {
			return fmt.Errorf("deploy_vm count %d exceeds the maximum of %d", count, maxDeployCount)
		}
	}
	return nil
}

// checkResources calls SystemState.HasResources for deploy_vm requests
// that name a target_host. Requests silent on target_host skip this
// check — the gate has nothing concrete to compare against.
func checkResources(st *systemstate.Store, action Action, params map[string]interface{}) error {
	if action != ActionDeployVM {
		return nil
	}
	targetHost, ok := stringParam(params, "target_host")
	if !ok {
		return nil
	}
	platformName, _ := stringParam(params, "platform")
	specs, _ := params["specs"].(map[string]interface{})

	cores, _ := numberParam(specs, "cores")
	memMB, _ := numberParam(specs, "memory_mib")
	diskGB, _ := numberParam(specs, "disk_gib")

	req := systemstate.Requirement{CPUCores: int(cores), MemoryMB: int(memMB), DiskGB: int(diskGB)}
	key := systemstate.HostKey{Platform: platformName, Identifier: targetHost}
	if !st.HasResources(key, req) {
		return fmt.Errorf("insufficient resources on host %s for requested specs", targetHost)
	}
	return nil
}

// checkProductionProtection refuses destroy_vm/stop_vm against a VM
// flagged is_production unless force_production=true is also set.
func checkProductionProtection(st *systemstate.Store, action Action, params map[string]interface{}) error {
	if action != ActionDestroyVM && action != ActionStopVM {
		return nil
	}
	vmID, _ := stringParam(params, "vm_id")
	vm, ok := st.GetVM(vmID)
	if !ok || !vm.IsProduction {
		return nil
	}
	if force, ok := params["force_production"].(bool); ok && force {
		return nil
	}
	return fmt.Errorf("%s targets a production VM; resubmit with force_production=true", action)
}

func stringParam(params map[string]interface{}, key string) (string, bool) {
	v, ok := params[key].(string)
	return v, ok && v != ""
}

func numberParam(params map[string]interface{}, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
