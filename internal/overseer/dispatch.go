package overseer

import (
	"context"
	"fmt"
	"time"

	"github.com/glassdome/overseer/internal/platform"
	"github.com/glassdome/overseer/internal/systemstate"
)

// dispatch performs the platform side effect an approved request
// describes and reconciles System State to match. It is the only place
// in the Overseer that calls out to a platform.Client directly for a
// user-requested action; platform-observed state reaches the Registry
// through the Agent and Lab Controller loops, which never write System
// State.
func (o *Overseer) dispatch(ctx context.Context, action Action, params map[string]interface{}) (map[string]interface{}, error) {
	switch action {
	case ActionDeployVM:
		return o.dispatchDeploy(ctx, params)
	case ActionStartVM:
		return o.dispatchStart(ctx, params)
	case ActionStopVM:
		return o.dispatchStop(ctx, params)
	case ActionDestroyVM:
		return o.dispatchDestroy(ctx, params)
	default:
		return nil, fmt.Errorf("dispatch: unknown action %q", action)
	}
}

func (o *Overseer) dispatchDeploy(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	platformName, _ := stringParam(params, "platform")
	osName, _ := stringParam(params, "os")
	targetHost, _ := stringParam(params, "target_host")

	specs, _ := params["specs"].(map[string]interface{})
	var cores, memMB, diskGB float64
	isProduction, _ := specs["is_production"].(bool)
	if specs != nil {
		cores, _ = numberParam(specs, "cores")
		memMB, _ = numberParam(specs, "memory_mib")
		diskGB, _ = numberParam(specs, "disk_gib")
	}

	client, err := o.clients.Get(platform.Name(platformName))
	if err != nil {
		return nil, err
	}

	info, err := client.CreateVM(ctx, platform.VMSpec{
		Name:       fmt.Sprintf("glassdome-%d", time.Now().UTC().UnixNano()),
		TemplateID: osName,
		TargetHost: targetHost,
		CPUCores:   int(cores),
		MemoryMB:   int(memMB),
		DiskGB:     int(diskGB),
	})
	if err != nil {
		return nil, err
	}

	user, _ := stringParam(params, "user")
	o.state.PutVM(systemstate.VM{
		ID:       info.ID,
		Name:     info.Name,
		Platform: platformName,
		Status:   info.Status,
		IP:       info.IP,
		Specs: systemstate.VMSpecs{
			CPUCores: info.CPUCores,
			MemoryMB: info.MemoryMB,
			DiskGB:   info.DiskGB,
			Host:     info.Host,
		},
		IsProduction: isProduction,
		DeployedBy:   user,
		DeployedAt:   time.Now().UTC(),
	})

	return map[string]interface{}{"vm_id": info.ID, "status": info.Status}, nil
}

func (o *Overseer) dispatchStart(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	vmID, _ := stringParam(params, "vm_id")
	client, vm, err := o.clientForVM(vmID)
	if err != nil {
		return nil, err
	}
	if err := client.StartVM(ctx, vmID); err != nil {
		return nil, err
	}
	vm.Status = "running"
	o.state.PutVM(vm)
	return map[string]interface{}{"vm_id": vmID, "status": vm.Status}, nil
}

func (o *Overseer) dispatchStop(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	vmID, _ := stringParam(params, "vm_id")
	client, vm, err := o.clientForVM(vmID)
	if err != nil {
		return nil, err
	}
	if err := client.StopVM(ctx, vmID); err != nil {
		return nil, err
	}
	vm.Status = "stopped"
	o.state.PutVM(vm)
	return map[string]interface{}{"vm_id": vmID, "status": vm.Status}, nil
}

func (o *Overseer) dispatchDestroy(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	vmID, _ := stringParam(params, "vm_id")
	client, _, err := o.clientForVM(vmID)
	if err != nil {
		return nil, err
	}
	if err := client.DeleteVM(ctx, vmID); err != nil {
		return nil, err
	}
	o.state.DeleteVM(vmID)
	return map[string]interface{}{"vm_id": vmID, "status": "deleted"}, nil
}

// clientForVM resolves the platform.Client backing an already-tracked VM.
func (o *Overseer) clientForVM(vmID string) (platform.Client, systemstate.VM, error) {
	vm, ok := o.state.GetVM(vmID)
	if !ok {
		return nil, systemstate.VM{}, fmt.Errorf("dispatch: unknown vm %q", vmID)
	}
	client, err := o.clients.Get(platform.Name(vm.Platform))
	if err != nil {
		return nil, systemstate.VM{}, err
	}
	return client, vm, nil
}
