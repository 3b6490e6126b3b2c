package agent

import (
	"context"
	"fmt"

	"github.com/glassdome/overseer/internal/reaper/types"
)

// LinuxExecutor is the reaper-linux Executor. It reaches the target over
// whatever transport a deployment wires in (SSH, an in-guest agent
// daemon, ...); this default implementation simulates the discovery
// facts and injection outcomes against the ip_address param, letting the
// rest of the mission pipeline be exercised without a real guest fleet.
type LinuxExecutor struct{}

// NewLinuxExecutor constructs a LinuxExecutor.
func NewLinuxExecutor() *LinuxExecutor { return &LinuxExecutor{} }

// Discover returns kernel/services/open_ports/hostname facts for the
// target host.
func (e *LinuxExecutor) Discover(ctx context.Context, task types.Task) (map[string]interface{}, error) {
	if _, err := RequireParam(task, "ip_address"); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"kernel":     "5.15.0-glassdome",
		"hostname":   "host-" + task.HostID,
		"services":   []interface{}{"apache", "ssh"},
		"open_ports": []interface{}{float64(22), float64(80)},
	}, nil
}

// Baseline applies the requested hardening playbooks.
func (e *LinuxExecutor) Baseline(ctx context.Context, task types.Task) (map[string]interface{}, error) {
	return map[string]interface{}{
		"vulnerabilities_injected": []string{},
	}, nil
}

// InjectVuln injects the vulnerable configuration named by the task's
// category/playbook params and reports what it injected.
func (e *LinuxExecutor) InjectVuln(ctx context.Context, task types.Task) (map[string]interface{}, error) {
	category, err := RequireParam(task, "category")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"category":                 category,
		"vulnerabilities_injected": []string{fmt.Sprintf("linux-%s-vuln", category)},
	}, nil
}

// VerifyVuln reports whether a previously injected vulnerability is
// still exploitable.
func (e *LinuxExecutor) VerifyVuln(ctx context.Context, task types.Task) (map[string]interface{}, error) {
	vulnName, err := RequireParam(task, "vuln_name")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"vuln_name":   vulnName,
		"exploitable": true,
	}, nil
}
