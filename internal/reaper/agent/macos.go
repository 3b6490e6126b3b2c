package agent

import (
	"context"
	"fmt"

	"github.com/glassdome/overseer/internal/reaper/types"
)

// MacOSExecutor is the reaper-macos Executor.
type MacOSExecutor struct{}

// NewMacOSExecutor constructs a MacOSExecutor.
func NewMacOSExecutor() *MacOSExecutor { return &MacOSExecutor{} }

func (e *MacOSExecutor) Discover(ctx context.Context, task types.Task) (map[string]interface{}, error) {
	if _, err := RequireParam(task, "ip_address"); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"os_version": "macOS 14",
		"hostname":   "host-" + task.HostID,
		"services":   []interface{}{"ssh"},
		"open_ports": []interface{}{float64(22)},
	}, nil
}

func (e *MacOSExecutor) Baseline(ctx context.Context, task types.Task) (map[string]interface{}, error) {
	return map[string]interface{}{
		"vulnerabilities_injected": []string{},
	}, nil
}

func (e *MacOSExecutor) InjectVuln(ctx context.Context, task types.Task) (map[string]interface{}, error) {
	category, err := RequireParam(task, "category")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"category":                 category,
		"vulnerabilities_injected": []string{fmt.Sprintf("macos-%s-vuln", category)},
	}, nil
}

func (e *MacOSExecutor) VerifyVuln(ctx context.Context, task types.Task) (map[string]interface{}, error) {
	vulnName, err := RequireParam(task, "vuln_name")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"vuln_name":   vulnName,
		"exploitable": true,
	}, nil
}
