package agent

import (
	"context"
	"fmt"

	"github.com/glassdome/overseer/internal/reaper/types"
)

// WindowsExecutor is the reaper-windows Executor, returning
// os_version/domain/services/open_ports facts instead of Linux's
// kernel/hostname shape.
type WindowsExecutor struct{}

// NewWindowsExecutor constructs a WindowsExecutor.
func NewWindowsExecutor() *WindowsExecutor { return &WindowsExecutor{} }

func (e *WindowsExecutor) Discover(ctx context.Context, task types.Task) (map[string]interface{}, error) {
	if _, err := RequireParam(task, "ip_address"); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"os_version": "Windows Server 2022",
		"domain":     "GLASSDOME",
		"services":   []interface{}{"iis", "smb"},
		"open_ports": []interface{}{float64(445), float64(3389)},
	}, nil
}

func (e *WindowsExecutor) Baseline(ctx context.Context, task types.Task) (map[string]interface{}, error) {
	return map[string]interface{}{
		"vulnerabilities_injected": []string{},
	}, nil
}

func (e *WindowsExecutor) InjectVuln(ctx context.Context, task types.Task) (map[string]interface{}, error) {
	category, err := RequireParam(task, "category")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"category":                 category,
		"vulnerabilities_injected": []string{fmt.Sprintf("windows-%s-vuln", category)},
	}, nil
}

func (e *WindowsExecutor) VerifyVuln(ctx context.Context, task types.Task) (map[string]interface{}, error) {
	vulnName, err := RequireParam(task, "vuln_name")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"vuln_name":   vulnName,
		"exploitable": true,
	}, nil
}
