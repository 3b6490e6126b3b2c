package planner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Catalog maps a playbook key (e.g. "baseline_linux", "web_linux") to the
// ordered list of playbook names a task should carry. It is injected at
// planner construction, not hard-coded, so operators can extend the
// vulnerability set without a code change.
type Catalog map[string][]string

// Get returns the playbook list for key, or nil if the catalog has no
// entry for it (an empty/absent playbook list is tolerated by agents).
func (c Catalog) Get(key string) []string {
	return c[key]
}

// DefaultCatalog is the built-in playbook set guaranteeing the minimum
// keys the default rule-based planner needs.
func DefaultCatalog() Catalog {
	return Catalog{
		"baseline_linux":   {"linux-hardening-baseline"},
		"baseline_windows": {"windows-hardening-baseline"},
		"web_linux":        {"outdated-apache-cve", "weak-tls-config"},
		"network_linux":    {"weak-ssh-creds", "open-telnet"},
	}
}

// LoadCatalog reads a YAML playbook catalog from path: a flat mapping of
// key to a list of playbook names.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("planner: read catalog %s: %w", path, err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("planner: parse catalog %s: %w", path, err)
	}
	return cat, nil
}
