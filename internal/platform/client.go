// Package platform defines the uniform contract every hypervisor/cloud
// adapter satisfies, so the rest of Glassdome never branches on
// platform kind.
package platform

import "context"

// VMSpec is the declarative input to CreateVM. Memory is in MiB, disk in
// GiB, CPU in whole cores, matching spec units across every adapter.
type VMSpec struct {
	Name          string            `json:"name"`
	TemplateID    string            `json:"template_id"`
	TargetHost    string            `json:"target_host"`
	CPUCores      int               `json:"cpu_cores"`
	MemoryMB      int               `json:"memory_mb"`
	DiskGB        int               `json:"disk_gb"`
	NetworkBridge string            `json:"network_bridge"`
	VLAN          int               `json:"vlan,omitempty"`
	CloudInit     CloudInitConfig   `json:"cloud_init"`
	Tags          []string          `json:"tags,omitempty"`
	Labels        map[string]string `json:"labels,omitempty"`
}

// CloudInitConfig seeds first-boot configuration where the platform
// supports it; adapters that don't (e.g. some cloud VM image flows) may
// ignore fields they can't express.
type CloudInitConfig struct {
	UserData    string   `json:"user_data,omitempty"`
	SSHKeys     []string `json:"ssh_keys,omitempty"`
	IPAddress   string   `json:"ip_address,omitempty"`
	Gateway     string   `json:"gateway,omitempty"`
	Nameservers []string `json:"nameservers,omitempty"`
}

// VMInfo is the small value struct every read operation returns. ID is
// platform-local (e.g. a Proxmox VMID, an EC2 instance id); callers that
// need the composite Glassdome resource id build it via registry.BuildID.
type VMInfo struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Host     string            `json:"host"`
	Status   string            `json:"status"` // running, stopped, paused, unknown
	IP       string            `json:"ip,omitempty"`
	CPUCores int               `json:"cpu_cores"`
	MemoryMB int               `json:"memory_mb"`
	DiskGB   int               `json:"disk_gb"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// HostInfo describes a hypervisor node or cloud compute host.
type HostInfo struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Status         string  `json:"status"`
	CPUAvailable   int     `json:"cpu_available"`
	MemoryAvailMB  int     `json:"memory_avail_mb"`
	DiskAvailGB    int     `json:"disk_avail_gb"`
	ResidentVMIDs  []string
}

// NetworkInfo describes a virtual network/bridge/VLAN visible to the
// platform.
type NetworkInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	VLAN   int    `json:"vlan,omitempty"`
	Bridge string `json:"bridge,omitempty"`
}

// Client is the uniform abstraction every platform adapter satisfies.
// Implementations must be safe for concurrent use by multiple
// goroutines; connection pooling and rate-limit accounting are each
// adapter's own responsibility. Errors returned are always one of the
// tagged kinds in internal/errors: AuthError (permanent), NotFoundError
// (delete is idempotent: deleting an absent VM is success, not an
// error), TransientError (retriable), ValidationError (permanent,
// malformed spec).
type Client interface {
	TestConnection(ctx context.Context) error
	ListVMs(ctx context.Context) ([]VMInfo, error)
	GetVM(ctx context.Context, id string) (*VMInfo, error)
	CreateVM(ctx context.Context, spec VMSpec) (*VMInfo, error)
	StartVM(ctx context.Context, id string) error
	StopVM(ctx context.Context, id string) error
	DeleteVM(ctx context.Context, id string) error
	RenameVM(ctx context.Context, id, name string) error
	GetVMIP(ctx context.Context, id string) (string, error)
	ListHosts(ctx context.Context) ([]HostInfo, error)
	ListNetworks(ctx context.Context) ([]NetworkInfo, error)
}
