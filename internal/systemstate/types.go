package systemstate

import "time"

// VM is the Overseer's own ledger entry for a VM it believes it has
// deployed — distinct from a registry.Resource, which is what an agent
// actually observed on the platform.
type VM struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Platform     string    `json:"platform"`
	Status       string    `json:"status"`
	IP           string    `json:"ip,omitempty"`
	Specs        VMSpecs   `json:"specs"`
	Services     []string  `json:"services"`
	IsProduction bool      `json:"is_production"`
	DeployedBy   string    `json:"deployed_by"`
	DeployedAt   time.Time `json:"deployed_at"`
}

// VMSpecs mirrors the declarative platform.VMSpec sizing fields, kept
// independent so systemstate never imports the platform package.
type VMSpecs struct {
	CPUCores int    `json:"cpu_cores"`
	MemoryMB int    `json:"memory_mb"`
	DiskGB   int    `json:"disk_gb"`
	Host     string `json:"host"`
}

// HostKey identifies a Host by its composite (platform, identifier) key.
type HostKey struct {
	Platform   string `json:"platform"`
	Identifier string `json:"identifier"`
}

// Host tracks a hypervisor/cloud host's resource totals as the Overseer
// last observed them, for request-gate resource checks.
type Host struct {
	Platform        string   `json:"platform"`
	Identifier      string   `json:"identifier"`
	Status          string   `json:"status"`
	CPUAvailable    int      `json:"cpu_available"`
	MemoryAvailMB   int      `json:"memory_avail_mb"`
	DiskAvailGB     int      `json:"disk_avail_gb"`
	ResidentVMIDs   []string `json:"resident_vm_ids"`
}

// ServiceKey identifies a Service by its composite (vm_id, name) key.
type ServiceKey struct {
	VMID string `json:"vm_id"`
	Name string `json:"name"`
}

// Service is a network-facing endpoint exposed by a deployed VM.
type Service struct {
	VMID   string `json:"vm_id"`
	Name   string `json:"name"`
	Port   int    `json:"port"`
	URL    string `json:"url,omitempty"`
	Status string `json:"status"`
}

// RequestStatus enumerates a PendingRequest's lifecycle.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestDenied    RequestStatus = "denied"
	RequestExecuting RequestStatus = "executing"
	RequestCompleted RequestStatus = "completed"
	RequestFailed    RequestStatus = "failed"
)

// PendingRequest is a single request moving through the Overseer's
// request gate and execution loop.
type PendingRequest struct {
	ID            string                 `json:"id"`
	Action        string                 `json:"action"`
	User          string                 `json:"user"`
	Params        map[string]interface{} `json:"params"`
	Status        RequestStatus          `json:"status"`
	SubmittedAt   time.Time              `json:"submitted_at"`
	ApprovedAt    *time.Time             `json:"approved_at,omitempty"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
	Result        map[string]interface{} `json:"result,omitempty"`
	DenialReason  string                 `json:"denial_reason,omitempty"`
}

// Requirement is what HasResources checks a host's availability against.
type Requirement struct {
	CPUCores int
	MemoryMB int
	DiskGB   int
}
