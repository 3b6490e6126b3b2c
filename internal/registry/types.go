// Package registry implements the Registry Store (C2): a keyed, indexed,
// event-emitting store of Resources that platform agents populate and the
// Lab Controller reconciles against.
package registry

import "time"

// ResourceType enumerates the semantic kinds of resource the Registry
// tracks across every platform.
type ResourceType string

const (
	TypeLab          ResourceType = "Lab"
	TypeLabVM        ResourceType = "LabVM"
	TypeLabNetwork   ResourceType = "LabNetwork"
	TypeVM           ResourceType = "VM"
	TypeTemplate     ResourceType = "Template"
	TypeStoragePool  ResourceType = "StoragePool"
	TypeHost         ResourceType = "Host"
	TypeSwitch       ResourceType = "Switch"
	TypeSwitchPort   ResourceType = "SwitchPort"
	TypeVLAN         ResourceType = "VLAN"
	TypeStorageSystem ResourceType = "StorageSystem"
)

// State enumerates the lifecycle states a Resource can be in.
type State string

const (
	StateUnknown  State = "Unknown"
	StateCreating State = "Creating"
	StateRunning  State = "Running"
	StateStopped  State = "Stopped"
	StatePaused   State = "Paused"
	StateError    State = "Error"
	StateDeleting State = "Deleting"
	StateDeleted  State = "Deleted"
	StateDegraded State = "Degraded"
	StateHealthy  State = "Healthy"
)

// PlatformIdentity names the platform, optional instance tag, and
// platform-local id a Resource originates from.
type PlatformIdentity struct {
	Platform   string `json:"platform"`
	Instance   string `json:"instance,omitempty"`
	PlatformID string `json:"platform_id"`
}

// Resource is the Registry's sole entity. Its ID is a composite string
// `<platform>[:<instance>]:<type>:<platform_id>`, globally unique and
// stable across restarts (see BuildID/ParseID).
type Resource struct {
	ID       string           `json:"id"`
	Type     ResourceType     `json:"type"`
	Name     string           `json:"name"`
	Platform PlatformIdentity `json:"platform_identity"`
	State    State            `json:"state"`
	LabID    string           `json:"lab_id,omitempty"`

	Config map[string]string `json:"config,omitempty"`

	DesiredState  State             `json:"desired_state,omitempty"`
	DesiredConfig map[string]string `json:"desired_config,omitempty"`

	Tier int `json:"tier"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// Clone returns a deep copy so callers never share mutable maps with the
// store's internal copy.
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Config = cloneMap(r.Config)
	cp.DesiredConfig = cloneMap(r.DesiredConfig)
	return &cp
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// EventKind enumerates the StateChange event kinds the Registry publishes.
type EventKind string

const (
	EventCreated            EventKind = "Created"
	EventUpdated            EventKind = "Updated"
	EventDeleted            EventKind = "Deleted"
	EventStateChanged       EventKind = "StateChanged"
	EventDriftDetected      EventKind = "DriftDetected"
	EventDriftResolved      EventKind = "DriftResolved"
	EventReconcileStart     EventKind = "ReconcileStart"
	EventReconcileComplete  EventKind = "ReconcileComplete"
	EventReconcileFailed    EventKind = "ReconcileFailed"
	EventAgentHeartbeat     EventKind = "AgentHeartbeat"
)

// StateChange is an immutable-after-publication Registry event.
type StateChange struct {
	Kind       EventKind `json:"kind"`
	ResourceID string    `json:"resource_id,omitempty"`
	OldState   State     `json:"old_state,omitempty"`
	NewState   State     `json:"new_state,omitempty"`
	OldValue   string    `json:"old_value,omitempty"`
	NewValue   string    `json:"new_value,omitempty"`
	LabID      string    `json:"lab_id,omitempty"`
	Agent      string    `json:"agent,omitempty"`
	Severity   string    `json:"severity,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// DriftKind enumerates the kinds of divergence DetectDrift can report.
type DriftKind string

const (
	DriftMissing        DriftKind = "Missing"
	DriftExtra          DriftKind = "Extra"
	DriftStateMismatch  DriftKind = "StateMismatch"
	DriftNameMismatch   DriftKind = "NameMismatch"
	DriftConfigMismatch DriftKind = "ConfigMismatch"
	DriftIPMismatch     DriftKind = "IpMismatch"
	DriftNetworkMismatch DriftKind = "NetworkMismatch"
)

// Severity enumerates Drift severities.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Drift records a single detected divergence between a Resource's desired
// and actual state/configuration. A Resource has at most one active
// (unresolved) Drift at a time.
type Drift struct {
	ResourceID   string    `json:"resource_id"`
	Kind         DriftKind `json:"kind"`
	Expected     string    `json:"expected"`
	Actual       string    `json:"actual"`
	Severity     Severity  `json:"severity"`
	AutoFix      bool      `json:"auto_fix"`
	SuggestedFix string    `json:"suggested_fix"`
	LabID        string    `json:"lab_id,omitempty"`
	DetectedAt   time.Time `json:"detected_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// LabSnapshot is a derived, never-stored grouping of a lab's resources.
type LabSnapshot struct {
	LabID       string      `json:"lab_id"`
	VMs         []*Resource `json:"vms"`
	Networks    []*Resource `json:"networks"`
	Gateway     *Resource   `json:"gateway,omitempty"`
	TotalVMs    int         `json:"total_vms"`
	RunningVMs  int         `json:"running_vms"`
	ActiveDrifts int        `json:"active_drifts"`
	Healthy     bool        `json:"healthy"`
}

// AgentStatus is the last-known heartbeat for a platform agent.
type AgentStatus struct {
	Name      string            `json:"name"`
	Status    map[string]string `json:"status"`
	LastSeen  time.Time         `json:"last_seen"`
}

// StoreStatus is the aggregated-counts view returned by Store.Status().
type StoreStatus struct {
	TotalResources int            `json:"total_resources"`
	ByType         map[string]int `json:"by_type"`
	ActiveDrifts   int            `json:"active_drifts"`
	Agents         int            `json:"agents"`
}
