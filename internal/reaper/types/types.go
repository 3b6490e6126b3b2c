// Package types holds the data shapes shared across every Reaper
// component: the task queue, mission store, planner, engine, and
// agents all speak these structs rather than each other's internals.
package types

import "time"

// Task is a unit of work addressed to one Reaper agent type.
type Task struct {
	ID        string                 `json:"id"`
	MissionID string                 `json:"mission_id"`
	HostID    string                 `json:"host_id"`
	AgentType string                 `json:"agent_type"` // reaper-linux, reaper-windows, reaper-macos
	Action    string                 `json:"action"`     // "<os>.<verb>", e.g. linux.discover
	Params    map[string]interface{} `json:"params"`
}

// ResultStatus enumerates a ResultEvent's outcome.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultError   ResultStatus = "error"
	ResultPartial ResultStatus = "partial"
)

// ResultEvent is what an agent publishes back after executing a Task.
type ResultEvent struct {
	TaskID      string                 `json:"task_id"`
	MissionID   string                 `json:"mission_id"`
	HostID      string                 `json:"host_id"`
	AgentType   string                 `json:"agent_type"`
	Action      string                 `json:"action"`
	Status      ResultStatus           `json:"status"`
	Summary     string                 `json:"summary"`
	Stdout      string                 `json:"stdout,omitempty"` // bounded tail
	Stderr      string                 `json:"stderr,omitempty"` // bounded tail
	Data        map[string]interface{} `json:"data,omitempty"`
	LogsRef     string                 `json:"logs_ref,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Retriable   bool                   `json:"retriable"`
	ErrorCode   string                 `json:"error_code,omitempty"`
}

// HostLastStatus enumerates HostState.LastStatus.
type HostLastStatus string

const (
	HostUnknown  HostLastStatus = "unknown"
	HostHealthy  HostLastStatus = "healthy"
	HostDegraded HostLastStatus = "degraded"
	HostError    HostLastStatus = "error"
)

// HostState tracks one mission target host's progress through the
// mission's task graph.
type HostState struct {
	HostID                 string                 `json:"host_id"`
	OS                     string                 `json:"os"`
	IPAddress              string                 `json:"ip_address"`
	LastStatus             HostLastStatus         `json:"last_status"`
	LastTasks              []string               `json:"last_tasks"` // ring of recent task ids
	FailureCount           int                    `json:"failure_count"`
	MaxFailures            int                    `json:"max_failures"`
	Locked                 bool                   `json:"locked"`
	DiscoveredFacts        map[string]interface{} `json:"discovered_facts"`
	VulnerabilitiesInjected []string              `json:"vulnerabilities_injected"`
}

// MissionStatus enumerates MissionState.Status.
type MissionStatus string

const (
	MissionPending   MissionStatus = "pending"
	MissionRunning   MissionStatus = "running"
	MissionCompleted MissionStatus = "completed"
	MissionFailed    MissionStatus = "failed"
	MissionCancelled MissionStatus = "cancelled"
)

// IsTerminal reports whether no further state transitions or task
// emissions may occur once a mission has reached this status.
func (s MissionStatus) IsTerminal() bool {
	return s == MissionCompleted || s == MissionFailed || s == MissionCancelled
}

// MissionState is the full, serializable state of one Reaper mission.
type MissionState struct {
	MissionID     string               `json:"mission_id"`
	LabID         string               `json:"lab_id"`
	MissionType   string               `json:"mission_type"`
	Hosts         map[string]HostState `json:"hosts"`
	PendingTasks  []string             `json:"pending_tasks"`
	CompletedTasks []string            `json:"completed_tasks"`
	FailedTasks   []string             `json:"failed_tasks"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	Status        MissionStatus        `json:"status"`
}

// Clone returns a deep copy so stored and in-memory copies never share
// references, per the Mission Store's "no shared references" invariant.
func (m MissionState) Clone() MissionState {
	cp := m
	cp.Hosts = make(map[string]HostState, len(m.Hosts))
	for k, h := range m.Hosts {
		hc := h
		hc.LastTasks = append([]string(nil), h.LastTasks...)
		hc.VulnerabilitiesInjected = append([]string(nil), h.VulnerabilitiesInjected...)
		hc.DiscoveredFacts = make(map[string]interface{}, len(h.DiscoveredFacts))
		for fk, fv := range h.DiscoveredFacts {
			hc.DiscoveredFacts[fk] = fv
		}
		cp.Hosts[k] = hc
	}
	cp.PendingTasks = append([]string(nil), m.PendingTasks...)
	cp.CompletedTasks = append([]string(nil), m.CompletedTasks...)
	cp.FailedTasks = append([]string(nil), m.FailedTasks...)
	return cp
}
