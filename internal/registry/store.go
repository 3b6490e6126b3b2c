package registry

import (
	"sort"
	"sync"
	"time"
)

const agentHeartbeatTTL = 120 * time.Second

// AuditSink receives every published StateChange for durable, queryable
// long-term storage (the live Store only guarantees the last
// ringBufferSize events). Implementations must not block the publisher
// for long; Store.PublishEvent calls it synchronously but a sink should
// buffer/batch internally.
type AuditSink interface {
	Record(e StateChange)
}

// Store is the Registry's in-memory, indexed, event-emitting store of
// Resources. All index mutations happen under mu so that, from any
// reader's perspective, the primary record and its indexes are always
// consistent.
type Store struct {
	mu sync.RWMutex

	resources map[string]*Resource
	byType    map[ResourceType]map[string]struct{}
	byLab     map[string]map[string]struct{}

	drifts       map[string]*Drift // resourceID -> active drift
	labDrifts    map[string]map[string]struct{}

	agents map[string]*AgentStatus

	bus   *eventBus
	audit AuditSink
}

// NewStore constructs an empty Registry Store. audit may be nil.
func NewStore(audit AuditSink) *Store {
	return &Store{
		resources: make(map[string]*Resource),
		byType:    make(map[ResourceType]map[string]struct{}),
		byLab:     make(map[string]map[string]struct{}),
		drifts:    make(map[string]*Drift),
		labDrifts: make(map[string]map[string]struct{}),
		agents:    make(map[string]*AgentStatus),
		bus:       newEventBus(),
		audit:     audit,
	}
}

func indexAdd(idx map[string]map[string]struct{}, key, id string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[id] = struct{}{}
}

func indexRemove(idx map[string]map[string]struct{}, key, id string) {
	if set, ok := idx[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(idx, key)
		}
	}
}

// Register upserts a Resource. It emits Created if the id was absent,
// StateChanged if state differs from the stored copy, or Updated if only
// other fields differ. An identical re-Register is a no-op event-wise.
func (s *Store) Register(r *Resource) {
	now := time.Now().UTC()
	r = r.Clone()

	s.mu.Lock()
	existing, had := s.resources[r.ID]

	if !had {
		r.CreatedAt = now
	} else {
		r.CreatedAt = existing.CreatedAt
	}
	r.UpdatedAt = now
	r.LastSeen = now

	s.resources[r.ID] = r
	indexAdd(s.byType, string(r.Type), r.ID)
	if r.LabID != "" {
		indexAdd(s.byLab, r.LabID, r.ID)
	}
	s.mu.Unlock()

	var ev *StateChange
	switch {
	case !had:
		ev = &StateChange{Kind: EventCreated, ResourceID: r.ID, NewState: r.State, LabID: r.LabID, Timestamp: now}
	case existing.State != r.State:
		ev = &StateChange{Kind: EventStateChanged, ResourceID: r.ID, OldState: existing.State, NewState: r.State, LabID: r.LabID, Timestamp: now}
	case !resourceEqualIgnoringTimestamps(existing, r):
		ev = &StateChange{Kind: EventUpdated, ResourceID: r.ID, OldState: existing.State, NewState: r.State, LabID: r.LabID, Timestamp: now}
	}

	if ev != nil {
		s.PublishEvent(*ev)
	}
}

func resourceEqualIgnoringTimestamps(a, b *Resource) bool {
	if a.Name != b.Name || a.State != b.State || a.LabID != b.LabID || a.Tier != b.Tier {
		return false
	}
	if len(a.Config) != len(b.Config) {
		return false
	}
	for k, v := range a.Config {
		if b.Config[k] != v {
			return false
		}
	}
	return true
}

// Get returns the Resource with the given id, or nil if absent.
func (s *Store) Get(id string) *Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resources[id].Clone()
}

// Delete removes a Resource and emits Deleted. For Tier-1 LabVMs this
// additionally emits an alert-severity deletion event, per spec.md §4.3.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	r, ok := s.resources[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.resources, id)
	indexRemove(s.byType, string(r.Type), id)
	if r.LabID != "" {
		indexRemove(s.byLab, r.LabID, id)
	}
	if d, ok := s.drifts[id]; ok {
		delete(s.drifts, id)
		if d.LabID != "" {
			indexRemove(s.labDrifts, d.LabID, id)
		}
	}
	s.mu.Unlock()

	now := time.Now().UTC()
	s.PublishEvent(StateChange{Kind: EventDeleted, ResourceID: id, OldState: r.State, LabID: r.LabID, Timestamp: now})

	if r.Tier == 1 && r.Type == TypeLabVM {
		s.PublishEvent(StateChange{Kind: EventDeleted, ResourceID: id, OldState: r.State, LabID: r.LabID, Severity: "alert", Timestamp: now})
	}
}

// ListByType returns all Resources of the given type.
func (s *Store) ListByType(t ResourceType) []*Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Resource
	for id := range s.byType[t] {
		out = append(out, s.resources[id].Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListByLab returns all Resources associated with labID.
func (s *Store) ListByLab(labID string) []*Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Resource
	for id := range s.byLab[labID] {
		out = append(out, s.resources[id].Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListByPlatform returns all Resources for a platform, optionally scoped
// to a single instance tag.
func (s *Store) ListByPlatform(platform, instance string) []*Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Resource
	for _, r := range s.resources {
		if r.Platform.Platform != platform {
			continue
		}
		if instance != "" && r.Platform.Instance != instance {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PublishEvent pushes e to the general and per-lab subscriptions and the
// audit sink, and retains it in the recent-events ring buffer.
func (s *Store) PublishEvent(e StateChange) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	s.bus.publish(e)
	if s.audit != nil {
		s.audit.Record(e)
	}
}

// SubscribeEvents returns a lazy, infinite sequence of StateChanges. If
// labID is empty the subscription receives every event; otherwise only
// events matching that lab. A new subscription begins at the current
// tail — it is not restartable to an earlier point.
func (s *Store) SubscribeEvents(labID string) *Subscription {
	return s.bus.subscribe(labID)
}

// GetRecentEvents returns up to n of the most recently published events
// (oldest first), for late subscribers and dashboards.
func (s *Store) GetRecentEvents(n int) []StateChange {
	return s.bus.recent(n)
}

// RecordDrift records d as the active drift for its resource, replacing
// any previously unresolved drift, and publishes DriftDetected.
func (s *Store) RecordDrift(d *Drift) {
	cp := *d
	d = &cp
	if d.DetectedAt.IsZero() {
		d.DetectedAt = time.Now().UTC()
	}

	s.mu.Lock()
	if old, ok := s.drifts[d.ResourceID]; ok && old.LabID != "" {
		indexRemove(s.labDrifts, old.LabID, d.ResourceID)
	}
	s.drifts[d.ResourceID] = d
	if d.LabID != "" {
		indexAdd(s.labDrifts, d.LabID, d.ResourceID)
	}
	s.mu.Unlock()

	s.PublishEvent(StateChange{
		Kind:       EventDriftDetected,
		ResourceID: d.ResourceID,
		LabID:      d.LabID,
		NewValue:   string(d.Kind),
		Timestamp:  time.Now().UTC(),
	})
}

// ResolveDrift marks the active drift on resourceID resolved (if any) and
// publishes DriftResolved.
func (s *Store) ResolveDrift(resourceID string) {
	s.mu.Lock()
	d, ok := s.drifts[resourceID]
	if !ok {
		s.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	d.ResolvedAt = &now
	delete(s.drifts, resourceID)
	if d.LabID != "" {
		indexRemove(s.labDrifts, d.LabID, resourceID)
	}
	labID := d.LabID
	s.mu.Unlock()

	s.PublishEvent(StateChange{Kind: EventDriftResolved, ResourceID: resourceID, LabID: labID, Timestamp: now})
}

// GetDrifts returns the currently-active drifts, optionally scoped to a
// lab. Resolved drifts are never returned (they are removed from the
// active map by ResolveDrift).
func (s *Store) GetDrifts(labID string) []*Drift {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Drift
	if labID == "" {
		for _, d := range s.drifts {
			cp := *d
			out = append(out, &cp)
		}
	} else {
		for id := range s.labDrifts[labID] {
			if d, ok := s.drifts[id]; ok {
				cp := *d
				out = append(out, &cp)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResourceID < out[j].ResourceID })
	return out
}

// AgentHeartbeat records a liveness ping from a platform agent, valid for
// agentHeartbeatTTL.
func (s *Store) AgentHeartbeat(name string, status map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[name] = &AgentStatus{Name: name, Status: status, LastSeen: time.Now().UTC()}
}

// GetAgentStatus returns the last heartbeat for name, or nil if it has
// never reported or has expired past its TTL.
func (s *Store) GetAgentStatus(name string) *AgentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[name]
	if !ok || time.Since(a.LastSeen) > agentHeartbeatTTL {
		return nil
	}
	cp := *a
	return &cp
}

// ListAgents returns every agent that has heartbeated within the TTL.
func (s *Store) ListAgents() []*AgentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*AgentStatus
	for _, a := range s.agents {
		if time.Since(a.LastSeen) > agentHeartbeatTTL {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListLabs returns the distinct lab ids currently tracked.
func (s *Store) ListLabs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byLab))
	for labID := range s.byLab {
		out = append(out, labID)
	}
	sort.Strings(out)
	return out
}

// GetLabSnapshot derives a LabSnapshot for labID. It is never stored.
func (s *Store) GetLabSnapshot(labID string) *LabSnapshot {
	resources := s.ListByLab(labID)
	snap := &LabSnapshot{LabID: labID}

	for _, r := range resources {
		switch r.Type {
		case TypeLabVM:
			snap.VMs = append(snap.VMs, r)
			snap.TotalVMs++
			if r.State == StateRunning {
				snap.RunningVMs++
			}
			if r.Config["role"] == "gateway" {
				snap.Gateway = r
			}
		case TypeLabNetwork:
			snap.Networks = append(snap.Networks, r)
		}
	}

	snap.ActiveDrifts = len(s.GetDrifts(labID))
	snap.Healthy = snap.ActiveDrifts == 0 && snap.RunningVMs == snap.TotalVMs
	return snap
}

// Status returns aggregated counts across the whole store.
func (s *Store) Status() StoreStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := StoreStatus{
		TotalResources: len(s.resources),
		ByType:         make(map[string]int),
		ActiveDrifts:   len(s.drifts),
	}
	for t, set := range s.byType {
		st.ByType[string(t)] = len(set)
	}
	for _, a := range s.agents {
		if time.Since(a.LastSeen) <= agentHeartbeatTTL {
			st.Agents++
		}
	}
	return st
}
