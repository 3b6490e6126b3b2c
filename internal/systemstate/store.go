// Package systemstate implements the Overseer's durable, Overseer-local
// ledger: the VMs/Hosts/Services/Requests it believes it has deployed.
// It is not the Registry — the Registry is what agents observe on the
// platforms; this is what the Overseer itself remembers asking for.
package systemstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// document is the on-disk shape: a single flat JSON file, persisted on
// every mutation, loaded whole at startup.
type document struct {
	VMs      map[string]VM               `json:"vms"`
	Hosts    map[string]Host             `json:"hosts"`    // keyed by "platform:identifier"
	Services map[string]Service          `json:"services"` // keyed by "vm_id:name"
	Requests map[string]PendingRequest   `json:"requests"`
}

// Store is the in-memory, lock-guarded mirror of document, flushed to
// disk (write-temp-then-rename, so a crash mid-write never corrupts the
// previous good copy) after every mutation.
type Store struct {
	mu     sync.RWMutex
	path   string
	logger *zap.Logger
	doc    document
}

// Load reads path if it exists, or starts from an empty document if it
// doesn't (first run). path's directory is created if absent.
func Load(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger,
		doc: document{
			VMs:      make(map[string]VM),
			Hosts:    make(map[string]Host),
			Services: make(map[string]Service),
			Requests: make(map[string]PendingRequest),
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("systemstate: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("systemstate: parse %s: %w", path, err)
	}
	return s, nil
}

func hostKey(k HostKey) string    { return k.Platform + ":" + k.Identifier }
func serviceKey(k ServiceKey) string { return k.VMID + ":" + k.Name }

// persist writes the whole document atomically: write to a temp file in
// the same directory, then rename over the target path.
func (s *Store) persist() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("systemstate: mkdir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("systemstate: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".system_state-*.tmp")
	if err != nil {
		return fmt.Errorf("systemstate: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("systemstate: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("systemstate: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("systemstate: rename temp file: %w", err)
	}
	return nil
}

func (s *Store) persistOrLog() {
	if err := s.persist(); err != nil {
		s.logger.Error("systemstate: persist failed", zap.Error(err))
	}
}

// PutVM upserts a VM and persists.
func (s *Store) PutVM(vm VM) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.VMs[vm.ID] = vm
	s.persistOrLog()
}

// GetVM returns the VM by id, or ok=false if absent.
func (s *Store) GetVM(id string) (VM, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vm, ok := s.doc.VMs[id]
	return vm, ok
}

// DeleteVM removes a VM and persists.
func (s *Store) DeleteVM(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.doc.VMs, id)
	s.persistOrLog()
}

// ListVMs returns a snapshot slice of all known VMs.
func (s *Store) ListVMs() []VM {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vms := make([]VM, 0, len(s.doc.VMs))
	for _, vm := range s.doc.VMs {
		vms = append(vms, vm)
	}
	return vms
}

// PutHost upserts a Host and persists.
func (s *Store) PutHost(h Host) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Hosts[hostKey(HostKey{Platform: h.Platform, Identifier: h.Identifier})] = h
	s.persistOrLog()
}

// GetHost returns the Host by composite key, or ok=false if absent.
func (s *Store) GetHost(k HostKey) (Host, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.doc.Hosts[hostKey(k)]
	return h, ok
}

// ListHosts returns a snapshot slice of all known Hosts.
func (s *Store) ListHosts() []Host {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hosts := make([]Host, 0, len(s.doc.Hosts))
	for _, h := range s.doc.Hosts {
		hosts = append(hosts, h)
	}
	return hosts
}

// PutService upserts a Service and persists.
func (s *Store) PutService(svc Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Services[serviceKey(ServiceKey{VMID: svc.VMID, Name: svc.Name})] = svc
	s.persistOrLog()
}

// ListServicesForVM returns every Service belonging to vmID.
func (s *Store) ListServicesForVM(vmID string) []Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var svcs []Service
	for _, svc := range s.doc.Services {
		if svc.VMID == vmID {
			svcs = append(svcs, svc)
		}
	}
	return svcs
}

// PutRequest upserts a PendingRequest and persists.
func (s *Store) PutRequest(r PendingRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Requests[r.ID] = r
	s.persistOrLog()
}

// GetRequest returns the PendingRequest by id, or ok=false if absent.
func (s *Store) GetRequest(id string) (PendingRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.doc.Requests[id]
	return r, ok
}

// ListRequests returns a snapshot slice of all known requests.
func (s *Store) ListRequests() []PendingRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reqs := make([]PendingRequest, 0, len(s.doc.Requests))
	for _, r := range s.doc.Requests {
		reqs = append(reqs, r)
	}
	return reqs
}

// HasResources compares a Requirement against a host's last-known
// availability. A host that isn't in the ledger at all is treated as
// insufficient, same as any individual absent field would be.
func (s *Store) HasResources(k HostKey, req Requirement) bool {
	h, ok := s.GetHost(k)
	if !ok {
		return false
	}
	return h.CPUAvailable >= req.CPUCores &&
		h.MemoryAvailMB >= req.MemoryMB &&
		h.DiskAvailGB >= req.DiskGB
}

// Persist forces an immediate write of the current in-memory document,
// used by the Overseer's graceful-shutdown path.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}
