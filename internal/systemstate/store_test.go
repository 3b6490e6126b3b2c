package systemstate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_MissingFile_StartsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(filepath.Join(dir, "system_state.json"), zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, s.ListVMs())
}

func TestPutVM_PersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "system_state.json")

	s, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	s.PutVM(VM{ID: "vm-1", Name: "web-1", Platform: "proxmox", Status: "running"})

	reloaded, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	vm, ok := reloaded.GetVM("vm-1")
	require.True(t, ok)
	assert.Equal(t, "web-1", vm.Name)
}

func TestHasResources_AbsentHostIsInsufficient(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(filepath.Join(dir, "system_state.json"), zap.NewNop())
	require.NoError(t, err)

	ok := s.HasResources(HostKey{Platform: "proxmox", Identifier: "pve1"}, Requirement{CPUCores: 2, MemoryMB: 1024, DiskGB: 10})
	assert.False(t, ok)
}

func TestHasResources_ComparesAvailability(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(filepath.Join(dir, "system_state.json"), zap.NewNop())
	require.NoError(t, err)

	key := HostKey{Platform: "proxmox", Identifier: "pve1"}
	s.PutHost(Host{Platform: "proxmox", Identifier: "pve1", CPUAvailable: 4, MemoryAvailMB: 8192, DiskAvailGB: 100})

	assert.True(t, s.HasResources(key, Requirement{CPUCores: 2, MemoryMB: 4096, DiskGB: 50}))
	assert.False(t, s.HasResources(key, Requirement{CPUCores: 8, MemoryMB: 4096, DiskGB: 50}))
}

func TestDeleteVM_RemovesEntry(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(filepath.Join(dir, "system_state.json"), zap.NewNop())
	require.NoError(t, err)

	s.PutVM(VM{ID: "vm-1", Name: "web-1"})
	s.DeleteVM("vm-1")

	_, ok := s.GetVM("vm-1")
	assert.False(t, ok)
}
