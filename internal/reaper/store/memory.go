package store

import (
	"context"
	"sync"

	"github.com/glassdome/overseer/internal/reaper/types"
)

// MemoryStore is an in-process MissionStore, used for single-process
// deployments without Postgres and for engine/planner unit tests.
type MemoryStore struct {
	mu       sync.RWMutex
	missions map[string]types.MissionState
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{missions: make(map[string]types.MissionState)}
}

// Load returns a deep copy of the stored mission, or ok=false if absent.
func (s *MemoryStore) Load(ctx context.Context, missionID string) (types.MissionState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.missions[missionID]
	if !ok {
		return types.MissionState{}, false, nil
	}
	return m.Clone(), true, nil
}

// Save replaces the stored mission wholesale with a deep copy of mission.
func (s *MemoryStore) Save(ctx context.Context, mission types.MissionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missions[mission.MissionID] = mission.Clone()
	return nil
}

// Delete removes a mission. Deleting an absent mission is a no-op.
func (s *MemoryStore) Delete(ctx context.Context, missionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.missions, missionID)
	return nil
}

// ListMissions returns a deep copy of every stored mission.
func (s *MemoryStore) ListMissions(ctx context.Context) ([]types.MissionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.MissionState, 0, len(s.missions))
	for _, m := range s.missions {
		out = append(out, m.Clone())
	}
	return out, nil
}
