// Package store implements the Reaper Mission Store (C8): per-mission
// persistence of MissionState. Saving is a full-record replace; no
// cross-mission transactions are required.
package store

import (
	"context"

	"github.com/glassdome/overseer/internal/reaper/types"
)

// MissionStore is the persistence boundary the Reaper Engine reads and
// writes through. Save must serialise mission by value — the caller and
// the store must never end up sharing a map or slice reference.
type MissionStore interface {
	Load(ctx context.Context, missionID string) (types.MissionState, bool, error)
	Save(ctx context.Context, mission types.MissionState) error
	Delete(ctx context.Context, missionID string) error
	ListMissions(ctx context.Context) ([]types.MissionState, error)
}
