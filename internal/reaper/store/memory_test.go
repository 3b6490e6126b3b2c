package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glassdome/overseer/internal/reaper/types"
)

func TestMemoryStore_SaveLoad_RoundTrips(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	m := types.MissionState{
		MissionID: "m1",
		LabID:     "lab-1",
		Status:    types.MissionRunning,
		Hosts: map[string]types.HostState{
			"h1": {HostID: "h1", OS: "linux"},
		},
	}
	require.NoError(t, s.Save(ctx, m))

	got, ok, err := s.Load(ctx, "m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "lab-1", got.LabID)
	assert.Equal(t, "linux", got.Hosts["h1"].OS)
}

func TestMemoryStore_Save_DoesNotShareReferences(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	m := types.MissionState{
		MissionID: "m1",
		Hosts: map[string]types.HostState{
			"h1": {HostID: "h1", LastTasks: []string{"t1"}},
		},
	}
	require.NoError(t, s.Save(ctx, m))

	m.Hosts["h1"] = types.HostState{HostID: "h1", LastTasks: []string{"t1", "t2"}}

	got, _, err := s.Load(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, got.Hosts["h1"].LastTasks)
}

func TestMemoryStore_Load_MissingReturnsOkFalse(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_ListMissions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, types.MissionState{MissionID: "m1"}))
	require.NoError(t, s.Save(ctx, types.MissionState{MissionID: "m2"}))

	list, err := s.ListMissions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, types.MissionState{MissionID: "m1"}))
	require.NoError(t, s.Delete(ctx, "m1"))

	_, ok, err := s.Load(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, ok)
}
