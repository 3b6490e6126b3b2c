package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glassdome/overseer/internal/config"
	"github.com/glassdome/overseer/internal/platform"
	"github.com/glassdome/overseer/internal/reaper/queue"
	"github.com/glassdome/overseer/internal/registry"
)

func TestProvideTaskQueue_DefaultsToMemoryBackend(t *testing.T) {
	cfg := &config.Config{Redis: config.RedisConfig{Backend: "memory"}}
	q, cleanup, err := provideTaskQueue(cfg, zap.NewNop())
	require.NoError(t, err)
	defer cleanup()

	_, ok := q.(*queue.MemoryQueue)
	assert.True(t, ok)
}

func TestProvideMissionStore_DefaultsToMemoryWhenNoHost(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{}}
	_, cleanup, err := provideMissionStore(cfg)
	require.NoError(t, err)
	cleanup()
}

func TestProvideOverseerConfig_MapsFieldsDirectly(t *testing.T) {
	cfg := &config.Config{Overseer: config.OverseerConfig{
		RequestQueueSize: 64,
		MaxDeployCount:   5,
	}}
	got := provideOverseerConfig(cfg)
	assert.Equal(t, 64, got.RequestQueueSize)
	assert.Equal(t, 5, got.MaxDeployCount)
}

func TestProvidePlatformAgents_OneAgentPerEnabledPlatform(t *testing.T) {
	clients := platform.NewFactoryWithClients(map[platform.Name]platform.Client{
		platform.Proxmox: nil,
	})
	cfg := &config.Config{}
	agentList := providePlatformAgents(cfg, clients, registry.NewStore(nil), zap.NewNop())
	assert.Len(t, agentList, 1)
}

func TestProvideController_BuildsNonNilController(t *testing.T) {
	clients := platform.NewFactoryWithClients(nil)
	ctrl := provideController(registry.NewStore(nil), clients, zap.NewNop())
	assert.NotNil(t, ctrl)
}
