// Package wire provides the Overseer's dependency-injection wiring,
// grounded on the teacher's infrastructure/wire provider-function style.
// Every provideX function takes only what it needs from *config.Config
// and returns one collaborator, so wire_gen.go's construction order
// mirrors exactly what `wire` would generate for this set.
package wire

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/glassdome/overseer/internal/agents"
	"github.com/glassdome/overseer/internal/config"
	"github.com/glassdome/overseer/internal/controller"
	"github.com/glassdome/overseer/internal/knowledgebase"
	"github.com/glassdome/overseer/internal/overseer"
	"github.com/glassdome/overseer/internal/platform"
	"github.com/glassdome/overseer/internal/reaper/planner"
	"github.com/glassdome/overseer/internal/reaper/queue"
	"github.com/glassdome/overseer/internal/reaper/store"
	"github.com/glassdome/overseer/internal/registry"
	"github.com/glassdome/overseer/internal/systemstate"
)

// tier1PollInterval matches spec.md §4.9's Tier-1 cadence; platform
// agents here always run at Tier 1 since Glassdome has no Tier-2/3
// resource classes of its own (those tiers exist for lab-internal
// resources the Controller reconciles, not for the platform agents
// that merely observe).
const tier1PollInterval = 1 * time.Second

func providePlatformAgents(cfg *config.Config, clients *platform.Factory, reg *registry.Store, logger *zap.Logger) []*agents.Agent {
	result := make([]*agents.Agent, 0, len(clients.Enabled()))
	for _, name := range clients.Enabled() {
		client, err := clients.Get(name)
		if err != nil {
			continue
		}
		result = append(result, agents.New(fmt.Sprintf("agent-%s", name), 1, tier1PollInterval, client, reg, logger))
	}
	return result
}

func provideController(reg *registry.Store, clients *platform.Factory, logger *zap.Logger) *controller.Controller {
	return controller.New(reg, clients, logger, 0)
}

func provideSystemState(cfg *config.Config, logger *zap.Logger) (*systemstate.Store, error) {
	return systemstate.Load(cfg.SystemState.Path, logger)
}

func provideRegistry(cfg *config.Config, logger *zap.Logger) (*registry.Store, error) {
	if !cfg.ClickHouse.Enabled {
		return registry.NewStore(nil), nil
	}
	audit, err := registry.NewClickHouseAudit(registry.ClickHouseAuditConfig{
		Address:  cfg.ClickHouse.Address,
		Database: cfg.ClickHouse.Database,
		Username: cfg.ClickHouse.User,
		Password: cfg.ClickHouse.Password,
	}, logger)
	if err != nil {
		return nil, err
	}
	return registry.NewStore(audit), nil
}

func providePlatformFactory(cfg *config.Config) (*platform.Factory, error) {
	return platform.NewFactory(cfg.Platforms)
}

func provideKnowledgeBase(cfg *config.Config) knowledgebase.KnowledgeBase {
	return knowledgebase.Noop{}
}

func provideTaskQueue(cfg *config.Config, logger *zap.Logger) (queue.TaskQueue, func(), error) {
	if cfg.Redis.Backend != "redis" {
		return queue.NewMemoryQueue(), func() {}, nil
	}
	client, err := queue.ConnectRedis(cfg.Redis, logger)
	if err != nil {
		return nil, nil, err
	}
	return queue.NewRedisQueue(client), func() { client.Close() }, nil
}

func provideEventBus(cfg *config.Config, logger *zap.Logger) (queue.EventBus, func(), error) {
	if cfg.Redis.Backend != "redis" {
		return queue.NewMemoryEventBus(), func() {}, nil
	}
	client, err := queue.ConnectRedis(cfg.Redis, logger)
	if err != nil {
		return nil, nil, err
	}
	return queue.NewRedisQueue(client), func() { client.Close() }, nil
}

func provideMissionStore(cfg *config.Config) (store.MissionStore, func(), error) {
	if cfg.Database.Host == "" {
		return store.NewMemoryStore(), func() {}, nil
	}
	db, err := store.ConnectPostgres(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgresStore(db), func() { sqlDB.Close() }, nil
}

func providePlanner(cfg *config.Config, logger *zap.Logger) planner.Planner {
	catalog, err := planner.LoadCatalog(cfg.Reaper.PlaybookCatalog)
	if err != nil {
		logger.Warn("falling back to the default playbook catalog", zap.Error(err))
		catalog = planner.DefaultCatalog()
	}
	return planner.New(catalog)
}

func provideOverseerConfig(cfg *config.Config) overseer.Config {
	return overseer.Config{
		MonitorInterval:   cfg.Overseer.MonitorInterval,
		StateSyncInterval: cfg.Overseer.StateSyncInterval,
		HealthInterval:    cfg.Overseer.HealthInterval,
		RequestQueueSize:  cfg.Overseer.RequestQueueSize,
		MaxDeployCount:    cfg.Overseer.MaxDeployCount,
	}
}
