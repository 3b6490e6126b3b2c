//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/glassdome/overseer/internal/config"
	"github.com/glassdome/overseer/internal/knowledgebase"
	"github.com/glassdome/overseer/internal/overseer"
	"github.com/glassdome/overseer/internal/platform"
	"github.com/glassdome/overseer/internal/reaper/planner"
	"github.com/glassdome/overseer/internal/reaper/queue"
	"github.com/glassdome/overseer/internal/reaper/store"
	"github.com/glassdome/overseer/internal/registry"
	"github.com/glassdome/overseer/internal/systemstate"
)

// InitializeOverseer wires every Overseer collaborator from cfg and
// logger. The generated wire_gen.go is the hand-maintained equivalent of
// what `wire` would emit for this provider set. AttachReconciliation is
// called on the built Overseer in wire_gen.go since wire itself has no
// post-construction hook for a pointer-receiver wiring call.
func InitializeOverseer(cfg *config.Config, logger *zap.Logger) (*overseer.Overseer, func(), error) {
	wire.Build(
		provideSystemState,
		provideRegistry,
		providePlatformFactory,
		provideKnowledgeBase,
		provideTaskQueue,
		provideEventBus,
		provideMissionStore,
		providePlanner,
		provideOverseerConfig,
		provideController,
		providePlatformAgents,
		overseer.New,
	)
	return nil, nil, nil
}
