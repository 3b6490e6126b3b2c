// Package agents runs the periodic pollers that observe platform state
// and write it into the Registry. Agents never reconcile drift
// themselves — that is the Lab Controller's job — they only observe and
// report.
package agents

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/glassdome/overseer/internal/platform"
	"github.com/glassdome/overseer/internal/registry"
)

// defaultPollTimeout bounds a whole poll cycle; defaultSubCallTimeout
// bounds each platform call within it, per spec.md §4.3.
const (
	defaultPollTimeout    = 15 * time.Second
	defaultSubCallTimeout = 5 * time.Second
)

// Agent polls one platform on a fixed interval and mirrors what it sees
// into the Registry. Safe for a single goroutine only; callers run one
// Agent per platform/tier pair.
type Agent struct {
	Name     string
	Tier     int
	Interval time.Duration

	client platform.Client
	store  *registry.Store
	logger *zap.Logger

	pollTimeout    time.Duration
	subCallTimeout time.Duration

	pollCount  int
	errorCount int
	lastSeen   map[string]struct{}
}

// New builds an Agent. name becomes both the heartbeat key and, via the
// "reaper-<os>" / lab-naming conventions elsewhere in the system, part
// of how downstream components address it.
func New(name string, tier int, interval time.Duration, client platform.Client, store *registry.Store, logger *zap.Logger) *Agent {
	return &Agent{
		Name:           name,
		Tier:           tier,
		Interval:       interval,
		client:         client,
		store:          store,
		logger:         logger.With(zap.String("agent", name)),
		pollTimeout:    defaultPollTimeout,
		subCallTimeout: defaultSubCallTimeout,
		lastSeen:       make(map[string]struct{}),
	}
}

// Run starts the periodic poll loop; it blocks until ctx is cancelled.
// A single poll timing out, erroring, or panicking-recoverable failure
// never stops the loop — the agent records the error and continues.
func (a *Agent) Run(ctx context.Context) {
	wait.Until(func() { a.pollOnce(ctx) }, a.Interval, ctx.Done())
}

func (a *Agent) pollOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			a.errorCount++
			a.logger.Error("agent poll panicked", zap.Any("recover", r))
		}
	}()

	pollCtx, cancel := context.WithTimeout(ctx, a.pollTimeout)
	defer cancel()

	a.pollCount++

	vms, err := a.listVMs(pollCtx)
	if err != nil {
		a.errorCount++
		a.logger.Warn("poll failed, will retry next tick", zap.Error(err))
		a.heartbeat()
		return
	}

	seen := make(map[string]struct{}, len(vms))
	for _, vm := range vms {
		id := registry.BuildID(registry.PlatformIdentity{
			Platform:   a.Name,
			PlatformID: vm.ID,
		}, resourceTypeFor(vm))

		labID := labIDFromName(vm.Name)
		r := &registry.Resource{
			ID:    id,
			Type:  resourceTypeFor(vm),
			Name:  vm.Name,
			State: stateFromStatus(vm.Status),
			Platform: registry.PlatformIdentity{
				Platform:   a.Name,
				PlatformID: vm.ID,
			},
			LabID: labID,
			Tier:  a.Tier,
			Config: map[string]string{
				"ip": vm.IP,
			},
		}
		a.store.Register(r)
		seen[id] = struct{}{}
	}

	for id := range a.lastSeen {
		if _, ok := seen[id]; ok {
			continue
		}
		r := a.store.Get(id)
		a.store.Delete(id)
		if r != nil && a.Tier == 1 && r.Type == registry.TypeLabVM {
			a.store.PublishEvent(registry.StateChange{
				Kind:       registry.EventDeleted,
				ResourceID: id,
				LabID:      r.LabID,
				Severity:   registry.SeverityCritical,
			})
		}
	}
	a.lastSeen = seen

	a.heartbeat()
}

func (a *Agent) listVMs(ctx context.Context) ([]platform.VMInfo, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.subCallTimeout)
	defer cancel()
	return a.client.ListVMs(callCtx)
}

func (a *Agent) heartbeat() {
	a.store.AgentHeartbeat(a.Name, map[string]string{
		"polls":  strconv.Itoa(a.pollCount),
		"errors": strconv.Itoa(a.errorCount),
		"tier":   strconv.Itoa(a.Tier),
	})
}

func resourceTypeFor(platform.VMInfo) registry.ResourceType {
	return registry.TypeLabVM
}

func stateFromStatus(status string) registry.State {
	switch strings.ToLower(status) {
	case "running":
		return registry.StateRunning
	case "stopped":
		return registry.StateStopped
	case "paused":
		return registry.StatePaused
	case "":
		return registry.StateUnknown
	default:
		return registry.StateUnknown
	}
}

// labIDFromName extracts a lab id from the "lab-<labid>-..." naming
// convention. Names that don't match carry no lab association and are
// treated as standalone (non-lab) resources.
func labIDFromName(name string) string {
	const prefix = "lab-"
	if !strings.HasPrefix(name, prefix) {
		return ""
	}
	rest := name[len(prefix):]
	idx := strings.Index(rest, "-")
	if idx <= 0 {
		return ""
	}
	return rest[:idx]
}

