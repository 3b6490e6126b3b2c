// Package controller implements the Lab Controller: Tier-1 drift
// reconciliation against the Registry. It never creates or deletes
// resources — only repairs existing ones that have drifted from their
// desired state.
package controller

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/workqueue"

	"github.com/glassdome/overseer/internal/platform"
	"github.com/glassdome/overseer/internal/registry"
)

const (
	defaultPeriod  = 1 * time.Second
	reconcileWorkers = 4
)

// Result is what ReconcileLab returns: the counts a caller (the admin
// API, the CLI, a test) needs to know what a tick did.
type Result struct {
	VMsChecked    int
	DriftsFound   int
	DriftsFixed   int
	Errors        int
}

// Controller owns the Tier-1 reconciliation loop. Each tick enqueues
// every lab id onto a rate-limited work queue; a small worker pool drains
// it concurrently. The queue's own dedup (re-adding an id already queued
// but not yet processed is a no-op) means a slow lab never gets piled up
// with duplicate work from successive ticks.
type Controller struct {
	store   *registry.Store
	clients *platform.Factory
	logger  *zap.Logger
	period  time.Duration
	queue   workqueue.RateLimitingInterface
}

// New builds a Controller. clients resolves a lab VM's resource.Platform
// back to the adapter that can act on it.
func New(store *registry.Store, clients *platform.Factory, logger *zap.Logger, period time.Duration) *Controller {
	if period <= 0 {
		period = defaultPeriod
	}
	return &Controller{
		store:   store,
		clients: clients,
		logger:  logger,
		period:  period,
		queue:   workqueue.NewRateLimitingQueue(workqueue.DefaultControllerRateLimiter()),
	}
}

// Run starts the reconciliation loop; it blocks until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	for i := 0; i < reconcileWorkers; i++ {
		go c.runWorker(ctx)
	}
	go func() {
		<-ctx.Done()
		c.queue.ShutDown()
	}()
	wait.Until(c.tick, c.period, ctx.Done())
}

func (c *Controller) tick() {
	for _, labID := range c.store.ListLabs() {
		c.queue.Add(labID)
	}
}

func (c *Controller) runWorker(ctx context.Context) {
	for c.processNextItem(ctx) {
	}
}

func (c *Controller) processNextItem(ctx context.Context) bool {
	item, shutdown := c.queue.Get()
	if shutdown {
		return false
	}
	defer c.queue.Done(item)

	labID := item.(string)
	c.ReconcileLab(ctx, labID)
	c.queue.Forget(item)
	return true
}

// ReconcileLab runs one reconciliation pass over a single lab and
// returns the counts of what it did. It can be triggered manually (e.g.
// from the admin API) with the same semantics as a loop tick, plus
// explicit start/complete events.
func (c *Controller) ReconcileLab(ctx context.Context, labID string) Result {
	c.store.PublishEvent(registry.StateChange{Kind: registry.EventReconcileStart, LabID: labID})

	snapshot := c.store.GetLabSnapshot(labID)
	var result Result

	for _, vm := range snapshot.VMs {
		result.VMsChecked++

		drift := registry.DetectDrift(vm)
		if drift == nil {
			continue
		}
		result.DriftsFound++
		c.store.RecordDrift(drift)

		if !drift.AutoFix {
			continue
		}

		if err := c.applyFix(ctx, vm, drift); err != nil {
			result.Errors++
			c.logger.Warn("reconcile fix failed",
				zap.String("lab_id", labID), zap.String("resource_id", vm.ID), zap.Error(err))
			c.store.PublishEvent(registry.StateChange{
				Kind: registry.EventReconcileFailed, ResourceID: vm.ID, LabID: labID,
			})
			continue
		}

		result.DriftsFixed++
		c.store.ResolveDrift(vm.ID)
		c.store.PublishEvent(registry.StateChange{
			Kind: registry.EventReconcileComplete, ResourceID: vm.ID, LabID: labID,
		})
	}

	c.store.PublishEvent(registry.StateChange{Kind: registry.EventReconcileComplete, LabID: labID})
	return result
}

// applyFix dispatches on the drift's suggested fix action. Supported
// actions: set_state:running, set_state:stopped, rename:<name>.
func (c *Controller) applyFix(ctx context.Context, vm *registry.Resource, drift *registry.Drift) error {
	client, err := c.clients.Get(platform.Name(vm.Platform.Platform))
	if err != nil {
		return err
	}

	switch {
	case drift.SuggestedFix == "set_state:running":
		return client.StartVM(ctx, vm.Platform.PlatformID)
	case drift.SuggestedFix == "set_state:stopped":
		return client.StopVM(ctx, vm.Platform.PlatformID)
	case strings.HasPrefix(drift.SuggestedFix, "rename:"):
		name := strings.TrimPrefix(drift.SuggestedFix, "rename:")
		if err := client.RenameVM(ctx, vm.Platform.PlatformID, name); err != nil {
			return err
		}
		renamed := vm.Clone()
		renamed.Name = name
		c.store.Register(renamed)
		return nil
	default:
		return nil
	}
}
