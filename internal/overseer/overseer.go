// Package overseer implements the Overseer Entity (C6): the single,
// always-running control plane that gates every mutating request, owns
// System State, drives the four background loops, and manages the
// Reaper mission engines bound to it. Construction follows the
// teacher's cmd/api bootstrap shape — typed config, a zap logger, then
// every collaborator threaded in explicitly — generalized from an HTTP
// server entrypoint into a long-lived four-loop supervisor.
package overseer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/glassdome/overseer/internal/agents"
	"github.com/glassdome/overseer/internal/controller"
	"github.com/glassdome/overseer/internal/knowledgebase"
	"github.com/glassdome/overseer/internal/platform"
	"github.com/glassdome/overseer/internal/reaper/engine"
	"github.com/glassdome/overseer/internal/reaper/planner"
	"github.com/glassdome/overseer/internal/reaper/queue"
	"github.com/glassdome/overseer/internal/reaper/store"
	"github.com/glassdome/overseer/internal/reaper/types"
	"github.com/glassdome/overseer/internal/registry"
	"github.com/glassdome/overseer/internal/systemstate"
)

// Config holds the tunables ReceiveRequest and the four loops need,
// independent of internal/config's viper-loaded shape so this package
// stays testable without a viper round-trip.
type Config struct {
	MonitorInterval   time.Duration
	StateSyncInterval time.Duration
	HealthInterval    time.Duration
	RequestQueueSize  int
	MaxDeployCount    int
}

func (c Config) withDefaults() Config {
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = 30 * time.Second
	}
	if c.StateSyncInterval <= 0 {
		c.StateSyncInterval = 60 * time.Second
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = 300 * time.Second
	}
	if c.RequestQueueSize <= 0 {
		c.RequestQueueSize = 256
	}
	if c.MaxDeployCount <= 0 {
		c.MaxDeployCount = 20
	}
	return c
}

// Overseer is the control plane singleton. All of its collaborators are
// explicit constructor arguments, per the source's "no global
// singletons" design note — nothing here is a package-level var.
type Overseer struct {
	cfg Config

	registry  *registry.Store
	state     *systemstate.Store
	clients   *platform.Factory
	kb        knowledgebase.KnowledgeBase
	logger    *zap.Logger

	tasks  queue.TaskQueue
	events queue.EventBus
	missionStore store.MissionStore
	plan   planner.Planner

	executionQueue chan string // request ids awaiting execution

	reconcileCtrl   *controller.Controller
	platformAgents  []*agents.Agent

	missionsMu sync.Mutex
	missions   map[string]*engine.Engine

	runningMu sync.Mutex
	running   bool
	cancel    context.CancelFunc
	loopsDone sync.WaitGroup
}

// New constructs an Overseer. It does not start any loop; call Run.
func New(
	cfg Config,
	reg *registry.Store,
	state *systemstate.Store,
	clients *platform.Factory,
	kb knowledgebase.KnowledgeBase,
	tasks queue.TaskQueue,
	events queue.EventBus,
	missionStore store.MissionStore,
	plan planner.Planner,
	logger *zap.Logger,
) *Overseer {
	cfg = cfg.withDefaults()
	if kb == nil {
		kb = knowledgebase.Noop{}
	}
	return &Overseer{
		cfg:            cfg,
		registry:       reg,
		state:          state,
		clients:        clients,
		kb:             kb,
		logger:         logger,
		tasks:          tasks,
		events:         events,
		missionStore:   missionStore,
		plan:           plan,
		executionQueue: make(chan string, cfg.RequestQueueSize),
		missions:       make(map[string]*engine.Engine),
	}
}

// AttachReconciliation wires the tiered registry/agent/controller
// architecture spec.md §1 describes into this Overseer: every platform
// Agent and the Lab Controller start and stop alongside the four loops.
// Called once, before Run.
func (o *Overseer) AttachReconciliation(ctrl *controller.Controller, platformAgents []*agents.Agent) {
	o.reconcileCtrl = ctrl
	o.platformAgents = platformAgents
}

// Run starts the four background loops plus, if attached, the Lab
// Controller and every platform Agent. It blocks until ctx is
// cancelled, at which point it performs the graceful shutdown sequence:
// stop every loop, stop every Reaper engine, persist System State.
func (o *Overseer) Run(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)

	o.runningMu.Lock()
	o.running = true
	o.cancel = cancel
	o.runningMu.Unlock()

	o.loopsDone.Add(4)
	go o.monitorLoop(loopCtx)
	go o.executionLoop(loopCtx)
	go o.stateSyncLoop(loopCtx)
	go o.healthLoop(loopCtx)

	if o.reconcileCtrl != nil {
		o.loopsDone.Add(1)
		go func() {
			defer o.loopsDone.Done()
			o.reconcileCtrl.Run(loopCtx)
		}()
	}
	for _, a := range o.platformAgents {
		o.loopsDone.Add(1)
		go func(a *agents.Agent) {
			defer o.loopsDone.Done()
			a.Run(loopCtx)
		}(a)
	}

	<-loopCtx.Done()
	o.loopsDone.Wait()
	o.shutdown()
}

// Shutdown requests graceful termination by cancelling Run's context and
// returns at once; Run performs the shutdown sequence and returns when it
// is complete.
func (o *Overseer) Shutdown() {
	o.runningMu.Lock()
	cancel := o.cancel
	o.runningMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (o *Overseer) shutdown() {
	o.missionsMu.Lock()
	for _, e := range o.missions {
		e.Stop()
	}
	o.missionsMu.Unlock()

	if err := o.state.Persist(); err != nil {
		o.logger.Error("final system state persist failed", zap.Error(err))
	}
	o.logger.Info("overseer shutdown complete")
}

// ReceiveRequest is the heart of the Overseer: it assigns a request id,
// persists it as pending, runs the five gate predicates in order, and on
// a pass appends it to the execution queue.
func (o *Overseer) ReceiveRequest(ctx context.Context, action Action, params map[string]interface{}, user string) Decision {
	requestID := uuid.NewString()
	now := time.Now().UTC()

	o.state.PutRequest(systemstate.PendingRequest{
		ID:          requestID,
		Action:      string(action),
		User:        user,
		Params:      params,
		Status:      systemstate.RequestPending,
		SubmittedAt: now,
	})

	if err := checkSchema(action, params); err != nil {
		return o.denyRequest(requestID, err.Error())
	}
	if err := checkSafety(action, params, o.cfg.MaxDeployCount); err != nil {
		return o.denyRequest(requestID, err.Error())
	}
	if err := checkResources(o.state, action, params); err != nil {
		return o.denyRequest(requestID, err.Error())
	}
	if err := checkProductionProtection(o.state, action, params); err != nil {
		return o.denyRequest(requestID, err.Error())
	}

	if advisories, err := o.kb.Query(ctx, string(action), params); err == nil {
		for _, a := range advisories {
			if a.Priority == knowledgebase.PriorityHigh {
				o.logger.Warn("knowledge base advisory", zap.String("request_id", requestID), zap.String("summary", a.Summary))
			}
		}
	}

	approvedAt := time.Now().UTC()
	req, _ := o.state.GetRequest(requestID)
	req.Status = systemstate.RequestApproved
	req.ApprovedAt = &approvedAt
	o.state.PutRequest(req)

	select {
	case o.executionQueue <- requestID:
	default:
		o.logger.Warn("execution queue full, request delayed", zap.String("request_id", requestID))
		o.executionQueue <- requestID
	}

	return Decision{Approved: true, RequestID: requestID, QueuePosition: len(o.executionQueue)}
}

func (o *Overseer) denyRequest(requestID, reason string) Decision {
	req, _ := o.state.GetRequest(requestID)
	req.Status = systemstate.RequestDenied
	req.DenialReason = reason
	o.state.PutRequest(req)
	return deny(requestID, reason)
}

// CreateReaperMission instantiates a Mission Engine bound to the shared
// Reaper collaborators, starts its event loop, and records the handle.
// Duplicate mission ids are refused, matching the idempotency rule in
// spec.md §6.
func (o *Overseer) CreateReaperMission(ctx context.Context, missionID, labID, missionType string, targetVMs []types.HostState) (bool, string) {
	o.missionsMu.Lock()
	if _, exists := o.missions[missionID]; exists {
		o.missionsMu.Unlock()
		return false, "already exists"
	}

	hosts := make(map[string]types.HostState, len(targetVMs))
	for _, h := range targetVMs {
		if h.MaxFailures <= 0 {
			h.MaxFailures = 3
		}
		hosts[h.HostID] = h
	}

	e := engine.New(missionID, o.tasks, o.events, o.missionStore, o.plan, o.logger)
	o.missions[missionID] = e
	o.missionsMu.Unlock()

	if err := e.StartMission(ctx, types.MissionState{
		MissionID:   missionID,
		LabID:       labID,
		MissionType: missionType,
		Hosts:       hosts,
	}); err != nil {
		o.missionsMu.Lock()
		delete(o.missions, missionID)
		o.missionsMu.Unlock()
		return false, err.Error()
	}
	return true, ""
}

// CancelReaperMission stops the engine for missionID and marks the
// mission cancelled in the store.
func (o *Overseer) CancelReaperMission(ctx context.Context, missionID string) error {
	o.missionsMu.Lock()
	e, ok := o.missions[missionID]
	if ok {
		delete(o.missions, missionID)
	}
	o.missionsMu.Unlock()

	if !ok {
		return fmt.Errorf("no such mission: %s", missionID)
	}
	e.Stop()

	mission, found, err := o.missionStore.Load(ctx, missionID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	mission.Status = types.MissionCancelled
	mission.UpdatedAt = time.Now().UTC()
	return o.missionStore.Save(ctx, mission)
}

// MissionStatus projects a mission's current status and progress through
// the engine's backing store.
func (o *Overseer) MissionStatus(ctx context.Context, missionID string) (types.MissionState, bool, error) {
	return o.missionStore.Load(ctx, missionID)
}

// ListMissions projects every known mission.
func (o *Overseer) ListMissions(ctx context.Context) ([]types.MissionState, error) {
	return o.missionStore.ListMissions(ctx)
}

// StateVMs returns every VM the Overseer's System State ledger knows
// about, for the admin API's introspection routes.
func (o *Overseer) StateVMs() []systemstate.VM {
	return o.state.ListVMs()
}

// GetVM looks up one VM by id in System State.
func (o *Overseer) GetVM(id string) (systemstate.VM, bool) {
	return o.state.GetVM(id)
}

// StateHosts returns every Host the Overseer's System State ledger
// knows about.
func (o *Overseer) StateHosts() []systemstate.Host {
	return o.state.ListHosts()
}

// ListRequests returns every request that has passed through the gate,
// regardless of its current status.
func (o *Overseer) ListRequests() []systemstate.PendingRequest {
	return o.state.ListRequests()
}

func (o *Overseer) isRunning() bool {
	o.runningMu.Lock()
	defer o.runningMu.Unlock()
	return o.running
}

func (o *Overseer) monitorLoop(ctx context.Context) {
	defer o.loopsDone.Done()
	wait.Until(func() { o.monitorOnce(ctx) }, o.cfg.MonitorInterval, ctx.Done())
}

// monitorOnce walks System State for anomalies and consults the
// knowledge base for each one. No automatic remediation happens here —
// that is the Lab Controller's job.
func (o *Overseer) monitorOnce(ctx context.Context) {
	for _, vm := range o.state.ListVMs() {
		if vm.Status != "Unknown" {
			continue
		}
		advisories, err := o.kb.Query(ctx, "vm_anomaly", map[string]interface{}{"vm_id": vm.ID, "status": vm.Status})
		if err != nil {
			o.logger.Warn("knowledge base query failed", zap.Error(err))
			continue
		}
		o.logger.Warn("vm anomaly detected", zap.String("vm_id", vm.ID), zap.Any("advisories", advisories))
	}
	for _, h := range o.state.ListHosts() {
		if h.Status != "Degraded" && h.Status != "Down" {
			continue
		}
		advisories, err := o.kb.Query(ctx, "host_anomaly", map[string]interface{}{"host": h.Identifier, "status": h.Status})
		if err != nil {
			o.logger.Warn("knowledge base query failed", zap.Error(err))
			continue
		}
		o.logger.Warn("host anomaly detected", zap.String("host", h.Identifier), zap.Any("advisories", advisories))
	}
}

func (o *Overseer) executionLoop(ctx context.Context) {
	defer o.loopsDone.Done()
	const waitTimeout = 2 * time.Second
	for {
		select {
		case <-ctx.Done():
			return
		case requestID := <-o.executionQueue:
			o.executeRequest(ctx, requestID)
		case <-time.After(waitTimeout):
			// bounded wait with no work; continue per spec.md §4.6.
		}
	}
}

func (o *Overseer) executeRequest(ctx context.Context, requestID string) {
	req, ok := o.state.GetRequest(requestID)
	if !ok {
		return
	}
	req.Status = systemstate.RequestExecuting
	o.state.PutRequest(req)

	result, err := o.dispatch(ctx, Action(req.Action), req.Params)
	completedAt := time.Now().UTC()
	req.CompletedAt = &completedAt
	if err != nil {
		req.Status = systemstate.RequestFailed
		req.Result = map[string]interface{}{"error": err.Error()}
		o.logger.Error("request handler failed", zap.String("request_id", requestID), zap.Error(err))
	} else {
		req.Status = systemstate.RequestCompleted
		req.Result = result
	}
	o.state.PutRequest(req)
}

func (o *Overseer) stateSyncLoop(ctx context.Context) {
	defer o.loopsDone.Done()
	wait.Until(func() { o.stateSyncOnce() }, o.cfg.StateSyncInterval, ctx.Done())
}

// stateSyncOnce is a read-only cross-check: it diffs System State's VM
// set against the Registry's and logs anything present in only one of
// the two. It never writes to either store — that would blur the Lab
// Controller's exclusive "only the Controller reconciles" boundary.
func (o *Overseer) stateSyncOnce() {
	inState := make(map[string]struct{})
	for _, vm := range o.state.ListVMs() {
		inState[vm.ID] = struct{}{}
	}
	inRegistry := make(map[string]struct{})
	for _, r := range o.registry.ListByType(registry.TypeVM) {
		inRegistry[r.Platform.PlatformID] = struct{}{}
	}

	for id := range inState {
		if _, ok := inRegistry[id]; !ok {
			o.logger.Warn("vm present in system state but not observed by any agent", zap.String("vm_id", id))
		}
	}
	for id := range inRegistry {
		if _, ok := inState[id]; !ok {
			o.logger.Warn("vm observed by an agent but absent from system state", zap.String("vm_id", id))
		}
	}
}

func (o *Overseer) healthLoop(ctx context.Context) {
	defer o.loopsDone.Done()
	wait.Until(o.healthOnce, o.cfg.HealthInterval, ctx.Done())
}

func (o *Overseer) healthOnce() {
	o.missionsMu.Lock()
	activeMissions := len(o.missions)
	o.missionsMu.Unlock()

	status := o.registry.Status()
	o.logger.Info("health summary",
		zap.Int("registry_resources", status.TotalResources),
		zap.Int("active_drifts", status.ActiveDrifts),
		zap.Int("registry_agents", status.Agents),
		zap.Int("active_missions", activeMissions),
		zap.Int("vms_tracked", len(o.state.ListVMs())),
	)
}
