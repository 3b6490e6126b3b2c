// Package engine implements the Reaper Engine (C10): one instance per
// active mission, driving a mission's task graph forward by reducing
// inbound ResultEvents and asking the Planner what to schedule next.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glassdome/overseer/internal/reaper/planner"
	"github.com/glassdome/overseer/internal/reaper/queue"
	"github.com/glassdome/overseer/internal/reaper/store"
	"github.com/glassdome/overseer/internal/reaper/types"
)

// Engine owns one mission's event loop: subscribe to its result
// partition, reduce every event through ProcessResult, schedule whatever
// the planner asks for next, and stop once the mission reaches a
// terminal status.
type Engine struct {
	missionID string

	tasks  queue.TaskQueue
	events queue.EventBus
	store  store.MissionStore
	plan   planner.Planner
	logger *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New constructs an Engine bound to missionID and the shared Reaper
// collaborators. It does not start the event loop; call StartMission.
func New(missionID string, tasks queue.TaskQueue, events queue.EventBus, st store.MissionStore, plan planner.Planner, logger *zap.Logger) *Engine {
	return &Engine{
		missionID: missionID,
		tasks:     tasks,
		events:    events,
		store:     st,
		plan:      plan,
		logger:    logger.With(zap.String("mission_id", missionID)),
	}
}

// StartMission persists initialState as running, schedules the
// planner's initial tasks, and starts the background event loop.
func (e *Engine) StartMission(ctx context.Context, initialState types.MissionState) error {
	initialState.MissionID = e.missionID
	initialState.Status = types.MissionRunning
	now := time.Now().UTC()
	if initialState.CreatedAt.IsZero() {
		initialState.CreatedAt = now
	}
	initialState.UpdatedAt = now

	if err := e.store.Save(ctx, initialState); err != nil {
		return err
	}

	initial := e.plan.InitialTasks(initialState)
	if err := e.scheduleTasks(ctx, initialState, initial); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.running = true
	e.cancel = cancel
	e.done = make(chan struct{})
	e.mu.Unlock()

	go e.eventLoop(loopCtx)

	return nil
}

// Stop clears the running flag and cancels the background subscription.
// It blocks until the event loop goroutine has exited.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (e *Engine) isRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// eventLoop subscribes to the mission's result partition and invokes
// ProcessResult for each event until Stop is called.
func (e *Engine) eventLoop(ctx context.Context) {
	defer func() {
		e.mu.Lock()
		if e.done != nil {
			close(e.done)
			e.done = nil
		}
		e.mu.Unlock()
	}()

	for e.isRunning() {
		event, err := e.events.SubscribeResults(ctx, e.missionID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.Warn("subscribe failed, retrying", zap.Error(err))
			continue
		}
		if err := e.ProcessResult(ctx, event); err != nil {
			e.logger.Error("process result failed", zap.Error(err))
		}
	}
}

// scheduleTasks appends each task's id to pending_tasks, publishes it to
// the task queue, and persists the mission. Fire-and-forget: the engine
// never waits synchronously for agent completion.
func (e *Engine) scheduleTasks(ctx context.Context, mission types.MissionState, tasks []types.Task) error {
	if len(tasks) == 0 {
		if err := e.store.Save(ctx, mission); err != nil {
			return err
		}
		return nil
	}

	for _, t := range tasks {
		mission.PendingTasks = append(mission.PendingTasks, t.ID)
		if err := e.tasks.Publish(ctx, t); err != nil {
			e.logger.Error("publish task failed", zap.Error(err), zap.String("task_id", t.ID))
			continue
		}
	}
	mission.UpdatedAt = time.Now().UTC()
	return e.store.Save(ctx, mission)
}

// ProcessResult is the single reduction step invoked for every inbound
// event. Moving the task id is idempotent (set-style removal and insert),
// but host bookkeeping and next-task planning rerun on every call.
func (e *Engine) ProcessResult(ctx context.Context, event types.ResultEvent) error {
	mission, ok, err := e.store.Load(ctx, e.missionID)
	if err != nil {
		return err
	}
	if !ok {
		e.logger.Warn("process result for missing mission", zap.String("task_id", event.TaskID))
		return nil
	}

	applyResultToHost(&mission, event)
	moveTaskID(&mission, event)

	if event.Timestamp.IsZero() {
		mission.UpdatedAt = time.Now().UTC()
	} else {
		mission.UpdatedAt = event.Timestamp
	}

	if isTerminal(mission) {
		mission.Status = terminalStatus(mission)
		if err := e.store.Save(ctx, mission); err != nil {
			return err
		}
		e.Stop()
		return nil
	}

	if err := e.store.Save(ctx, mission); err != nil {
		return err
	}

	next := e.plan.NextTasks(mission, event)
	return e.scheduleTasks(ctx, mission, next)
}

func applyResultToHost(mission *types.MissionState, event types.ResultEvent) {
	h, ok := mission.Hosts[event.HostID]
	if !ok {
		return
	}

	h.LastTasks = append(h.LastTasks, event.TaskID)

	switch event.Status {
	case types.ResultSuccess:
		h.LastStatus = types.HostHealthy
		h.FailureCount = 0
		if h.DiscoveredFacts == nil {
			h.DiscoveredFacts = make(map[string]interface{})
		}
		for k, v := range event.Data {
			h.DiscoveredFacts[k] = v
		}
		if hasSuffixAny(event.Action, ".inject_vuln", ".baseline") {
			if raw, ok := event.Data["vulnerabilities_injected"]; ok {
				h.VulnerabilitiesInjected = append(h.VulnerabilitiesInjected, toStringSlice(raw)...)
			}
		}
	case types.ResultError:
		h.LastStatus = types.HostDegraded
		h.FailureCount++
		if h.MaxFailures > 0 && h.FailureCount >= h.MaxFailures {
			h.Locked = true
		}
	case types.ResultPartial:
		h.LastStatus = types.HostDegraded
	}

	mission.Hosts[event.HostID] = h
}

func moveTaskID(mission *types.MissionState, event types.ResultEvent) {
	mission.PendingTasks = removeString(mission.PendingTasks, event.TaskID)

	switch event.Status {
	case types.ResultError:
		if !containsString(mission.FailedTasks, event.TaskID) {
			mission.FailedTasks = append(mission.FailedTasks, event.TaskID)
		}
	default: // success and partial both land in completed
		if !containsString(mission.CompletedTasks, event.TaskID) {
			mission.CompletedTasks = append(mission.CompletedTasks, event.TaskID)
		}
	}
}

// isTerminal reports whether no further tasks can be emitted: nothing is
// pending and every unlocked host has already had something injected.
func isTerminal(mission types.MissionState) bool {
	if len(mission.PendingTasks) > 0 {
		return false
	}
	for _, h := range mission.Hosts {
		if h.Locked {
			continue
		}
		if len(h.VulnerabilitiesInjected) == 0 {
			return false
		}
	}
	return true
}

// terminalStatus is always Completed: the terminal condition already
// guarantees every unlocked host has injected something, and a mission
// where every host instead got locked out still reaches Completed with
// an empty injection list (the lockout satisfies the condition
// vacuously — see spec.md §8 scenario 6).
func terminalStatus(mission types.MissionState) types.MissionStatus {
	return types.MissionCompleted
}

func hasSuffixAny(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if len(s) >= len(suf) && s[len(s)-len(suf):] == suf {
			return true
		}
	}
	return false
}

func toStringSlice(raw interface{}) []string {
	items, ok := raw.([]interface{})
	if !ok {
		if ss, ok := raw.([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, s := range list {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
