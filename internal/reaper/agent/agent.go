// Package agent implements the Reaper Agents (C11): one long-running
// worker per OS family, consuming tasks from its agent-type partition
// and producing exactly one ResultEvent per task.
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/glassdome/overseer/internal/reaper/queue"
	"github.com/glassdome/overseer/internal/reaper/types"
)

// maxOutputBytes bounds how much of stdout/stderr is embedded in a
// ResultEvent — the last maxOutputBytes bytes are kept, per spec.md §4.11.
const maxOutputBytes = 500

// Error codes an Executor's ResultEvent.ErrorCode may carry.
const (
	ErrUnknownAction    = "UNKNOWN_ACTION"
	ErrMissingParam     = "MISSING_PARAM"
	ErrDiscoveryFailed  = "DISCOVERY_FAILED"
	ErrInjectionFailed  = "INJECTION_FAILED"
	ErrVerificationFailed = "VERIFICATION_FAILED"
	ErrAgentException   = "AGENT_EXCEPTION"
)

// Executor performs the four OS-specific verbs a task's action suffix
// dispatches to. Implementations are free to simulate or really reach
// out to a guest; all four must never panic past the Worker's recover.
type Executor interface {
	Discover(ctx context.Context, task types.Task) (map[string]interface{}, error)
	Baseline(ctx context.Context, task types.Task) (map[string]interface{}, error)
	InjectVuln(ctx context.Context, task types.Task) (map[string]interface{}, error)
	VerifyVuln(ctx context.Context, task types.Task) (map[string]interface{}, error)
}

// Worker is one long-running OS-family agent: it consumes from its
// agent-type partition of the task queue and publishes exactly one
// ResultEvent per task to the mission's partition of the event bus.
type Worker struct {
	AgentType string
	exec      Executor
	tasks     queue.TaskQueue
	events    queue.EventBus
	logger    *zap.Logger
}

// New constructs a Worker bound to agentType (e.g. "reaper-linux").
func New(agentType string, exec Executor, tasks queue.TaskQueue, events queue.EventBus, logger *zap.Logger) *Worker {
	return &Worker{
		AgentType: agentType,
		exec:      exec,
		tasks:     tasks,
		events:    events,
		logger:    logger.With(zap.String("agent_type", agentType)),
	}
}

// Run consumes tasks until ctx is cancelled. Each task is handled in its
// own recover scope so a single panicking Executor call degrades to an
// AGENT_EXCEPTION result instead of killing the worker.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.tasks.Consume(ctx, w.AgentType)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("consume failed, retrying", zap.Error(err))
			continue
		}
		w.handle(ctx, task)
	}
}

func (w *Worker) handle(ctx context.Context, task types.Task) {
	event := w.execute(ctx, task)
	if err := w.events.PublishResult(ctx, event); err != nil {
		w.logger.Error("publish result failed", zap.Error(err), zap.String("task_id", task.ID))
	}
}

// execute dispatches task.Action's suffix to the matching Executor call
// and always returns exactly one ResultEvent, recovering from any panic.
func (w *Worker) execute(ctx context.Context, task types.Task) (result types.ResultEvent) {
	defer func() {
		if r := recover(); r != nil {
			result = errorEvent(task, ErrAgentException, fmt.Sprintf("panic: %v", r), true)
		}
	}()

	verb, err := actionVerb(task.Action)
	if err != nil {
		return errorEvent(task, ErrUnknownAction, err.Error(), false)
	}

	var (
		data     map[string]interface{}
		execErr  error
		failCode string
	)

	switch verb {
	case "discover":
		data, execErr = w.exec.Discover(ctx, task)
		failCode = ErrDiscoveryFailed
	case "baseline":
		data, execErr = w.exec.Baseline(ctx, task)
		failCode = ErrInjectionFailed
	case "inject_vuln":
		data, execErr = w.exec.InjectVuln(ctx, task)
		failCode = ErrInjectionFailed
	case "verify_vuln":
		data, execErr = w.exec.VerifyVuln(ctx, task)
		failCode = ErrVerificationFailed
	default:
		return errorEvent(task, ErrUnknownAction, "unsupported action verb: "+verb, false)
	}

	if execErr != nil {
		if _, missing := execErr.(missingParamErr); missing {
			return errorEvent(task, ErrMissingParam, execErr.Error(), false)
		}
		return errorEvent(task, failCode, execErr.Error(), true)
	}

	return types.ResultEvent{
		TaskID:    task.ID,
		MissionID: task.MissionID,
		HostID:    task.HostID,
		AgentType: task.AgentType,
		Action:    task.Action,
		Status:    types.ResultSuccess,
		Summary:   fmt.Sprintf("%s completed", task.Action),
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func errorEvent(task types.Task, code, message string, retriable bool) types.ResultEvent {
	return types.ResultEvent{
		TaskID:    task.ID,
		MissionID: task.MissionID,
		HostID:    task.HostID,
		AgentType: task.AgentType,
		Action:    task.Action,
		Status:    types.ResultError,
		Summary:   message,
		ErrorCode: code,
		Retriable: retriable,
		Timestamp: time.Now().UTC(),
	}
}

// actionVerb extracts the verb suffix from an "<os>.<verb>" action
// string, e.g. "linux.discover" -> "discover".
func actionVerb(action string) (string, error) {
	for i := len(action) - 1; i >= 0; i-- {
		if action[i] == '.' {
			return action[i+1:], nil
		}
	}
	return "", fmt.Errorf("malformed action %q: no os.verb separator", action)
}

// TruncateOutput keeps only the last maxOutputBytes bytes of s, for
// embedding captured stdout/stderr in a ResultEvent.
func TruncateOutput(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[len(s)-maxOutputBytes:]
}

// RequireParam fetches a required string param from task.Params, or
// returns a MISSING_PARAM error usable directly as an Executor error.
func RequireParam(task types.Task, key string) (string, error) {
	raw, ok := task.Params[key]
	if !ok {
		return "", missingParamError(key)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", missingParamError(key)
	}
	return s, nil
}

type missingParamErr struct{ key string }

func (e missingParamErr) Error() string { return fmt.Sprintf("missing required param %q", e.key) }

func missingParamError(key string) error { return missingParamErr{key: key} }
