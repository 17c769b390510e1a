package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/glowos/glowd/internal/capability"
	"github.com/glowos/glowd/internal/events"
	"github.com/glowos/glowd/internal/state"
)

// Executor runs routed tool decisions: it resolves the owning
// capability, tracks a task on the state store for the duration of the
// run, and converts panics and errors into failed tasks instead of
// crashing the process.
type Executor struct {
	registry *capability.Registry
	store    *state.Store
	bus      *events.Bus
	logger   *slog.Logger
}

// NewExecutor wires an executor to the registry, state store, and
// event bus. The bus may be nil.
func NewExecutor(registry *capability.Registry, store *state.Store, bus *events.Bus, logger *slog.Logger) *Executor {
	return &Executor{
		registry: registry,
		store:    store,
		bus:      bus,
		logger:   logger,
	}
}

// Execute runs the tool named by the decision and returns its result.
// An unresolvable tool returns an error result without creating a
// task; every resolvable tool run creates a task that ends in done or
// error exactly once.
func (e *Executor) Execute(ctx context.Context, d Decision) capability.Result {
	capName, ok := e.registry.Resolve(d.Tool)
	if !ok {
		e.logger.Warn("execute: unknown tool", "tool", d.Tool)
		return capability.Errorf("unknown tool %q", d.Tool)
	}
	provider := e.registry.Capability(capName)

	taskID := uuid.NewString()
	e.store.InsertTask(state.Task{
		ID:        taskID,
		Type:      d.Tool,
		Status:    state.StatusRunning,
		StartedAt: time.Now().UTC(),
	})
	e.bus.Publish(events.Event{
		Source: events.SourceExecutor,
		Kind:   events.KindTaskStarted,
		Data:   map[string]any{"task_id": taskID, "tool": d.Tool},
	})
	e.logger.Info("task started", "task_id", taskID, "tool", d.Tool, "capability", capName)

	sink := capability.ProgressFunc(func(p capability.Progress) {
		// Tools report percent 0-100; the task board stores 0-1.
		if e.store.UpdateTaskProgress(taskID, p.Percent/100, p.Message) {
			e.bus.Publish(events.Event{
				Source: events.SourceExecutor,
				Kind:   events.KindTaskProgress,
				Data: map[string]any{
					"task_id":  taskID,
					"progress": p.Percent / 100,
					"message":  p.Message,
				},
			})
		}
	})

	result, err := e.runGuarded(ctx, provider, d.Tool, d.Arguments, sink)

	switch {
	case err != nil:
		e.store.FailTask(taskID, err.Error())
		e.publishFinish(events.KindTaskError, taskID, d.Tool, err.Error())
		e.logger.Error("task failed", "task_id", taskID, "tool", d.Tool, "error", err)
		return capability.Errorf("%s failed: %v", d.Tool, err)
	case result.Kind == capability.KindError:
		e.store.FailTask(taskID, result.ErrMessage)
		e.publishFinish(events.KindTaskError, taskID, d.Tool, result.ErrMessage)
		e.logger.Warn("task reported error", "task_id", taskID, "tool", d.Tool, "message", result.ErrMessage)
		return result
	default:
		e.store.CompleteTask(taskID)
		e.publishFinish(events.KindTaskDone, taskID, d.Tool, "")
		e.logger.Info("task done", "task_id", taskID, "tool", d.Tool)
		return result
	}
}

// runGuarded invokes the capability and converts a panic into an
// error so one misbehaving tool cannot take down the daemon.
func (e *Executor) runGuarded(ctx context.Context, provider capability.Capability, intent string, args capability.Args, sink capability.ProgressSink) (result capability.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("capability panicked", "capability", provider.Name(), "intent", intent, "panic", r)
			err = fmt.Errorf("capability %s panicked: %v", provider.Name(), r)
		}
	}()
	return provider.Run(ctx, intent, args, sink)
}

func (e *Executor) publishFinish(kind, taskID, tool, message string) {
	data := map[string]any{"task_id": taskID, "tool": tool}
	if message != "" {
		data["message"] = message
	}
	e.bus.Publish(events.Event{
		Source: events.SourceExecutor,
		Kind:   kind,
		Data:   data,
	})
}
