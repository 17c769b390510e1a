package router

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/glowos/glowd/internal/capability"
	"github.com/glowos/glowd/internal/events"
	"github.com/glowos/glowd/internal/state"
)

// coreIntents is the vocabulary offered to the model classifier, in
// priority order. The menu builder drops entries no capability claims
// and caps the rest at the menu bound.
var coreIntents = []string{
	"rip_disc",
	"download",
	"download_video",
	"download_audio",
	"scan_plex",
	"search",
	"search_files",
	"calculate",
	"play_video",
	"bulk_rename",
}

// auditLogSize bounds the in-memory decision audit log.
const auditLogSize = 200

// Router is the message-routing front door: pattern matcher first,
// model classifier second, then validation against live state, then
// execution. It also keeps a bounded audit log of decisions for the
// diagnostics endpoint.
type Router struct {
	registry   *capability.Registry
	store      *state.Store
	classifier *Classifier
	executor   *Executor
	bus        *events.Bus
	logger     *slog.Logger

	mu    sync.Mutex
	audit []Record
	stats Stats
}

// New wires a router from its collaborators. The classifier and bus
// may be nil; without a classifier, unmatched messages route to chat.
func New(registry *capability.Registry, store *state.Store, classifier *Classifier, executor *Executor, bus *events.Bus, logger *slog.Logger) *Router {
	return &Router{
		registry:   registry,
		store:      store,
		classifier: classifier,
		executor:   executor,
		bus:        bus,
		logger:     logger,
		stats: Stats{
			ToolCounts:    make(map[string]int64),
			MatcherCounts: make(map[string]int64),
		},
	}
}

// RouteMessage classifies one message into a chat or tool decision.
// It never returns an error: every failure path inside routing
// degrades to the chat decision, and a tool that fails validation is
// downgraded to chat with the user-facing reason attached.
func (r *Router) RouteMessage(ctx context.Context, message string) Decision {
	start := time.Now()

	d := r.classify(ctx, message)

	if d.Mode == ModeTool {
		if ok, reason := validateTool(r.registry, r.store, d.Tool); !ok {
			r.logger.Info("tool rejected by validation",
				"tool", d.Tool, "reason", reason, "matched_by", d.MatchedBy)
			d = Decision{
				Mode:           ModeChat,
				Arguments:      capability.Args{},
				FallbackReason: reason,
				MatchedBy:      d.MatchedBy,
			}
		} else {
			// Validation guarantees the intent resolves.
			d.Capability, _ = r.registry.Resolve(d.Tool)
		}
	}

	r.record(message, d, time.Since(start))
	r.bus.Publish(events.Event{
		Source: events.SourceRouter,
		Kind:   events.KindRouteDecided,
		Data: map[string]any{
			"mode":       string(d.Mode),
			"tool":       d.Tool,
			"matched_by": d.MatchedBy,
		},
	})
	r.logger.Debug("message routed",
		"mode", d.Mode, "tool", d.Tool, "matched_by", d.MatchedBy,
		"elapsed", time.Since(start))
	return d
}

// classify runs the two-stage pipeline: deterministic patterns, then
// the model classifier when configured.
func (r *Router) classify(ctx context.Context, message string) Decision {
	if d := matchPatterns(message); d != nil {
		return *d
	}
	if r.classifier == nil {
		return chatDecision()
	}
	return r.classifier.Classify(ctx, message,
		r.registry.IntentMenu(coreIntents),
		StateSummary{
			DiscMounted: r.store.Get().Device.DiscMounted,
			TaskRunning: r.store.HasRunningTask(),
		})
}

// ExecuteTool runs a previously routed tool decision. Calling it with
// a chat decision is a programming error and yields an error result.
func (r *Router) ExecuteTool(ctx context.Context, d Decision) capability.Result {
	if d.Mode != ModeTool || d.Tool == "" {
		return capability.Errorf("nothing to execute")
	}
	return r.executor.Execute(ctx, d)
}

// Handle routes a message and, when the decision is a tool, executes
// it. Chat decisions come back with a zero Result; the caller owns the
// conversational reply.
func (r *Router) Handle(ctx context.Context, message string) (Decision, capability.Result) {
	d := r.RouteMessage(ctx, message)
	if d.Mode != ModeTool {
		return d, capability.Result{}
	}
	return d, r.executor.Execute(ctx, d)
}

// record appends an audit entry and bumps counters.
func (r *Router) record(message string, d Decision, elapsed time.Duration) {
	rec := Record{
		Timestamp:      time.Now().UTC(),
		Message:        truncateMessage(message, truncateWords),
		Mode:           d.Mode,
		Tool:           d.Tool,
		MatchedBy:      d.MatchedBy,
		FallbackReason: d.FallbackReason,
		ElapsedMs:      elapsed.Milliseconds(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.audit = append(r.audit, rec)
	if over := len(r.audit) - auditLogSize; over > 0 {
		r.audit = append([]Record(nil), r.audit[over:]...)
	}

	r.stats.TotalMessages++
	switch d.Mode {
	case ModeTool:
		r.stats.ToolDecisions++
		r.stats.ToolCounts[d.Tool]++
	default:
		r.stats.ChatDecisions++
	}
	if d.FallbackReason != "" {
		r.stats.Fallbacks++
	}
	if d.MatchedBy != "" {
		r.stats.MatcherCounts[d.MatchedBy]++
	}
}

// AuditLog returns a copy of the recent decision records, newest last.
func (r *Router) AuditLog() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.audit))
	copy(out, r.audit)
	return out
}

// GetStats returns a copy of the aggregate routing counters.
func (r *Router) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.stats
	out.ToolCounts = make(map[string]int64, len(r.stats.ToolCounts))
	for k, v := range r.stats.ToolCounts {
		out.ToolCounts[k] = v
	}
	out.MatcherCounts = make(map[string]int64, len(r.stats.MatcherCounts))
	for k, v := range r.stats.MatcherCounts {
		out.MatcherCounts[k] = v
	}
	return out
}
