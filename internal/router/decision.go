// Package router decides, per incoming message, whether to answer
// conversationally or invoke a named tool with extracted arguments. A
// deterministic pattern matcher handles the common vocabulary without
// any network call; a low-latency model classifies the remainder; a
// validator gates tools on live device state; the executor runs the
// tool exactly once with task-lifecycle tracking.
package router

import (
	"time"

	"github.com/glowos/glowd/internal/capability"
)

// Mode is the routing outcome: answer in chat, or run a tool.
type Mode string

// Routing modes.
const (
	ModeChat Mode = "chat"
	ModeTool Mode = "tool"
)

// Decision is the ephemeral result of routing one message. It is
// returned to the caller and logged, never persisted.
type Decision struct {
	Mode Mode `json:"mode"`

	// Tool and Arguments are set when Mode is ModeTool.
	Tool      string          `json:"tool_name,omitempty"`
	Arguments capability.Args `json:"arguments,omitempty"`

	// Capability names the registry entry that owns Tool, resolved
	// from the lookup table built at registry construction.
	Capability string `json:"capability_name,omitempty"`

	// FallbackReason explains, in user-presentable words, why a
	// detected tool could not run. Set only when validation forced
	// Mode back to chat.
	FallbackReason string `json:"fallback_reason,omitempty"`

	// MatchedBy records which classifier produced the decision:
	// "pattern", "model", or "" for the default chat path.
	MatchedBy string `json:"matched_by,omitempty"`
}

// chatDecision is the safe default: plain conversation, no tool.
func chatDecision() Decision {
	return Decision{Mode: ModeChat, Arguments: capability.Args{}}
}

// Record is one audit-log entry for a routing decision.
type Record struct {
	Timestamp      time.Time `json:"timestamp"`
	Message        string    `json:"message"` // truncated
	Mode           Mode      `json:"mode"`
	Tool           string    `json:"tool_name,omitempty"`
	MatchedBy      string    `json:"matched_by,omitempty"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	ElapsedMs      int64     `json:"elapsed_ms"`
}

// Stats aggregates routing outcomes since process start.
type Stats struct {
	TotalMessages int64            `json:"total_messages"`
	ChatDecisions int64            `json:"chat_decisions"`
	ToolDecisions int64            `json:"tool_decisions"`
	Fallbacks     int64            `json:"fallbacks"`
	ToolCounts    map[string]int64 `json:"tool_counts"`
	MatcherCounts map[string]int64 `json:"matcher_counts"`
}
