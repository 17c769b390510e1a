package router

import (
	"github.com/glowos/glowd/internal/capability"
	"github.com/glowos/glowd/internal/state"
)

// Validation messages are user-facing chat text, not error codes.
const (
	msgToolNotAvailable = "Tool not available"
	msgNoDiscInserted   = "I don't see a disc inserted. Pop one in and I'll rip it."
)

// precondition checks whether a tool can run given the current state
// snapshot. Pure function of its inputs: no I/O, no side effects.
type precondition func(snap state.Snapshot) (ok bool, reason string)

// preconditions maps intents to live-state checks that run after
// registry lookup. Most tools have none; absence means the tool is
// runnable whenever it is registered.
var preconditions = map[string]precondition{
	"rip_disc": func(snap state.Snapshot) (bool, string) {
		if !snap.Device.DiscMounted {
			return false, msgNoDiscInserted
		}
		return true, ""
	},
}

// validateTool checks a routed tool decision against the registry and
// live state. On failure it returns ok=false with the user-facing
// reason; the caller downgrades the decision to chat.
func validateTool(reg *capability.Registry, store *state.Store, tool string) (ok bool, reason string) {
	if !reg.HasIntent(tool) {
		return false, msgToolNotAvailable
	}
	check, found := preconditions[tool]
	if !found {
		return true, ""
	}
	return check(store.Get())
}
