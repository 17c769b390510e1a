package capability

import (
	"fmt"
	"log/slog"
	"sort"
)

// Registry maps intent names to the capability that handles them. It
// is built once at startup by explicit registration and read-only
// afterwards, so lookups need no locking.
type Registry struct {
	logger *slog.Logger
	caps   map[string]Capability // capability name → capability
	intent map[string]string     // intent name → capability name
	order  []string              // capability registration order
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger,
		caps:   make(map[string]Capability),
		intent: make(map[string]string),
	}
}

// Register adds a capability and claims all of its intents. A
// duplicate intent name is a configuration bug, not a runtime
// condition, so it fails registration instead of silently letting the
// last registrant win.
func (r *Registry) Register(c Capability) error {
	name := c.Name()
	if _, ok := r.caps[name]; ok {
		return fmt.Errorf("capability %q already registered", name)
	}

	for intent := range c.Intents() {
		if owner, ok := r.intent[intent]; ok {
			return fmt.Errorf("intent %q already registered by capability %q", intent, owner)
		}
	}

	r.caps[name] = c
	r.order = append(r.order, name)
	for intent := range c.Intents() {
		r.intent[intent] = name
	}

	r.logger.Info("capability registered",
		"capability", name,
		"intents", len(c.Intents()),
	)
	return nil
}

// Capability returns the capability with the given name, or nil.
func (r *Registry) Capability(name string) Capability {
	return r.caps[name]
}

// Resolve returns the name of the capability owning an intent.
// The second return is false when the intent is unknown.
func (r *Registry) Resolve(intent string) (string, bool) {
	name, ok := r.intent[intent]
	return name, ok
}

// HasIntent reports whether any capability handles the intent.
func (r *Registry) HasIntent(intent string) bool {
	_, ok := r.intent[intent]
	return ok
}

// Names returns capability names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// IntentMenu returns {name, description} entries for the listed
// intents, in the order given, skipping intents no capability handles.
// The router's classifier uses this to build its bounded tool menu.
func (r *Registry) IntentMenu(intents []string) []IntentInfo {
	var menu []IntentInfo
	for _, intent := range intents {
		capName, ok := r.intent[intent]
		if !ok {
			continue
		}
		desc := r.caps[capName].Intents()[intent]
		menu = append(menu, IntentInfo{Name: intent, Capability: capName, Description: desc})
	}
	return menu
}

// AllIntents returns every registered intent sorted by name, for the
// registry listing endpoint.
func (r *Registry) AllIntents() []IntentInfo {
	out := make([]IntentInfo, 0, len(r.intent))
	for intent, capName := range r.intent {
		out = append(out, IntentInfo{
			Name:        intent,
			Capability:  capName,
			Description: r.caps[capName].Intents()[intent],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IntentInfo describes one registered intent.
type IntentInfo struct {
	Name        string `json:"name"`
	Capability  string `json:"capability"`
	Description string `json:"description"`
}
