// Package llm provides the chat-completion client used by the
// fallback classifier.
package llm

import "context"

// Client is the interface a chat-completion provider must implement.
type Client interface {
	// Chat sends one chat completion request and returns the response.
	Chat(ctx context.Context, model string, messages []Message, opts Options) (*ChatResponse, error)

	// Ping exercises the provider with a trivial request, warming any
	// cold connection or model so the first real request is cheap.
	Ping(ctx context.Context) error
}

// Message represents a chat message for the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are per-request model parameters.
type Options struct {
	MaxTokens   int
	Temperature float64
	// JSONMode requests a schema-constrained JSON object response
	// where the provider supports it. Providers that reject the
	// parameter retry without it; callers must still parse
	// defensively.
	JSONMode bool
}
