// Package capability defines the contract between the router and the
// tools it dispatches to, plus the registry that maps intent names to
// the capability that handles them.
package capability

import (
	"context"
	"fmt"
)

// Args are the keyword arguments extracted for an intent.
type Args map[string]any

// String returns the named argument as a string, or "" if absent or
// not a string.
func (a Args) String(key string) string {
	v, _ := a[key].(string)
	return v
}

// ResultKind tags the variant carried by a [Result].
type ResultKind int

const (
	// KindChatText is a plain text reply to show as assistant output.
	KindChatText ResultKind = iota
	// KindStructuredMedia is a structured payload (file search results,
	// plex items, download info) rendered by the frontend per Media kind.
	KindStructuredMedia
	// KindError is a structured failure with a user-presentable message.
	KindError
)

// Result is the tagged outcome of a capability invocation. Callers
// switch on Kind rather than sniffing payload shapes.
type Result struct {
	Kind ResultKind `json:"kind"`

	// Text is set for KindChatText.
	Text string `json:"text,omitempty"`

	// Media and Payload are set for KindStructuredMedia. Media names
	// the payload shape, e.g. "file_search" or "plex_video".
	Media   string `json:"media,omitempty"`
	Payload any    `json:"payload,omitempty"`

	// ErrMessage is set for KindError.
	ErrMessage string `json:"error,omitempty"`
}

// ChatText builds a plain-text result.
func ChatText(text string) Result {
	return Result{Kind: KindChatText, Text: text}
}

// StructuredMedia builds a structured payload result.
func StructuredMedia(media string, payload any) Result {
	return Result{Kind: KindStructuredMedia, Media: media, Payload: payload}
}

// Errorf builds an error result. The message must be safe to show to
// the end user; raw internals stay in logs.
func Errorf(format string, args ...any) Result {
	return Result{Kind: KindError, ErrMessage: fmt.Sprintf(format, args...)}
}

// Progress is one intermediate report from a long-running tool.
type Progress struct {
	// Percent is 0–100 as reported by the underlying tool.
	Percent float64 `json:"progress"`
	// Status is a short machine-ish phase name ("ripping", "muxing").
	Status string `json:"status,omitempty"`
	// Message is a human-readable progress line.
	Message string `json:"message,omitempty"`
}

// ProgressSink receives intermediate progress from a capability. A
// capability may call Report zero or more times before returning its
// final result; the executor forwards reports into the task board and
// onto the event stream. Implementations must be safe for concurrent
// use. A nil-safe no-op sink is available via [DiscardProgress].
type ProgressSink interface {
	Report(p Progress)
}

// ProgressFunc adapts a function to the ProgressSink interface.
type ProgressFunc func(p Progress)

// Report implements ProgressSink.
func (f ProgressFunc) Report(p Progress) { f(p) }

// DiscardProgress is a sink that drops all reports.
var DiscardProgress ProgressSink = ProgressFunc(func(Progress) {})

// Capability is a named external action provider. Implementations are
// constructed once at startup, registered explicitly, and may be
// invoked concurrently by multiple in-flight requests; any internal
// state they keep is their own responsibility.
type Capability interface {
	// Name identifies the capability ("plex", "ripdisc", ...).
	Name() string

	// Intents maps each intent name this capability handles to a short
	// human description used in tool menus.
	Intents() map[string]string

	// Run executes one intent. The sink is never nil; capabilities
	// that have nothing to stream simply never call it. Run may return
	// an error for execution failures; the executor converts it into a
	// task error and a structured error result, so errors here never
	// crash the router.
	Run(ctx context.Context, intent string, args Args, sink ProgressSink) (Result, error)
}
