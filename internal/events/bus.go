// Package events provides a publish/subscribe event bus for operational
// observability. Events flow from components (router, executor,
// watchers) to subscribers (WebSocket handler, MQTT notifier). The bus
// is nil-safe: calling Publish on a nil *Bus is a no-op, so components
// do not need guard checks.
package events

import (
	"sync"
	"time"
)

// Source constants identify which component published an event.
const (
	// SourceRouter identifies events from the message router.
	SourceRouter = "router"
	// SourceExecutor identifies events from the tool executor.
	SourceExecutor = "executor"
	// SourceWatcher identifies events from the state watchers.
	SourceWatcher = "watcher"
)

// Kind constants describe the type of event within a source.
const (
	// KindRouteDecided signals a routing decision was made.
	// Data: mode, tool, capability, matched_by, elapsed_ms.
	KindRouteDecided = "route_decided"
	// KindTaskStarted signals a tool execution began.
	// Data: task_id, tool, capability.
	KindTaskStarted = "task_started"
	// KindTaskProgress signals intermediate progress from a running tool.
	// Data: task_id, tool, progress, status, message.
	KindTaskProgress = "task_progress"
	// KindTaskDone signals a tool execution completed successfully.
	// Data: task_id, tool, duration_ms.
	KindTaskDone = "task_done"
	// KindTaskError signals a tool execution failed or was stopped.
	// Data: task_id, tool, error.
	KindTaskError = "task_error"
	// KindDiscInserted signals the disc watcher detected new media.
	// Data: path.
	KindDiscInserted = "disc_inserted"
	// KindDiscEjected signals the disc watcher saw the disc go away.
	// Data: path.
	KindDiscEjected = "disc_ejected"
)

// Event represents a single operational event published by a component.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"ts"`
	// Source identifies the component that published the event.
	Source string `json:"source"`
	// Kind describes the type of event within the source.
	Kind string `json:"kind"`
	// Data holds event-specific key/value pairs.
	Data map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast event bus. Subscribers receive events
// on buffered channels; slow subscribers miss events rather than
// blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel returned by Subscribe
	// back to the bidirectional channel stored in subs, so Unsubscribe
	// can accept the caller's <-chan Event view.
	recvToSend map[<-chan Event]chan Event
}

// New creates a new event bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to all subscribers. Non-blocking: if a
// subscriber's channel is full, the event is dropped for that
// subscriber. Safe to call on a nil receiver (no-op).
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is full; drop the event rather than block.
		}
	}
}

// Subscribe returns a channel that receives published events. The
// caller must eventually call Unsubscribe to avoid resource leaks.
// bufSize controls the channel buffer; 64 is a reasonable default for
// WebSocket consumers.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes the channel. Safe to
// call with a channel that is already unsubscribed (no-op).
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
