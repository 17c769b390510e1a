package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/glowos/glowd/internal/events"
	"github.com/glowos/glowd/internal/router"
)

// Chatter produces the conversational reply for messages the router
// leaves in chat mode. Implementations call emit once per chunk and
// must return promptly when ctx is canceled; emit's error signals the
// client went away or asked to stop.
type Chatter interface {
	Stream(ctx context.Context, message string, emit func(chunk string) error) error
}

// ChatterFunc adapts a function to the Chatter interface.
type ChatterFunc func(ctx context.Context, message string, emit func(chunk string) error) error

// Stream implements Chatter.
func (f ChatterFunc) Stream(ctx context.Context, message string, emit func(chunk string) error) error {
	return f(ctx, message, emit)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The frontend lives on a different port on the same LAN host.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientMessage is what the frontend sends over /ws.
type clientMessage struct {
	Type    string `json:"type"` // "chat" or "stop"
	Message string `json:"message,omitempty"`
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer raw.Close()

	conn := &wsConn{conn: raw}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if s.bus != nil {
		ch := s.bus.Subscribe(64)
		defer s.bus.Unsubscribe(ch)
		go s.forwardEvents(ctx, conn, ch)
	}

	s.logger.Debug("websocket client connected", "remote", r.RemoteAddr)

	// One in-flight chat job per connection; "stop" cancels it
	// between chunks.
	var jobMu sync.Mutex
	var jobCancel context.CancelFunc

	for {
		var msg clientMessage
		if err := raw.ReadJSON(&msg); err != nil {
			s.logger.Debug("websocket client gone", "remote", r.RemoteAddr, "error", err)
			return
		}

		switch msg.Type {
		case "chat":
			if msg.Message == "" {
				conn.send(map[string]string{"type": "error", "message": "empty message"})
				continue
			}
			jobMu.Lock()
			if jobCancel != nil {
				jobCancel()
			}
			jobCtx, cancelJob := context.WithCancel(ctx)
			jobCancel = cancelJob
			jobMu.Unlock()
			go s.handleChat(jobCtx, conn, msg.Message)

		case "stop":
			jobMu.Lock()
			if jobCancel != nil {
				jobCancel()
				jobCancel = nil
			}
			jobMu.Unlock()
			conn.send(map[string]string{"type": "stopped"})

		default:
			conn.send(map[string]string{"type": "error", "message": "unknown message type"})
		}
	}
}

// handleChat routes one message and streams the outcome back.
func (s *Server) handleChat(ctx context.Context, conn *wsConn, message string) {
	decision := s.router.RouteMessage(ctx, message)
	if err := conn.send(map[string]any{"type": "decision", "decision": decision}); err != nil {
		return
	}

	if decision.Mode == router.ModeTool {
		result := s.router.ExecuteTool(ctx, decision)
		conn.send(map[string]any{"type": "result", "result": resultPayload(result)})
		conn.send(map[string]string{"type": "done"})
		return
	}

	// Validation failures surface as a direct assistant utterance.
	if decision.FallbackReason != "" {
		conn.send(map[string]string{"type": "chunk", "text": decision.FallbackReason})
		conn.send(map[string]string{"type": "done"})
		return
	}

	if s.chatter == nil {
		conn.send(map[string]string{"type": "error", "message": "chat backend not configured"})
		return
	}

	err := s.chatter.Stream(ctx, message, func(chunk string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return conn.send(map[string]string{"type": "chunk", "text": chunk})
	})
	if err != nil {
		if ctx.Err() != nil {
			// Canceled by "stop" or disconnect; the client already knows.
			return
		}
		s.logger.Error("chat stream failed", "error", err)
		conn.send(map[string]string{"type": "error", "message": "chat failed"})
		return
	}
	conn.send(map[string]string{"type": "done"})
}

// forwardEvents pushes bus events to the client until it disconnects.
func (s *Server) forwardEvents(ctx context.Context, conn *wsConn, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.send(map[string]any{"type": "event", "event": e}); err != nil {
				return
			}
		}
	}
}
