// Package api implements the HTTP and WebSocket surface the frontend
// talks to: state reads, task control, message routing, and the event
// stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/glowos/glowd/internal/buildinfo"
	"github.com/glowos/glowd/internal/capability"
	"github.com/glowos/glowd/internal/events"
	"github.com/glowos/glowd/internal/history"
	"github.com/glowos/glowd/internal/router"
	"github.com/glowos/glowd/internal/state"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the glowd API server.
type Server struct {
	address string
	port    int
	router  *router.Router
	store   *state.Store
	reg     *capability.Registry
	history *history.Store
	bus     *events.Bus
	chatter Chatter
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates the API server. History, bus, and chatter are
// optional and attached via setters.
func NewServer(address string, port int, rtr *router.Router, store *state.Store, reg *capability.Registry, logger *slog.Logger) *Server {
	return &Server{
		address: address,
		port:    port,
		router:  rtr,
		store:   store,
		reg:     reg,
		logger:  logger,
	}
}

// SetHistory attaches the tool-run history store.
func (s *Server) SetHistory(h *history.Store) {
	s.history = h
}

// SetBus attaches the event bus for WebSocket fan-out.
func (s *Server) SetBus(b *events.Bus) {
	s.bus = b
}

// SetChatter attaches the conversational backend for /ws chat.
func (s *Server) SetChatter(c Chatter) {
	s.chatter = c
}

// Handler builds the full route table. Separated from Start so tests
// can exercise it without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Frontend state surface
	mux.HandleFunc("GET /glow/state", s.handleState)
	mux.HandleFunc("POST /glow/notifications/clear", s.handleClearNotifications)

	// Task board
	mux.HandleFunc("GET /api/tasks", s.handleTasks)
	mux.HandleFunc("POST /api/tasks/{id}/stop", s.handleTaskStop)
	mux.HandleFunc("POST /api/tasks/{id}/restart", s.handleTaskRestart)

	// Routing
	mux.HandleFunc("POST /api/route", s.handleRoute)
	mux.HandleFunc("GET /api/powers", s.handlePowers)
	mux.HandleFunc("GET /api/router/stats", s.handleRouterStats)
	mux.HandleFunc("GET /api/router/audit", s.handleRouterAudit)

	// Tool-run history
	mux.HandleFunc("GET /api/history", s.handleHistory)

	// Event stream and chat
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	// Health
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // long-lived tool executions
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, map[string]string{"error": message}, s.logger)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "glowd",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, s.store.Get(), s.logger)
}

func (s *Server) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	s.store.Update(state.Partial{
		Notifications: &state.NotificationsPatch{
			DiscInserted: state.Bool(false),
			DiscPath:     state.Str(""),
			Timestamp:    state.Str(""),
		},
	})
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "cleared"}, s.logger)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, s.store.Get().Tasks, s.logger)
}

func (s *Server) handleTaskStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.StopTask(id); err != nil {
		if errors.Is(err, state.ErrTaskNotFound) {
			s.errorResponse(w, http.StatusNotFound, "task not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "stop failed")
		return
	}
	s.logger.Info("task stopped", "task_id", id)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "stopped", "task_id": id}, s.logger)
}

func (s *Server) handleTaskRestart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, err := s.store.RestartTask(id)
	if err != nil {
		if errors.Is(err, state.ErrTaskNotFound) {
			s.errorResponse(w, http.StatusNotFound, "task not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "restart failed")
		return
	}
	s.logger.Info("task restarted", "task_id", id, "tool", task.Type)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, task, s.logger)
}

// RouteRequest is the body for POST /api/route.
type RouteRequest struct {
	Message string `json:"message"`
}

// RouteResponse pairs the routing decision with the tool result, if
// the decision ran one.
type RouteResponse struct {
	Decision router.Decision `json:"decision"`
	Result   map[string]any  `json:"result,omitempty"`
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	decision, result := s.router.Handle(r.Context(), req.Message)

	resp := RouteResponse{Decision: decision}
	if decision.Mode == router.ModeTool {
		resp.Result = resultPayload(result)
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp, s.logger)
}

// resultPayload flattens a tagged tool result into the wire shape the
// frontend renders.
func resultPayload(res capability.Result) map[string]any {
	switch res.Kind {
	case capability.KindStructuredMedia:
		return map[string]any{
			"type":    "media",
			"media":   res.Media,
			"payload": res.Payload,
		}
	case capability.KindError:
		return map[string]any{
			"type":  "error",
			"error": res.ErrMessage,
		}
	default:
		return map[string]any{
			"type": "chat_text",
			"text": res.Text,
		}
	}
}

func (s *Server) handlePowers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"capabilities": s.reg.Names(),
		"intents":      s.reg.AllIntents(),
	}, s.logger)
}

func (s *Server) handleRouterStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, s.router.GetStats(), s.logger)
}

func (s *Server) handleRouterAudit(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, s.router.AuditLog(), s.logger)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.errorResponse(w, http.StatusNotFound, "history not configured")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := s.history.Recent(r.Context(), r.URL.Query().Get("tool"), limit)
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "history query failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"entries": entries}, s.logger)
}
