// Package api implements the HTTP API for inspecting the record store
// and invoking dispatch operations remotely.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/calldeck/calldeck/internal/buildinfo"
	"github.com/calldeck/calldeck/internal/dispatch"
	"github.com/calldeck/calldeck/internal/events"
	"github.com/calldeck/calldeck/internal/query"
	"github.com/calldeck/calldeck/internal/store"
	"github.com/calldeck/calldeck/internal/web"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	address    string
	port       int
	dispatcher *dispatch.Dispatcher
	engine     *query.Engine
	store      *store.Store
	bus        *events.Bus
	dashboard  *web.WebServer
	logger     *slog.Logger
	server     *http.Server
}

// NewServer creates the API server. dashboard may be nil to run
// headless; bus may be nil to disable the event feed.
func NewServer(address string, port int, d *dispatch.Dispatcher, s *store.Store, bus *events.Bus, dashboard *web.WebServer, logger *slog.Logger) *Server {
	return &Server{
		address:    address,
		port:       port,
		dispatcher: d,
		engine:     query.NewEngine(s),
		store:      s,
		bus:        bus,
		dashboard:  dashboard,
		logger:     logger,
	}
}

// Handler builds the route table. Exposed separately from Start so
// tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionGet)
	mux.HandleFunc("GET /api/information", s.handleInformation)
	mux.HandleFunc("GET /api/calls", s.handleCalls)
	mux.HandleFunc("GET /api/raw", s.handleRaw)
	mux.HandleFunc("GET /api/tools", s.handleTools)
	mux.HandleFunc("POST /api/function", s.handleFunction)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	mux.HandleFunc("GET /health", s.handleHealth)

	if s.dashboard != nil {
		mux.HandleFunc("GET /", s.dashboard.HandleDashboard)
	} else {
		mux.HandleFunc("GET /", s.handleRoot)
	}

	return s.withLogging(mux)
}

// Start begins serving HTTP requests. Blocks until the listener fails
// or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // the event feed holds connections open
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

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]string{
		"name":    "Calldeck",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "healthy",
		"uptime":  buildinfo.Uptime().Round(time.Second).String(),
		"version": buildinfo.Version,
	}, s.logger)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Summary(), s.logger)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Sessions(), s.logger)
}

// handleSessionGet returns one session, or an empty object for an
// unknown id. Unknown is not an error: callers poll for sessions that
// may not have produced records yet.
func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	sess := s.engine.SessionInfo(r.PathValue("id"))
	if sess == nil {
		writeJSON(w, map[string]any{}, s.logger)
		return
	}
	writeJSON(w, sess, s.logger)
}

func (s *Server) handleInformation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, total := s.engine.Information(query.Filter{
		Category: q.Get("category"),
		CallerID: q.Get("caller_id"),
		Limit:    intQuery(q.Get("limit"), 50),
	})
	writeJSON(w, map[string]any{
		"information":     page,
		"count":           len(page),
		"total_available": total,
	}, s.logger)
}

func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	calls := s.engine.CallLogs(intQuery(r.URL.Query().Get("limit"), 50))
	writeJSON(w, map[string]any{
		"calls": calls,
		"count": len(calls),
	}, s.logger)
}

// handleRaw dumps the entire document for debugging.
func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.Document(), s.logger)
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"tools": s.dispatcher.Tools(),
	}, s.logger)
}

// FunctionRequest is the POST /api/function body: a remote invocation
// of a dispatch operation, mirroring what the voice pipeline sends
// in-process.
type FunctionRequest struct {
	FunctionName string         `json:"function_name"`
	Parameters   map[string]any `json:"parameters"`
	SessionID    string         `json:"session_id"`
}

func (s *Server) handleFunction(w http.ResponseWriter, r *http.Request) {
	var req FunctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]any{
			"success": false,
			"error":   "invalid request body: " + err.Error(),
		}, s.logger)
		return
	}
	if req.FunctionName == "" {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]any{
			"success": false,
			"error":   "function_name is required",
		}, s.logger)
		return
	}

	// Dispatch failures come back as failure envelopes with HTTP 200:
	// the transport worked, the operation did not.
	env := s.dispatcher.Handle(r.Context(), req.FunctionName, req.Parameters, req.SessionID)
	writeJSON(w, env, s.logger)
}

// intQuery parses a query parameter as int, falling back to def on
// absence or garbage.
func intQuery(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
