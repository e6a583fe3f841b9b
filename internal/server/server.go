package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/rickgao/marketfeed/internal/connection"
	"github.com/rickgao/marketfeed/internal/poller"
	"github.com/rickgao/marketfeed/internal/router"
	"github.com/rickgao/marketfeed/internal/version"
)

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// StreamSource reports trade stream statistics.
type StreamSource interface {
	Stats() connection.StreamStats
}

// DispatcherSource reports frame routing statistics.
type DispatcherSource interface {
	Stats() router.DispatcherStats
}

// PollerSource reports snapshot poller state.
type PollerSource interface {
	State() poller.State
	LastCycle() poller.CycleStats
}

// Config holds server settings.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// Deps are the components the server reports on. Nil members are omitted.
type Deps struct {
	Stream     StreamSource
	Dispatcher DispatcherSource
	Poller     PollerSource
	Metrics    http.Handler
}

// Server serves health, metrics and status over HTTP.
type Server struct {
	cfg     Config
	deps    Deps
	logger  *slog.Logger
	router  *mux.Router
	started time.Time

	mu   sync.Mutex
	http *http.Server
	addr net.Addr
}

// New creates a Server. Routes are registered immediately.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		logger:  logger.With("component", "server"),
		router:  mux.NewRouter(),
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
}

// Handler returns the routed handler wrapped in CORS.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// Start listens on the configured port and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.http = srv
	s.addr = ln.Addr()
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	s.logger.Info("http server started", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string         `json:"status"`
	Components map[string]any `json:"components"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:     StatusHealthy,
		Components: make(map[string]any),
	}

	if s.deps.Stream != nil {
		stats := s.deps.Stream.Stats()
		health.Components["stream"] = map[string]any{
			"state":  stats.State,
			"frames": stats.Frames,
		}
		switch stats.State {
		case connection.StateReceiving.String():
		case connection.StateStopped.String():
			health.Status = StatusUnhealthy
		default:
			health.degrade()
		}
	}

	if s.deps.Poller != nil {
		state := s.deps.Poller.State()
		last := s.deps.Poller.LastCycle()
		health.Components["poller"] = map[string]any{
			"state":   state.String(),
			"fetched": last.Fetched,
			"failed":  last.Failed,
		}
		switch {
		case state == poller.StateStopped:
			health.Status = StatusUnhealthy
		case last.Symbols > 0 && last.Fetched == 0:
			health.degrade()
		}
	}

	status := http.StatusOK
	if health.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, health)
}

func (h *HealthResponse) degrade() {
	if h.Status == StatusHealthy {
		h.Status = StatusDegraded
	}
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Version    string                  `json:"version"`
	Commit     string                  `json:"commit"`
	Uptime     string                  `json:"uptime"`
	Stream     *connection.StreamStats `json:"stream,omitempty"`
	Dispatcher *router.DispatcherStats `json:"dispatcher,omitempty"`
	Poller     *PollerStatus           `json:"poller,omitempty"`
}

// PollerStatus is the poller section of StatusResponse.
type PollerStatus struct {
	State     string            `json:"state"`
	LastCycle poller.CycleStats `json:"last_cycle"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version: version.Version,
		Commit:  version.Commit,
		Uptime:  time.Since(s.started).Truncate(time.Second).String(),
	}
	if s.deps.Stream != nil {
		stats := s.deps.Stream.Stats()
		resp.Stream = &stats
	}
	if s.deps.Dispatcher != nil {
		stats := s.deps.Dispatcher.Stats()
		resp.Dispatcher = &stats
	}
	if s.deps.Poller != nil {
		resp.Poller = &PollerStatus{
			State:     s.deps.Poller.State().String(),
			LastCycle: s.deps.Poller.LastCycle(),
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
