package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"ph-monitor/internal/metrics"
	"ph-monitor/internal/models"
	"ph-monitor/internal/services"
)

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// MonitorInfo describes one monitored source and its latest report
type MonitorInfo struct {
	Source           string         `json:"source"`
	Mode             string         `json:"mode"`
	Setpoint         float64        `json:"setpoint"`
	TimeWindow       string         `json:"time_window"`
	AnalysisInterval string         `json:"analysis_interval"`
	Report           *models.Report `json:"report"`
}

// Server exposes the monitors, the live report stream, metrics and health
type Server struct {
	registry *services.Registry
	hub      *Hub
	metrics  *metrics.Metrics
	srv      *http.Server
	now      func() time.Time
	log      *slog.Logger

	mu     sync.RWMutex
	checks map[string]HealthCheck
	start  time.Time
}

func NewServer(addr string, registry *services.Registry, hub *Hub, m *metrics.Metrics) *Server {
	s := &Server{
		registry: registry,
		hub:      hub,
		metrics:  m,
		now:      time.Now,
		log:      slog.Default().With("component", "api"),
		checks:   make(map[string]HealthCheck),
		start:    time.Now(),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// AddCheck registers a dependency probe for /healthz
func (s *Server) AddCheck(name string, check HealthCheck) {
	s.mu.Lock()
	s.checks[name] = check
	s.mu.Unlock()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/monitors", s.handleMonitors)
	mux.HandleFunc("GET /api/monitors/{source}", s.handleMonitor)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) info(session *services.Session) MonitorInfo {
	report := session.Latest()
	if report == nil {
		r := session.Report(s.now())
		report = &r
	}
	return MonitorInfo{
		Source:           session.Source(),
		Mode:             string(session.Mode()),
		Setpoint:         session.Params().Setpoint,
		TimeWindow:       session.Params().TimeWindow.String(),
		AnalysisInterval: session.AnalysisInterval().String(),
		Report:           report,
	}
}

func (s *Server) handleMonitors(w http.ResponseWriter, r *http.Request) {
	sessions := s.registry.Sessions()
	out := make([]MonitorInfo, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, s.info(session))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	session, err := s.registry.Get(r.PathValue("source"))
	if errors.Is(err, services.ErrUnknownSession) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.info(session))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	var initial []models.Report
	for _, session := range s.registry.Sessions() {
		if report := session.Latest(); report != nil {
			initial = append(initial, *report)
		}
	}
	s.hub.ServeWS(w, r, initial)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	status := "healthy"
	code := http.StatusOK
	deps := make(map[string]string, len(names))
	for _, name := range names {
		s.mu.RLock()
		check := s.checks[name]
		s.mu.RUnlock()

		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":       status,
		"uptime":       time.Since(s.start).Round(time.Second).String(),
		"monitors":     len(s.registry.Sessions()),
		"ws_clients":   s.hub.ClientCount(),
		"dependencies": deps,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
