package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"
)

// Config contains probe server settings.
type Config struct {
	// Addr to listen on, e.g. ":8081".
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// CheckTimeout bounds each readiness check.
	CheckTimeout time.Duration
}

// DefaultConfig returns the default probe server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8081",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		CheckTimeout: 3 * time.Second,
	}
}

// DeliveryStats reports post-commit event delivery.
type DeliveryStats func() DeliveryReport

// DeliveryReport is served on /debug/events.
type DeliveryReport struct {
	Published       int64   `json:"published"`
	HandlerRuns     int64   `json:"handler_runs"`
	HandlerFailures int64   `json:"handler_failures"`
	SuccessRate     float64 `json:"success_rate"`
	DeadLetters     int     `json:"dead_letters"`
}

// Server serves /healthz, /readyz and /debug/events.
type Server struct {
	config  Config
	checker *HealthChecker
	stats   DeliveryStats
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates a probe server. stats may be nil.
func NewServer(config Config, checker *HealthChecker, stats DeliveryStats, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:  config,
		checker: checker,
		stats:   stats,
		logger:  logger.With("component", "probe_server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleLiveness)
	mux.HandleFunc("GET /readyz", s.handleReadiness)
	mux.HandleFunc("GET /debug/events", s.handleEvents)

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.recover(mux),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves in the background. Listen errors are logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info("probe server listening", "addr", s.config.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("probe server failed", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status := s.checker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
		s.logger.Warn("readiness check failed", "message", status.Message)
	}
	writeJSON(w, code, status)
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event stats disabled"})
		return
	}
	writeJSON(w, http.StatusOK, s.stats())
}

func (s *Server) recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("probe handler panic",
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
