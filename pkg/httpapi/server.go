// Package httpapi exposes the controller to remote operators over HTTP.
// Command lines go through the same dispatcher as the terminal console.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gwillem/armctl/pkg/console"
	"github.com/gwillem/armctl/pkg/control"
	"github.com/gwillem/armctl/pkg/robot"
)

// CommandHandler executes one operator line.
type CommandHandler interface {
	Handle(line string) console.Reply
}

// StatusSource reports the control loop's state.
type StatusSource interface {
	Snapshot() control.Snapshot
}

// Config holds API server configuration.
type Config struct {
	Listen  string
	Session string
}

// Server is the operator HTTP API.
type Server struct {
	config    Config
	commands  CommandHandler
	status    StatusSource
	reg       *robot.Registry
	gatherer  prometheus.Gatherer
	logger    *zap.Logger
	startedAt time.Time
}

// New creates a server. A nil gatherer disables /metrics.
func New(config Config, commands CommandHandler, status StatusSource, reg *robot.Registry, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		config:    config,
		commands:  commands,
		status:    status,
		reg:       reg,
		gatherer:  gatherer,
		logger:    logger.Named("http"),
		startedAt: time.Now(),
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", zap.String("listen", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Get("/joints", s.handleJoints)
	r.Post("/commands", s.handleCommand)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	Session       string `json:"session,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// CommandRequest is the body of POST /commands.
type CommandRequest struct {
	Line string `json:"line"`
}

// CommandResponse is returned by POST /commands.
type CommandResponse struct {
	Reply string `json:"reply"`
	Quit  bool   `json:"quit,omitempty"`
}

// ErrorResponse carries a failure message.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JointsResponse is returned by GET /joints.
type JointsResponse struct {
	Joints []robot.Joint `json:"joints"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if !s.status.Snapshot().Running {
		status = "stopping"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, HealthzResponse{
		Status:        status,
		Session:       s.config.Session,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.status.Snapshot())
}

func (s *Server) handleJoints(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, JointsResponse{Joints: s.reg.Controlled()})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Line) == "" {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "line is required"})
		return
	}

	reply := s.commands.Handle(req.Line)
	if reply.Err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: reply.Text})
		return
	}
	s.logger.Info("remote command", zap.String("line", req.Line), zap.String("request_id", middleware.GetReqID(r.Context())))
	respondJSON(w, http.StatusOK, CommandResponse{Reply: reply.Text, Quit: reply.Quit})
}

func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
