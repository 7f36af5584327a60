// Package server exposes turn handling over HTTP for the canvas front end.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"promptcanvas/internal/dispatch"
	"promptcanvas/internal/logging"
	"promptcanvas/internal/scene"
	"promptcanvas/internal/tools"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 10 * time.Second

// maxBodyBytes caps a /prompt request body.
const maxBodyBytes = 1 << 20

// TurnHandler runs one user turn.
type TurnHandler interface {
	HandlePrompt(ctx context.Context, req dispatch.PromptRequest) (scene.TurnResult, error)
}

// TurnHandlerFunc adapts a function to TurnHandler.
type TurnHandlerFunc func(ctx context.Context, req dispatch.PromptRequest) (scene.TurnResult, error)

func (f TurnHandlerFunc) HandlePrompt(ctx context.Context, req dispatch.PromptRequest) (scene.TurnResult, error) {
	return f(ctx, req)
}

// Config holds HTTP settings.
type Config struct {
	Addr           string
	AllowedOrigins []string

	// MaxConnections caps concurrent connections. Zero means unlimited.
	MaxConnections int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MetricsPath mounts the Prometheus handler. Empty disables it.
	MetricsPath string
}

// Server is the HTTP surface.
type Server struct {
	cfg      Config
	turns    TurnHandler
	registry *tools.Registry
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer sets the metrics source served at MetricsPath.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the logger. The default is the server category logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server. registry backs the /tools catalog.
func New(cfg Config, turns TurnHandler, registry *tools.Registry, opts ...Option) *Server {
	s := &Server{cfg: cfg, turns: turns, registry: registry}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Get(logging.CategoryServer).Zap()
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors(s.cfg.AllowedOrigins))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/tools", s.handleTools)
	r.Post("/prompt", s.handlePrompt)

	if s.cfg.MetricsPath != "" && s.gatherer != nil {
		r.Method(http.MethodGet, s.cfg.MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe listens on the configured address and serves until ctx is
// done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		ErrorLog:          zap.NewStdLog(s.logger),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("Listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("max_connections", s.cfg.MaxConnections),
		zap.Strings("allowed_origins", s.cfg.AllowedOrigins))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)

	case <-ctx.Done():
		s.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			<-errCh
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		<-errCh
		return nil
	}
}
