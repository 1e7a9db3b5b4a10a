package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/IshaanNene/commentgoat/internal/config"
	"github.com/IshaanNene/commentgoat/internal/engine"
	"github.com/IshaanNene/commentgoat/internal/settings"
	"github.com/IshaanNene/commentgoat/internal/storage"
	"github.com/IshaanNene/commentgoat/internal/types"
)

// Runner is the part of the controller the API drives.
type Runner interface {
	Run(ctx context.Context, origin string, policy types.Policy, startURL string, sink engine.Sink) (*engine.RunState, error)
	Busy(origin string) bool
}

// TriggerChecker decides whether a trigger may start a run.
type TriggerChecker interface {
	CheckTrigger(ctx context.Context, t settings.Trigger) error
}

// SinkFactory opens the sink a run writes to.
type SinkFactory func(output string) (engine.Sink, error)

// Server exposes the trigger surface over HTTP.
type Server struct {
	cfg     config.ServerConfig
	router  *gin.Engine
	runner  Runner
	flags   TriggerChecker
	sinks   SinkFactory
	metrics http.Handler
	perPage int
	logger  *slog.Logger
	started time.Time

	// Job tracking
	jobs     map[string]*Job
	byOrigin map[string]string
	jobsMu   sync.RWMutex

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithCommentsPerPage sets the page size used to size count runs.
func WithCommentsPerPage(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.perPage = n
		}
	}
}

// WithSinkFactory replaces the text-file sink factory.
func WithSinkFactory(f SinkFactory) Option {
	return func(s *Server) { s.sinks = f }
}

// NewServer creates a server. The runner is attached with SetRunner so the
// server can double as the controller's progress reporter.
func NewServer(cfg config.ServerConfig, flags TriggerChecker, logger *slog.Logger, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		flags:    flags,
		perPage:  20,
		logger:   logger.With("component", "api_server"),
		started:  time.Now(),
		jobs:     make(map[string]*Job),
		byOrigin: make(map[string]string),
		baseCtx:  ctx,
		cancel:   cancel,
	}
	s.sinks = func(output string) (engine.Sink, error) {
		return storage.NewTextSink(filepath.Join(cfg.OutputDir, output), logger)
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// SetRunner attaches the controller.
func (s *Server) SetRunner(r Runner) {
	s.runner = r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	if s.cfg.Mode != "" {
		gin.SetMode(s.cfg.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(s.logger))

	v1 := r.Group("/api/v1")
	v1.GET("/health", s.handleHealth)

	runs := v1.Group("/runs")
	runs.Use(RateLimit(s.cfg.RequestsPerSecond, s.cfg.Burst))
	runs.POST("", s.handleCreateRun)
	runs.GET("", s.handleListRuns)
	runs.GET("/:id", s.handleGetRun)

	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}
	return r
}

// Start serves until ctx is done, then cancels running jobs and waits for
// them to close their sinks.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Shutdown()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Shutdown()
	return err
}

// Shutdown cancels all running jobs and waits for them.
func (s *Server) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) handleHealth(c *gin.Context) {
	s.jobsMu.RLock()
	active := len(s.byOrigin)
	s.jobsMu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"version":     config.Version,
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"active_runs": active,
	})
}

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}
