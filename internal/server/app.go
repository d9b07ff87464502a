// Package server exposes the research pipeline over HTTP: an SSE research
// stream, session status, report export and operational endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deepscribe/researchd/config"
	"github.com/deepscribe/researchd/internal/research"
	"github.com/deepscribe/researchd/internal/session"
)

// Runner is the coordinator surface the transport layer depends on.
type Runner interface {
	NewSession(topic string, depth research.Depth, format string) research.Session
	Run(ctx context.Context, sess research.Session) <-chan research.ProgressEvent
}

// Server wires the HTTP routes to the pipeline runner and session store.
type Server struct {
	cfg    config.ServerConfig
	runner Runner
	store  session.Store
	logger *log.Logger
	active chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func New(cfg config.ServerConfig, runner Runner, store session.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}
	maxRuns := cfg.MaxActiveRuns
	if maxRuns < 1 {
		maxRuns = 4
	}
	return &Server{
		cfg:     cfg,
		runner:  runner,
		store:   store,
		logger:  logger,
		active:  make(chan struct{}, maxRuns),
		cancels: make(map[string]context.CancelFunc),
	}
}

func (s *Server) registerCancel(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[id] = cancel
}

func (s *Server) unregisterCancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, id)
}

func (s *Server) cancelRun(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.cancels[id]
	if ok {
		cancel()
	}
	return ok
}

// Echo builds the configured echo application.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]any{"error": msg})
		}
	}

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if s.cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	api := e.Group("/api")
	api.GET("/health", s.health)
	api.GET("/stats", s.stats)
	api.GET("/research/stream", s.streamResearch)
	api.GET("/research/:id", s.getSession)
	api.GET("/research/:id/report", s.getReport)
	api.POST("/research/:id/cancel", s.cancelSession)
	api.POST("/export", s.exportReport)
	return e
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	e := s.Echo()
	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(s.cfg.Address); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	s.logger.Printf("listening on %s", s.cfg.Address)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
