// Package http provides the HTTP API for projectd.
//
// The API is a thin front-end over the orchestrator and services; it owns no
// orchestration logic of its own.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/conversation"
	"github.com/fyrsmithlabs/projectd/internal/embedcache"
	"github.com/fyrsmithlabs/projectd/internal/indexer"
	"github.com/fyrsmithlabs/projectd/internal/logging"
	"github.com/fyrsmithlabs/projectd/internal/orchestrator"
	"github.com/fyrsmithlabs/projectd/internal/registry"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Services are the collaborators the API exposes.
type Services struct {
	Orchestrator *orchestrator.Orchestrator
	Registry     *registry.Registry
	Conversation *conversation.Manager
	Indexer      *indexer.Service
	Cache        *embedcache.Cache
}

// Server provides HTTP endpoints for projectd.
type Server struct {
	echo     *echo.Echo
	services Services
	logger   *logging.Logger
	config   *Config
}

// NewServer creates a new HTTP server.
func NewServer(services Services, logger *logging.Logger, cfg *Config) (*Server, error) {
	if services.Orchestrator == nil || services.Registry == nil {
		return nil, fmt.Errorf("orchestrator and registry are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9090}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		services: services,
		logger:   logger.Named("http"),
		config:   cfg,
	}
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/projects", s.handleListProjects)
	v1.POST("/projects", s.handleRegisterProject)
	v1.GET("/projects/current", s.handleCurrentProject)
	v1.POST("/projects/:id/switch", s.handleSwitchProject)
	v1.POST("/projects/:id/status", s.handleUpdateStatus)
	v1.POST("/projects/:id/index", s.handleIndexProject)
	v1.POST("/messages", s.handleAddMessage)
	v1.GET("/messages", s.handleListMessages)
	v1.GET("/cache/stats", s.handleCacheStats)
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler returns the underlying handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
