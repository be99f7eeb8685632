// Package http provides the HTTP API for teachd.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/teachd/internal/services"
)

// Server provides HTTP endpoints for teachd.
type Server struct {
	echo     *echo.Echo
	registry services.Registry
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(registry services.Registry, logger *zap.Logger, cfg *Config) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("service registry cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())

	s := &Server{
		echo:     e,
		registry: registry,
		logger:   logger,
		config:   cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check
	s.echo.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	v1.POST("/sessions", s.handleCreateSession)
	v1.GET("/sessions", s.handleListSessions)
	v1.GET("/sessions/:id", s.handleGetSession)
	v1.PUT("/sessions/:id", s.handleUpdateSession)
	v1.DELETE("/sessions/:id", s.handleDeleteSession)
	v1.GET("/sessions/:id/messages", s.handleListMessages)
	v1.POST("/sessions/:id/messages", s.handleAppendMessage)

	v1.POST("/sessions/:id/runs", s.handleStartRun)
	v1.GET("/sessions/:id/runs/current", s.handleRunStatus)
	v1.DELETE("/sessions/:id/runs/current", s.handleCancelRun)
	v1.POST("/sessions/:id/runs/current/checkpoints/:stage", s.handleResolveCheckpoint)

	v1.POST("/intent/classify", s.handleClassify)
	v1.GET("/intent/suggestions", s.handleSuggestions)

	v1.GET("/sessions/:id/memory", s.handleSearchMemory)
	v1.GET("/sessions/:id/memory/stats", s.handleMemoryStats)

	v1.POST("/speech/synthesize", s.handleSynthesize)
	v1.GET("/speech/voices", s.handleVoices)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}

// handleHealth reports server and collaborator health.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Services: map[string]string{}}

	if sp := s.registry.Speech(); sp != nil {
		if sp.Available(c.Request().Context()) {
			resp.Services["speech"] = "up"
		} else {
			resp.Services["speech"] = "down"
		}
	}
	if s.registry.Workflow() != nil {
		resp.Services["workflow"] = "up"
	}

	return c.JSON(http.StatusOK, resp)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying echo instance so callers can mount
// additional handlers, like the Prometheus metrics endpoint.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
