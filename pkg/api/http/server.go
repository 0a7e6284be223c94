package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/duragraph/duragraph/internal/application/registry"
	"github.com/duragraph/duragraph/internal/application/scheduler"
)

// HealthCheck probes one dependency for the /health endpoint
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server represents the HTTP API server
type Server struct {
	router    *gin.Engine
	server    *http.Server
	scheduler *scheduler.Scheduler
	registry  *registry.Registry
	logger    *zap.Logger
	brokerURL string
	checks    []HealthCheck
}

// Config holds HTTP server configuration
type Config struct {
	Port      int
	Scheduler *scheduler.Scheduler
	Registry  *registry.Registry
	Logger    *zap.Logger

	// BrokerURL is handed to workers at registration so they can
	// subscribe to their dispatch subjects.
	BrokerURL string

	Checks []HealthCheck
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware())

	s := &Server{
		router:    router,
		scheduler: cfg.Scheduler,
		registry:  cfg.Registry,
		logger:    cfg.Logger,
		brokerURL: cfg.BrokerURL,
		checks:    cfg.Checks,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// Metrics
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// Assistant endpoints
		v1.POST("/assistants", s.handleCreateAssistant)
		v1.GET("/assistants", s.handleListAssistants)
		v1.GET("/assistants/:id", s.handleGetAssistant)

		// Run endpoints
		v1.POST("/runs", s.handleSubmitRun)
		v1.GET("/runs/:id", s.handleGetRun)
		v1.GET("/runs/:id/events", s.handleGetRunEvents)
		v1.POST("/runs/:id/cancel", s.handleCancelRun)
		v1.POST("/runs/:id/result", s.handleRunResult)

		// Thread endpoints
		v1.GET("/threads/:id/runs", s.handleListThreadRuns)

		// Worker protocol
		v1.POST("/workers", s.handleRegisterWorker)
		v1.GET("/workers", s.handleListWorkers)
		v1.POST("/workers/:id/heartbeat", s.handleWorkerHeartbeat)
		v1.DELETE("/workers/:id", s.handleDeregisterWorker)
	}
}

// SetupWebSocket adds the run event stream handler to the server
func (s *Server) SetupWebSocket(handler interface {
	HandleRunStream(*gin.Context)
}) {
	s.router.GET("/api/v1/runs/:id/ws", handler.HandleRunStream)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// requestLogger is a middleware for request logging
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()))
	}
}
