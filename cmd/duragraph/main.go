package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	natsio "github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/duragraph/duragraph/internal/application/registry"
	"github.com/duragraph/duragraph/internal/application/scheduler"
	"github.com/duragraph/duragraph/internal/config"
	natsbus "github.com/duragraph/duragraph/pkg/adapters/events/nats"
	"github.com/duragraph/duragraph/pkg/adapters/metrics/prometheus"
	"github.com/duragraph/duragraph/pkg/adapters/storage/postgres"
	"github.com/duragraph/duragraph/pkg/api/http"
	"github.com/duragraph/duragraph/pkg/api/websocket"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting DuraGraph control plane",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Connect to Postgres
	orm, err := gorm.Open(gormpostgres.Open(cfg.PostgresDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Fatal("failed to connect to Postgres", zap.Error(err))
	}
	logger.Info("connected to Postgres",
		zap.String("host", cfg.Postgres.Host),
		zap.Int("port", cfg.Postgres.Port))

	store := postgres.NewStore(orm, logger)
	if err := store.Initialize(); err != nil {
		logger.Fatal("failed to migrate schema", zap.Error(err))
	}

	// Connect to NATS
	conn, err := natsio.Connect(cfg.NATS.URL,
		natsio.Name("duragraph-control-plane"),
		natsio.MaxReconnects(-1))
	if err != nil {
		logger.Fatal("failed to connect to NATS", zap.Error(err))
	}
	logger.Info("connected to NATS", zap.String("url", cfg.NATS.URL))

	bus, err := natsbus.NewBus(conn, cfg.NATS.Stream, logger)
	if err != nil {
		logger.Fatal("failed to create event bus", zap.Error(err))
	}

	metricsCollector := prometheus.NewCollector()

	// Initialize application components
	validator := scheduler.NewValidator()

	workerRegistry := registry.New(
		cfg.Workers.HeartbeatTTL,
		cfg.Workers.SweepInterval,
		metricsCollector,
		logger,
	)
	workerRegistry.Start()

	sched := scheduler.New(
		store,
		bus,
		metricsCollector,
		validator,
		workerRegistry,
		logger,
		cfg.Timeouts.RunExecutionTimeout,
	)

	// Initialize API server
	httpServer := http.NewServer(&http.Config{
		Port:      cfg.Port,
		Scheduler: sched,
		Registry:  workerRegistry,
		Logger:    logger,
		BrokerURL: cfg.NATS.URL,
		Checks: []http.HealthCheck{
			{Name: "datastore", Check: store.Ping},
			{Name: "broker", Check: func(ctx context.Context) error {
				if !bus.Healthy() {
					return fmt.Errorf("broker connection lost")
				}
				return nil
			}},
		},
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(bus, logger)
	httpServer.SetupWebSocket(wsHandler)

	// Start server
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	logger.Info("DuraGraph control plane started",
		zap.Int("port", cfg.Port))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	workerRegistry.Stop()

	if err := sched.Shutdown(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown error", zap.Error(err))
	}

	if err := bus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}
	conn.Close()

	if db, err := orm.DB(); err == nil {
		if err := db.Close(); err != nil {
			logger.Error("Postgres close error", zap.Error(err))
		}
	}

	logger.Info("DuraGraph control plane shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
