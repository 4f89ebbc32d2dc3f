package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"orderflow/internal/common/logger"
	"orderflow/internal/common/tracing"
	"orderflow/internal/config"
	"orderflow/internal/connections/database"
	"orderflow/internal/microservices/order"
	"orderflow/internal/microservices/processor"
)

const (
	modeOrderService   = "order-service"
	modeOrderProcessor = "order-processor"
)

func main() {
	mode := flag.String("mode", "", "order-service | order-processor")
	envFile := flag.String("env-file", ".env", "dotenv file to load before reading the environment")
	port := flag.Int("port", 0, "order-service: http port (overrides HTTP_PORT)")
	prefetch := flag.Int("prefetch", 0, "order-processor: RabbitMQ prefetch (overrides PROCESSOR_PREFETCH)")
	flag.Parse()

	var run func(context.Context, config.Config, *sql.DB, *zap.Logger) error
	switch *mode {
	case modeOrderService:
		run = order.Run
	case modeOrderProcessor:
		run = processor.Run
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: order-service | order-processor")
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}
	if *prefetch != 0 {
		cfg.Processor.Prefetch = *prefetch
	}

	lg := logger.New(*mode, cfg.LogLevel)
	defer func() { _ = lg.Sync() }()

	if err := start(*mode, cfg, run, lg); err != nil {
		lg.Error("fatal", zap.Error(err))
		os.Exit(1)
	}
}

func start(mode string, cfg config.Config, run func(context.Context, config.Config, *sql.DB, *zap.Logger) error, lg *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Init(mode, cfg.OTelOut)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			lg.Warn("tracing_shutdown_failed", zap.Error(err))
		}
	}()

	gin.SetMode(gin.ReleaseMode)

	db, err := database.ConnectDB(ctx, cfg.Database, lg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		return err
	}

	lg.Info("service_started", zap.String("mode", mode))
	if err := run(ctx, cfg, db, lg); err != nil {
		return err
	}
	lg.Info("service_stopped", zap.String("mode", mode))
	return nil
}
