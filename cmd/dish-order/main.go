// cmd/dish-order/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mcp-dish-order/internal/config"
	"mcp-dish-order/internal/events"
	"mcp-dish-order/internal/inventory"
	"mcp-dish-order/internal/observability"
	"mcp-dish-order/internal/seed"
	"mcp-dish-order/internal/server"
	"mcp-dish-order/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrVersion) {
		fmt.Printf("mcp-%s version %s\n", config.ServiceName, config.ServiceVersion)
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tel, err := observability.SetupOTel(ctx, observability.OTelConfig{
		Endpoint:       cfg.Telemetry.OtelEndpoint,
		AuthHeader:     cfg.Telemetry.OtelAuthHeader,
		ServiceName:    config.ServiceName,
		ServiceVersion: config.ServiceVersion,
	})
	if err != nil {
		log.Printf("Telemetry partially disabled: %v", err)
	}

	logger, err := observability.NewLogger(config.ServiceName, cfg.Telemetry.LogLevel, tel.Enabled)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(ctx, cfg, tel, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		flushTelemetry(tel, logger)
		os.Exit(1)
	}
	flushTelemetry(tel, logger)
}

func run(ctx context.Context, cfg *config.Config, tel *observability.Telemetry, logger *zap.Logger) error {
	store, err := storage.Open(storage.Config{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.Path,
		DSN:    cfg.Storage.DSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()
	logger.Info("Storage ready", zap.String("driver", store.Driver()))

	if cfg.Seed.Menu != "" {
		src, err := seed.NewSource(ctx, cfg.Seed.Menu, seed.S3Config{
			Region:   cfg.Seed.S3Region,
			Endpoint: cfg.Seed.S3Endpoint,
		})
		if err != nil {
			return fmt.Errorf("failed to create menu source: %w", err)
		}
		if _, err := seed.Apply(ctx, src, store, logger); err != nil {
			return fmt.Errorf("failed to seed menu from %s: %w", cfg.Seed.Menu, err)
		}
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, config.ServiceName, tel.TracerProvider)
		if err != nil {
			return fmt.Errorf("failed to create kafka publisher: %w", err)
		}
		publisher = kp
		logger.Info("Publishing order events",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("Failed to close publisher", zap.Error(err))
		}
	}()

	metrics := observability.NewMetrics()
	manager := inventory.NewManager(store, publisher, tel.Tracer("mcp-dish-order/inventory"), metrics, logger)

	srv, err := server.NewDishOrderServer(&server.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, server.Deps{
		Catalog:   store,
		Inventory: manager,
		Metrics:   metrics,
		Tracer:    tel.Tracer("mcp-dish-order/server"),
		Logger:    logger,
		Ping:      store.Ping,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	var serveErr error
	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case serveErr = <-errCh:
		logger.Error("Server error", zap.Error(serveErr))
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("Error during shutdown", zap.Error(err))
	}
	return serveErr
}

func flushTelemetry(tel *observability.Telemetry, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		logger.Warn("Failed to flush telemetry", zap.Error(err))
	}
}
