// Package main runs the products service as an Azure Functions custom handler
// or as a standalone HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mrops-br/products-func/internal/app/service"
	"github.com/mrops-br/products-func/internal/infrastructure/config"
	"github.com/mrops-br/products-func/internal/infrastructure/http"
	"github.com/mrops-br/products-func/internal/infrastructure/http/handler"
	"github.com/mrops-br/products-func/internal/infrastructure/repository"
	"github.com/mrops-br/products-func/internal/infrastructure/repository/aztable"
	"github.com/mrops-br/products-func/internal/infrastructure/repository/memory"
	"github.com/mrops-br/products-func/internal/infrastructure/repository/postgres"
	"github.com/mrops-br/products-func/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log.Printf("Configuration loaded: %v", cfg)

	telem, err := telemetry.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	// Ensure telemetry is flushed on exit
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		if err := telem.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}()

	tracer := telem.TracerProvider.Tracer(telemetry.InstrumentationName)
	meter := telem.MeterProvider.Meter(telemetry.InstrumentationName)
	logger := telem.Logger
	slog.SetDefault(logger)

	logger.Info("Starting products service", slog.String("backend", cfg.Storage.Backend))

	table, closeTable, err := newTable(ctx, &cfg.Storage, tracer, logger)
	if err != nil {
		return err
	}
	defer closeTable()

	repo := repository.NewProductRepository(table, tracer, logger)
	productService := service.NewProductService(repo, tracer, meter, logger)
	productHandler := handler.NewProductHandler(productService, logger)
	server := http.NewServer(&cfg.Server, cfg.Metrics, productHandler, logger, telem)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(server.Start)
	// gracefully shutdown HTTP server on context cancellation
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// newTable connects the configured storage backend. The returned func
// releases its resources.
func newTable(ctx context.Context, cfg *config.StorageConfig, tracer trace.Tracer, logger *slog.Logger) (repository.Table, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		return memory.NewTable(cfg.PageSize, tracer, logger), func() {}, nil

	case config.BackendAzTable:
		connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
		// page size is left to the table service
		table, err := aztable.NewTable(connectCtx, cfg.ConnectionString, cfg.TableName, 0, tracer, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open table %s: %w", cfg.TableName, err)
		}
		return table, func() {}, nil

	case config.BackendPostgres:
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.ConnectTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to the database: %w", err)
		}
		logger.Info("Successfully connected to the database")
		return postgres.NewTable(pool, cfg.PageSize, tracer, logger), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
