package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/samijaber1/session-relay/internal/adapter/fixture"
	"github.com/samijaber1/session-relay/internal/adapter/slave"
	"github.com/samijaber1/session-relay/internal/api"
	"github.com/samijaber1/session-relay/internal/config"
	"github.com/samijaber1/session-relay/internal/logging"
	"github.com/samijaber1/session-relay/internal/query"
	"github.com/samijaber1/session-relay/internal/session"
	"github.com/samijaber1/session-relay/internal/storage/sqlite"
	"github.com/samijaber1/session-relay/internal/transfer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env, environment and flags
	if err := config.LoadEnvFiles(".env"); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}

	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	parseFlags(&cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level %q: %v", cfg.LogLevel, err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	logger.Info("starting session relay",
		zap.Int("port", cfg.Port),
		zap.String("source", cfg.Source),
		zap.String("db_path", cfg.DBPath),
		zap.Duration("poll_interval", cfg.PollInterval))

	store, err := sqlite.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	validator, err := session.NewValidator()
	if err != nil {
		return fmt.Errorf("failed to initialize validator: %w", err)
	}

	// Create dataset source
	var source transfer.Source
	switch cfg.Source {
	case config.SourceSlave:
		slaveConfig := slave.DefaultConfig(cfg.SlaveURL)
		slaveConfig.HealthTimeout = cfg.HealthTimeout
		slaveConfig.DataTimeout = cfg.DataTimeout
		source = slave.NewAdapter(slaveConfig, validator, logger)
		logger.Info("using loading service", zap.String("url", cfg.SlaveURL))

	case config.SourceFixture:
		adapter := fixture.NewAdapter()
		if err := adapter.LoadFile(validator, cfg.FixtureFile); err != nil {
			return fmt.Errorf("failed to load fixture: %w", err)
		}
		source = adapter
		logger.Info("using fixture source", zap.String("file", cfg.FixtureFile))

	default:
		return fmt.Errorf("unknown source type: %s", cfg.Source)
	}

	workflow := transfer.NewWorkflow(source, store, cfg.PollInterval, logger)
	workflow.SetTransferStorage(store)

	svc := query.NewService(store, cfg.QueryLocation, cfg.QuerySession, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	apiServer := api.NewServer(workflow, svc, store, addr, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := workflow.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return apiServer.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", zap.Duration("timeout", cfg.GracefulShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
		defer cancel()

		return apiServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("shutdown complete", zap.String("status", workflow.Status().String()))
	return nil
}

// parseFlags overrides loaded configuration with explicitly given flags
func parseFlags(cfg *config.Config) {
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.Host, "host", cfg.Host, "HTTP server host")
	flag.StringVar(&cfg.Source, "source", cfg.Source, "Dataset source type (slave|fixture)")
	flag.StringVar(&cfg.SlaveURL, "slave-url", cfg.SlaveURL, "Loading service base URL (required for slave source)")
	flag.StringVar(&cfg.FixtureFile, "fixture", cfg.FixtureFile, "Dataset JSON file (required for fixture source)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Wait before each readiness check")
	flag.StringVar(&cfg.QueryLocation, "location", cfg.QueryLocation, "Location served by /data")
	flag.StringVar(&cfg.QuerySession, "session", cfg.QuerySession, "Session name served by /data")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")

	flag.Parse()
}
