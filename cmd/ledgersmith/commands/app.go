package commands

import (
	"context"
	"fmt"

	"github.com/ledgersmith/ledgersmith/pkg/config"
	"github.com/ledgersmith/ledgersmith/pkg/engine"
	"github.com/ledgersmith/ledgersmith/pkg/records"
	"github.com/ledgersmith/ledgersmith/pkg/stores"
	"github.com/ledgersmith/ledgersmith/pkg/telemetry"
	"github.com/ledgersmith/ledgersmith/pkg/workflow"
	"github.com/rs/zerolog"
)

// app holds the wired-up collaborators shared by all commands.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	store    *stores.SQLiteStore
	policies *workflow.Engine
	client   *records.Client
	executor *engine.BatchExecutor
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	watcher  *config.Watcher
}

// newApp loads configuration and constructs the full dependency graph.
// Every collaborator is injected explicitly; nothing reaches for a
// package-level singleton.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.Logging.Level = cfg.Telemetry.LogLevel
	telemetryCfg.Logging.Format = cfg.Telemetry.LogFormat
	telemetryCfg.Metrics.Enabled = cfg.Telemetry.MetricsEnabled
	telemetryCfg.Metrics.ListenAddress = cfg.Telemetry.MetricsAddr
	telemetryCfg.Tracing.Enabled = cfg.Telemetry.TracingEnabled
	telemetryCfg.Tracing.Exporter = cfg.Telemetry.TracingExporter
	telemetryCfg.Tracing.Endpoint = cfg.Telemetry.TracingEndpoint
	if verbose {
		telemetryCfg.Logging.Level = "debug"
	}
	if err := telemetryCfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := telemetry.NewLogger(telemetryCfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	// Let operators tune the log level mid-run by editing the config file.
	watcher := config.NewWatcher(configPath, logger)
	if err := watcher.Watch(ctx, func(next *config.Config) error {
		level, err := zerolog.ParseLevel(next.Telemetry.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		zerolog.SetGlobalLevel(level)
		return nil
	}); err != nil {
		logger.Warn().Err(err).Msg("Config watching disabled")
	}

	metrics, err := telemetry.NewMetrics(telemetryCfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	if err := metrics.StartMetricsServer(logger); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	tracer, err := telemetry.NewTracer(telemetryCfg.Tracing, telemetryCfg.ServiceName, telemetryCfg.ServiceVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Database.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	policies := workflow.NewEngine(logger, workflow.WithStore(store))
	if err := policies.Hydrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	client, err := records.NewClient(records.ClientConfig{
		BaseURL:  cfg.Instance.URL,
		Username: cfg.Instance.Username,
		Password: cfg.Instance.Password,
		Timeout:  cfg.Instance.Timeout,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	executor, err := engine.NewBatchExecutor(client, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		policies: policies,
		client:   client,
		executor: executor,
		metrics:  metrics,
		tracer:   tracer,
		watcher:  watcher,
	}, nil
}

// close releases the app's resources.
func (a *app) close(ctx context.Context) {
	if err := a.watcher.Stop(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to stop config watcher")
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to shut down tracer")
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close store")
	}
}
