package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/zeno-search/zeno/internal/config"
	"github.com/zeno-search/zeno/internal/daemon"
	"github.com/zeno-search/zeno/internal/index"
	"github.com/zeno-search/zeno/internal/ingest"
	"github.com/zeno-search/zeno/internal/logging"
	"github.com/zeno-search/zeno/internal/scraper"
	"github.com/zeno-search/zeno/internal/store"
	"github.com/zeno-search/zeno/internal/telemetry"
)

// drainTimeout bounds how long shutdown waits for queued index writes.
const drainTimeout = 10 * time.Second

// loadConfig loads configuration for the working directory.
func loadConfig() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return config.Load(wd)
}

// setupLogging logs to the configured file, and to stderr as well when
// stderr is set. The logger becomes the default.
func setupLogging(cfg *config.Config, stderr bool) (*slog.Logger, func(), error) {
	lc := logging.FromConfig(cfg.Logging, debugMode)
	lc.WriteToStderr = stderr

	logger, cleanup, err := logging.Setup(lc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

// backend is an opened index with its coordinator, registry and ingest
// service.
type backend struct {
	engine   *store.Engine
	registry *store.Registry
	handle   *index.Handle
	svc      *ingest.Service
	logger   *slog.Logger
}

// openBackend takes ownership of the index directory. It fails fast with
// ERR_203_INDEX_LOCKED while another process holds it.
func openBackend(cfg *config.Config, logger *slog.Logger) (*backend, error) {
	engine, err := store.OpenEngine(cfg.Index.Dir, store.EngineOptions{
		CacheSize: cfg.Index.CacheSize,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	registry, err := store.OpenRegistry(cfg.Registry.Path)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}

	handle := index.Start(engine, index.Options{Logger: logger})

	sopts := scraper.OptionsFromConfig(cfg.Scraper)
	sopts.Logger = logger

	svc := ingest.NewService(scraper.New(sopts), handle, registry, logger).
		WithMetrics(telemetry.NewQueryMetrics(telemetry.DefaultConfig()))

	return &backend{
		engine:   engine,
		registry: registry,
		handle:   handle,
		svc:      svc,
		logger:   logger,
	}, nil
}

// Close stops the coordinator after it drains, then closes the stores.
func (b *backend) Close() error {
	b.handle.Close()

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := b.handle.Wait(ctx); err != nil {
		b.logger.Warn("coordinator did not drain in time", slog.String("error", err.Error()))
	}

	return errors.Join(b.engine.Close(), b.registry.Close())
}

// daemonClient returns a client for the configured socket.
func daemonClient(cfg *config.Config) *daemon.Client {
	return daemon.NewClient(daemon.FromConfig(cfg.Daemon, cfg.Server.RequestTimeout))
}
