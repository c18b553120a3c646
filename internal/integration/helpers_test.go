// Package integration tests the ingest path end to end: real fetching,
// the bleve index behind its coordinator, the SQLite registry and the
// surfaces on top.
package integration

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zeno-search/zeno/internal/index"
	"github.com/zeno-search/zeno/internal/ingest"
	"github.com/zeno-search/zeno/internal/scraper"
	"github.com/zeno-search/zeno/internal/store"
	"github.com/zeno-search/zeno/internal/telemetry"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newService opens a real engine and registry under a temp dir.
func newService(t *testing.T) *ingest.Service {
	t.Helper()
	dir := t.TempDir()

	engine, err := store.OpenEngine(filepath.Join(dir, "index"), store.EngineOptions{CacheSize: 16, Logger: quietLogger()})
	require.NoError(t, err)
	registry, err := store.OpenRegistry(filepath.Join(dir, "registry.db"))
	require.NoError(t, err)
	handle := index.Start(engine, index.Options{Logger: quietLogger()})

	t.Cleanup(func() {
		handle.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = handle.Wait(ctx)
		_ = engine.Close()
		_ = registry.Close()
	})

	fetcher := scraper.New(scraper.Options{
		UserAgent:     "zeno-test",
		Timeout:       5 * time.Second,
		RatePerSecond: 1000,
		Logger:        quietLogger(),
	})
	return ingest.NewService(fetcher, handle, registry, quietLogger()).
		WithMetrics(telemetry.NewQueryMetrics(telemetry.Config{}))
}
