package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zeno-search/zeno/internal/daemon"
	zerrors "github.com/zeno-search/zeno/internal/errors"
	"github.com/zeno-search/zeno/internal/gateway"
	"github.com/zeno-search/zeno/internal/ingest"
	"github.com/zeno-search/zeno/internal/output"
	"github.com/zeno-search/zeno/internal/preflight"
	"github.com/zeno-search/zeno/internal/profiling"
	"github.com/zeno-search/zeno/internal/scraper"
	"github.com/zeno-search/zeno/internal/watcher"
)

type serveOptions struct {
	addr    string
	inbox   bool
	profile profiling.Options
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the local daemon socket and the inbox watcher",
		Long: `Start zeno's server. It owns the index until it exits and serves:

  - the HTTP API (POST /scrape, POST /search, GET /documents, ...)
  - the daemon socket used by 'zeno add' and 'zeno search'
  - the inbox watcher, when enabled

Stop it with Ctrl-C or 'zeno stop'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "HTTP listen address (default from server.addr)")
	cmd.Flags().BoolVar(&opts.inbox, "inbox", false, "Watch the inbox directory for HTML and PDF files")
	cmd.Flags().StringVar(&opts.profile.CPU, "cpuprofile", "", "Write a CPU profile to this file")
	cmd.Flags().StringVar(&opts.profile.Heap, "memprofile", "", "Write a heap profile to this file on exit")
	cmd.Flags().StringVar(&opts.profile.Trace, "trace", "", "Write an execution trace to this file")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts serveOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.inbox {
		cfg.Inbox.Enabled = true
	}

	logger, cleanup, err := setupLogging(cfg, true)
	if err != nil {
		return err
	}
	defer cleanup()

	if opts.profile.Enabled() {
		stopProfiling, err := profiling.Start(opts.profile)
		if err != nil {
			return err
		}
		defer func() {
			if err := stopProfiling(); err != nil {
				logger.Warn("profile_write_failed", slog.String("error", err.Error()))
			}
		}()
	}

	for _, r := range preflight.New(cfg).RunAll(ctx) {
		if r.IsCritical() {
			logger.Error("preflight_failed", slog.String("check", r.Name), slog.String("message", r.Message))
			return zerrors.New(zerrors.ErrCodeInternal, r.Name+": "+r.Message, nil).
				WithSuggestion("run 'zeno doctor' for details")
		}
		if r.Status != preflight.StatusPass {
			logger.Warn("preflight_warning", slog.String("check", r.Name), slog.String("message", r.Message))
		}
	}

	dcfg := daemon.FromConfig(cfg.Daemon, cfg.Server.RequestTimeout)
	if err := dcfg.EnsureDir(); err != nil {
		return err
	}
	pidFile := daemon.NewPIDFile(dcfg.PIDPath)
	if err := pidFile.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pidFile.Remove() }()

	// Without an engine there is nothing to serve.
	b, err := openBackend(cfg, logger)
	if err != nil {
		logger.Error("engine_init_failed", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("shutdown_failed", slog.String("error", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var inbox *watcher.Inbox
	if cfg.Inbox.Enabled {
		inbox, err = watcher.NewInbox(cfg.Inbox.Dir, watcher.Options{
			Debounce: cfg.Inbox.Debounce,
			Filter:   scraper.Supported,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
	}

	gopts := gateway.OptionsFromConfig(cfg.Server)
	gopts.Logger = logger
	httpServer := gateway.New(b.svc, gopts)
	daemonServer := daemon.NewServer(dcfg, b.svc, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpServer.Run(gctx, cfg.Server.Addr) })
	g.Go(func() error { return daemonServer.ListenAndServe(gctx) })
	g.Go(func() error {
		select {
		case <-b.handle.Done():
			return zerrors.InternalError("index coordinator stopped unexpectedly", nil)
		case <-gctx.Done():
			return nil
		}
	})
	if inbox != nil {
		g.Go(func() error { return inbox.Run(gctx, ingestInbox(b.svc, logger)) })
	}

	out := output.New(cmd.OutOrStdout())
	out.Successf("zeno listening on http://%s", cfg.Server.Addr)
	out.Status("", "daemon socket: "+dcfg.SocketPath)
	if inbox != nil {
		out.Status("", "watching inbox: "+inbox.Dir())
	}

	logger.Info("server_started",
		slog.String("addr", cfg.Server.Addr),
		slog.String("index", cfg.Index.Dir),
		slog.Bool("inbox", inbox != nil))

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("server_stopped")
	return err
}

// ingestInbox indexes created and modified inbox files. Removals leave the
// indexed document in place.
func ingestInbox(svc *ingest.Service, logger *slog.Logger) func(context.Context, []watcher.FileEvent) {
	return func(ctx context.Context, batch []watcher.FileEvent) {
		for _, ev := range batch {
			if ctx.Err() != nil {
				return
			}
			if ev.Operation == watcher.OpDelete {
				logger.Debug("inbox_file_removed", slog.String("path", ev.Path))
				continue
			}

			d, err := svc.IndexFile(ctx, ev.Path)
			if err != nil {
				logger.Warn("inbox_ingest_failed",
					slog.String("path", ev.Path),
					slog.String("op", ev.Operation.String()),
					slog.String("error", err.Error()))
				continue
			}
			logger.Info("inbox_file_indexed",
				slog.String("id", d.ID.String()),
				slog.String("path", ev.Path))
		}
	}
}
