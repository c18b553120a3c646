package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zeno-search/zeno/internal/logging"
	"github.com/zeno-search/zeno/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the index to AI assistants over MCP (stdio)",
		Long: `Run an MCP server on stdin/stdout with the search, index_url and
index_stats tools and the zeno://documents resource.

It opens the index directly and cannot run alongside 'zeno serve'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// stdout carries the protocol; logs go to the file only.
			cleanup, err := logging.SetupStdio(logging.FromConfig(cfg.Logging, debugMode))
			if err != nil {
				return err
			}
			defer cleanup()
			logger := slog.Default()

			b, err := openBackend(cfg, logger)
			if err != nil {
				logger.Error("engine_init_failed", slog.String("error", err.Error()))
				return err
			}
			defer func() { _ = b.Close() }()

			srv, err := mcp.NewServer(b.svc, mcp.Options{
				DefaultLimit: int(cfg.Server.DefaultLimit),
				MaxLimit:     int(cfg.Server.MaxLimit),
				Logger:       logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("mcp_server_started", slog.String("index", cfg.Index.Dir))
			return srv.Serve(ctx)
		},
	}
}
