package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/zeno-search/zeno/internal/daemon"
	"github.com/zeno-search/zeno/internal/output"
	"github.com/zeno-search/zeno/internal/store"
)

type searchOptions struct {
	limit      uint
	limitSet   bool
	local      bool
	jsonOutput bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed documents",
		Long: `Search the full-text index. The query uses bleve's query string syntax:

  transformer attention       either term
  +transformer +attention     both terms
  "neural network"            exact phrase
  title:golang                a single field`,
		Example: `  zeno search backpropagation
  zeno search '+rust -async' --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.limitSet = cmd.Flags().Changed("limit")
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().UintVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Open the index directly instead of using the daemon")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	limit := opts.limit
	if !opts.limitSet {
		limit = cfg.Server.DefaultLimit
	}

	var hits []store.Hit
	client := daemonClient(cfg)
	if !opts.local && client.IsRunning(ctx) {
		hits, err = client.Search(ctx, daemon.SearchParams{Query: query, Limit: limit})
		if err != nil {
			return err
		}
	} else {
		logger, cleanup, err := setupLogging(cfg, false)
		if err != nil {
			return err
		}
		defer cleanup()

		b, err := openBackend(cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = b.Close() }()

		hits, err = b.svc.Search(ctx, query, limit)
		if err != nil {
			return err
		}
	}

	out := output.New(cmd.OutOrStdout())
	if opts.jsonOutput {
		if hits == nil {
			hits = []store.Hit{}
		}
		return out.JSON(hits)
	}
	out.Hits(query, hits)
	return nil
}
