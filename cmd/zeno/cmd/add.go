package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zeno-search/zeno/internal/daemon"
	"github.com/zeno-search/zeno/internal/ingest"
	"github.com/zeno-search/zeno/internal/output"
)

type addOptions struct {
	title       string
	description string
	local       bool
	jsonOutput  bool
}

func newAddCmd() *cobra.Command {
	var opts addOptions

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Fetch a web page or PDF and index it",
		Long: `Fetch a URL, extract its text and add it to the index.

When 'zeno serve' is running the request goes through its daemon socket.
Otherwise the index is opened directly.`,
		Example: `  zeno add https://go.dev/blog/slog
  zeno add https://arxiv.org/pdf/1706.03762 --title "Attention Is All You Need"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.title, "title", "", "Override the extracted title")
	cmd.Flags().StringVar(&opts.description, "description", "", "Override the extracted description")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Open the index directly instead of using the daemon")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAdd(cmd *cobra.Command, url string, opts addOptions) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	req := ingest.IndexURLRequest{URL: url, Title: opts.title, Description: opts.description}

	var res *daemon.IndexResult
	client := daemonClient(cfg)
	if !opts.local && client.IsRunning(ctx) {
		res, err = client.Index(ctx, req)
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

		d, err := b.svc.IndexURL(ctx, req)
		if err != nil {
			return err
		}
		res = &daemon.IndexResult{ID: d.ID, URL: d.URL, Title: d.Title.String()}
	}

	out := output.New(cmd.OutOrStdout())
	if opts.jsonOutput {
		return out.JSON(res)
	}
	out.Successf("Indexed %s", res.Title)
	out.KeyValue("id", res.ID)
	out.KeyValue("url", res.URL)
	return nil
}
