package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zeno-search/zeno/internal/logging"
	"github.com/zeno-search/zeno/internal/output"
)

type logsOptions struct {
	lines   int
	follow  bool
	level   string
	grep    string
	noColor bool
	file    string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View zeno's log file",
		Example: `  zeno logs -n 100
  zeno logs -f --level warn
  zeno logs --grep scrape_failed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow new entries")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.grep, "grep", "", "Only show entries matching this regular expression")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.file, "file", "", "Log file (default from logging.file)")

	return cmd
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	path := opts.file
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Logging.File
	}

	vc := logging.ViewerConfig{
		Level:   opts.level,
		NoColor: opts.noColor || !output.UseColor(cmd.OutOrStdout()),
	}
	if opts.grep != "" {
		re, err := regexp.Compile(opts.grep)
		if err != nil {
			return fmt.Errorf("invalid --grep pattern: %w", err)
		}
		vc.Pattern = re
	}

	viewer := logging.NewViewer(vc, cmd.OutOrStdout())

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)

	if !opts.follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch := make(chan logging.Entry, 64)
	errc := make(chan error, 1)
	go func() {
		errc <- viewer.Follow(ctx, path, ch)
	}()

	for {
		select {
		case e := <-ch:
			viewer.Print([]logging.Entry{e})
		case err := <-errc:
			return err
		}
	}
}
