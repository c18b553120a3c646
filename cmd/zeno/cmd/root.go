// Package cmd provides the CLI commands for zeno.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zeno-search/zeno/pkg/version"
)

// Debug logging flag
var debugMode bool

// NewRootCmd creates the root command for the zeno CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zeno",
		Short: "Full-text search for the web pages and PDFs you read",
		Long: `zeno fetches web pages and PDFs, extracts their text and keeps them in a
local full-text index.

Run 'zeno serve' to start the HTTP API, then add documents with
'zeno add <url>' and query them with 'zeno search <query>'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("zeno version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newDocsCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
