package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zeno-search/zeno/internal/doc"
	"github.com/zeno-search/zeno/internal/output"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a document from the index",
		Long: `Remove a document from the index and the registry.

The index is opened directly, so stop 'zeno serve' first or use
DELETE /documents/<id> on its HTTP API.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := doc.ParseID(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
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

			if err := b.svc.Delete(cmd.Context(), id); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Deleted %s", id)
			return nil
		},
	}
}
