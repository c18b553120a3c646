package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zeno-search/zeno/internal/output"
	"github.com/zeno-search/zeno/internal/store"
)

func newDocsCmd() *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List indexed documents, newest first",
		Long: `List documents from the registry. Only the registry database is read,
so this works while 'zeno serve' holds the index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			registry, err := store.OpenRegistry(cfg.Registry.Path)
			if err != nil {
				return err
			}
			defer func() { _ = registry.Close() }()

			recs, err := registry.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				if recs == nil {
					recs = []store.Record{}
				}
				return out.JSON(recs)
			}
			out.Records(recs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of documents (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
