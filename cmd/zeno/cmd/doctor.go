package cmd

import (
	"github.com/spf13/cobra"

	zerrors "github.com/zeno-search/zeno/internal/errors"
	"github.com/zeno-search/zeno/internal/output"
	"github.com/zeno-search/zeno/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var verbose bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that this machine can run 'zeno serve'",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			checker := preflight.New(cfg,
				preflight.WithOutput(cmd.OutOrStdout()),
				preflight.WithVerbose(verbose))
			results := checker.RunAll(cmd.Context())

			if jsonOutput {
				if err := output.New(cmd.OutOrStdout()).JSON(results); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return zerrors.New(zerrors.ErrCodeInternal, "system check failed", nil).
					WithSuggestion("fix the FAIL items above and run 'zeno doctor' again")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for passing checks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
