package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zeno-search/zeno/configs"
	"github.com/zeno-search/zeno/internal/config"
	"github.com/zeno-search/zeno/internal/output"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented .zeno.yaml in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			return runInit(cmd, wd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing .zeno.yaml")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := filepath.Join(dir, config.ProjectConfigName)

	if _, err := os.Stat(path); err == nil && !force {
		out.Warningf("%s already exists (use --force to overwrite)", config.ProjectConfigName)
		return nil
	}

	if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.ProjectConfigName, err)
	}

	out.Successf("Created %s", path)
	out.Status("", "Data directory: "+config.DataDir())
	out.Status("", "Next: zeno serve, then zeno add <url>")
	return nil
}
