package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zeno-search/zeno/internal/daemon"
	"github.com/zeno-search/zeno/internal/output"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether 'zeno serve' is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())

			client := daemonClient(cfg)
			if !client.IsRunning(ctx) {
				if jsonOutput {
					return out.JSON(daemon.StatusResult{Running: false})
				}
				out.Status("", "zeno is not running")
				pidFile := daemon.NewPIDFile(daemon.FromConfig(cfg.Daemon, 0).PIDPath)
				if pid, err := pidFile.Read(); err == nil && !pidFile.IsRunning() {
					out.Warningf("Stale PID file for pid %d at %s", pid, pidFile.Path())
				}
				out.Status("", "Run 'zeno serve' to start it")
				return nil
			}

			status, err := client.Status(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return out.JSON(status)
			}

			out.Success("zeno is running")
			out.KeyValue("pid", status.PID)
			out.KeyValue("uptime", status.Uptime)
			out.KeyValue("version", status.Version)
			out.KeyValue("documents", status.Documents)
			out.KeyValue("registered", status.Registered)
			out.KeyValue("http", cfg.Server.Addr)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
