package cmd

import (
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zeno-search/zeno/internal/daemon"
	"github.com/zeno-search/zeno/internal/output"
)

const (
	stopPollInterval = 100 * time.Millisecond
	stopPollAttempts = 50
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running 'zeno serve'",
		Long: `Stop the running server.

Sends SIGTERM so queued index writes drain, and SIGKILL if the process
has not exited after five seconds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runStop(cmd, daemon.NewPIDFile(daemon.FromConfig(cfg.Daemon, 0).PIDPath))
		},
	}
}

func runStop(cmd *cobra.Command, pidFile *daemon.PIDFile) error {
	out := output.New(cmd.OutOrStdout())

	if !pidFile.IsRunning() {
		out.Status("", "zeno is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop zeno: %w", err)
	}

	for range stopPollAttempts {
		time.Sleep(stopPollInterval)
		if !pidFile.IsRunning() {
			out.Successf("zeno stopped (was pid: %d)", pid)
			return nil
		}
	}

	out.Status("", "zeno not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill zeno: %w", err)
	}

	out.Success("zeno killed")
	return nil
}
