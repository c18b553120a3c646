// Package daemon is zeno's local control socket. A running `zeno serve`
// answers JSON-RPC 2.0 requests on a unix socket so CLI commands can search
// and index through the live coordinator instead of opening the index
// themselves.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeno-search/zeno/internal/config"
)

// Config holds the daemon socket settings.
type Config struct {
	// SocketPath is the unix socket for IPC. Default: ~/.zeno/zeno.sock
	SocketPath string

	// PIDPath stores the serving process's id. Default: ~/.zeno/zeno.pid
	PIDPath string

	// Timeout bounds one client round trip. Default: 30s
	Timeout time.Duration
}

// DefaultConfig returns a Config under config.DataDir().
func DefaultConfig() Config {
	dir := config.DataDir()
	return Config{
		SocketPath: filepath.Join(dir, "zeno.sock"),
		PIDPath:    filepath.Join(dir, "zeno.pid"),
		Timeout:    30 * time.Second,
	}
}

// FromConfig builds a Config from the daemon section. timeout is usually
// the server's request timeout.
func FromConfig(c config.DaemonConfig, timeout time.Duration) Config {
	cfg := DefaultConfig()
	if c.SocketPath != "" {
		cfg.SocketPath = c.SocketPath
	}
	if c.PIDPath != "" {
		cfg.PIDPath = c.PIDPath
	}
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return cfg
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// EnsureDir creates the directories holding the socket and PID files.
func (c Config) EnsureDir() error {
	for _, dir := range []string{filepath.Dir(c.SocketPath), filepath.Dir(c.PIDPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
