package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	zerrors "github.com/zeno-search/zeno/internal/errors"
)

// ProjectConfigName is the per-directory configuration file.
const ProjectConfigName = ".zeno.yaml"

// Config is the complete zeno configuration.
type Config struct {
	Index    IndexConfig    `yaml:"index" json:"index"`
	Registry RegistryConfig `yaml:"registry" json:"registry"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Scraper  ScraperConfig  `yaml:"scraper" json:"scraper"`
	Inbox    InboxConfig    `yaml:"inbox" json:"inbox"`
	Daemon   DaemonConfig   `yaml:"daemon" json:"daemon"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// IndexConfig configures the full-text index.
type IndexConfig struct {
	// Dir is the index directory. It is owned exclusively by one process.
	Dir string `yaml:"dir" json:"dir"`
	// CacheSize is the number of cached search results. 0 disables it.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// RegistryConfig configures the document registry database.
type RegistryConfig struct {
	Path string `yaml:"path" json:"path"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
	// RequestTimeout bounds how long a request waits for the coordinator.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	DefaultLimit   uint          `yaml:"default_limit" json:"default_limit"`
	MaxLimit       uint          `yaml:"max_limit" json:"max_limit"`
}

// ScraperConfig configures page and PDF fetching.
type ScraperConfig struct {
	UserAgent     string        `yaml:"user_agent" json:"user_agent"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second" json:"rate_per_second"`
	MaxBodyBytes  int           `yaml:"max_body_bytes" json:"max_body_bytes"`
	PDFToText     string        `yaml:"pdftotext_path" json:"pdftotext_path"`
}

// InboxConfig configures the watched drop directory.
type InboxConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Dir      string        `yaml:"dir" json:"dir"`
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// DaemonConfig configures the local control socket.
type DaemonConfig struct {
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	PIDPath    string `yaml:"pid_path" json:"pid_path"`
}

// LoggingConfig configures the rotating log file.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// DataDir returns zeno's home directory (~/.zeno).
// Falls back to the temp directory if home is unavailable.
func DataDir() string {
	if v := os.Getenv("ZENO_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".zeno")
	}
	return filepath.Join(home, ".zeno")
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	data := DataDir()
	return &Config{
		Index: IndexConfig{
			Dir:       filepath.Join(data, "index"),
			CacheSize: 256,
		},
		Registry: RegistryConfig{
			Path: filepath.Join(data, "registry.db"),
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:3000",
			RequestTimeout: 30 * time.Second,
			DefaultLimit:   10,
			MaxLimit:       100,
		},
		Scraper: ScraperConfig{
			UserAgent:     "zeno/1.0 (+https://github.com/zeno-search/zeno)",
			Timeout:       20 * time.Second,
			RatePerSecond: 2,
			MaxBodyBytes:  20 * 1024 * 1024,
			PDFToText:     "pdftotext",
		},
		Inbox: InboxConfig{
			Enabled:  false,
			Dir:      filepath.Join(data, "inbox"),
			Debounce: 500 * time.Millisecond,
		},
		Daemon: DaemonConfig{
			SocketPath: filepath.Join(data, "zeno.sock"),
			PIDPath:    filepath.Join(data, "zeno.pid"),
		},
		Logging: LoggingConfig{
			Level:     "info",
			File:      filepath.Join(data, "logs", "server.log"),
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/zeno/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/zeno/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "zeno", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "zeno", "config.yaml")
	}
	return filepath.Join(home, ".config", "zeno", "config.yaml")
}

// Load loads configuration for the given directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/zeno/config.yaml)
//  3. Project config (.zeno.yaml in dir)
//  4. Environment variables (ZENO_*), with .env in dir filling in unset ones
//
// Relative paths in the result are resolved against dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadYAML(GetUserConfigPath()); err != nil {
		return nil, err
	}
	if err := cfg.loadYAML(filepath.Join(dir, ProjectConfigName)); err != nil {
		return nil, err
	}

	dotenv, err := readDotEnv(filepath.Join(dir, ".env"))
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnvOverrides(envLookup(dotenv)); err != nil {
		return nil, err
	}

	cfg.resolvePaths(dir)

	if err := cfg.Validate(); err != nil {
		return nil, zerrors.ConfigError("invalid configuration", err).
			WithSuggestion("check " + ProjectConfigName + " and ZENO_* environment variables")
	}
	return cfg, nil
}

// loadYAML overlays the file at path onto c. Keys absent from the file keep
// their current values. A missing file is not an error.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return zerrors.New(zerrors.ErrCodeConfigNotFound, "failed to read config file "+path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return zerrors.ConfigError("failed to parse config file "+path, err)
	}
	return nil
}

// readDotEnv parses a .env file without touching the process environment.
func readDotEnv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, zerrors.ConfigError("failed to parse "+path, err)
	}
	return values, nil
}

// envLookup prefers the real environment and falls back to .env values.
func envLookup(dotenv map[string]string) func(string) string {
	return func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}
}

// applyEnvOverrides applies ZENO_* variables.
func (c *Config) applyEnvOverrides(getenv func(string) string) error {
	strs := map[string]*string{
		"ZENO_INDEX_DIR":     &c.Index.Dir,
		"ZENO_REGISTRY_PATH": &c.Registry.Path,
		"ZENO_ADDR":          &c.Server.Addr,
		"ZENO_USER_AGENT":    &c.Scraper.UserAgent,
		"ZENO_PDFTOTEXT":     &c.Scraper.PDFToText,
		"ZENO_INBOX_DIR":     &c.Inbox.Dir,
		"ZENO_SOCKET_PATH":   &c.Daemon.SocketPath,
		"ZENO_LOG_LEVEL":     &c.Logging.Level,
		"ZENO_LOG_FILE":      &c.Logging.File,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"ZENO_REQUEST_TIMEOUT": &c.Server.RequestTimeout,
		"ZENO_FETCH_TIMEOUT":   &c.Scraper.Timeout,
		"ZENO_INBOX_DEBOUNCE":  &c.Inbox.Debounce,
	}
	for key, dst := range durations {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return zerrors.ConfigError(fmt.Sprintf("%s: invalid duration %q", key, v), err)
			}
			*dst = d
		}
	}

	if v := getenv("ZENO_DEFAULT_LIMIT"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return zerrors.ConfigError(fmt.Sprintf("ZENO_DEFAULT_LIMIT: invalid number %q", v), err)
		}
		c.Server.DefaultLimit = uint(n)
	}
	if v := getenv("ZENO_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return zerrors.ConfigError(fmt.Sprintf("ZENO_CACHE_SIZE: invalid number %q", v), err)
		}
		c.Index.CacheSize = n
	}
	if v := getenv("ZENO_RATE_PER_SECOND"); v != "" {
		r, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return zerrors.ConfigError(fmt.Sprintf("ZENO_RATE_PER_SECOND: invalid number %q", v), err)
		}
		c.Scraper.RatePerSecond = r
	}
	if v := getenv("ZENO_INBOX_ENABLED"); v != "" {
		c.Inbox.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	return nil
}

func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{
		&c.Index.Dir,
		&c.Registry.Path,
		&c.Inbox.Dir,
		&c.Daemon.SocketPath,
		&c.Daemon.PIDPath,
		&c.Logging.File,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Index.Dir == "" {
		return fmt.Errorf("index.dir must be set")
	}
	if c.Index.CacheSize < 0 {
		return fmt.Errorf("index.cache_size must be non-negative, got %d", c.Index.CacheSize)
	}
	if c.Registry.Path == "" {
		return fmt.Errorf("registry.path must be set")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %s", c.Server.RequestTimeout)
	}
	if c.Server.DefaultLimit == 0 {
		return fmt.Errorf("server.default_limit must be positive")
	}
	if c.Server.MaxLimit < c.Server.DefaultLimit {
		return fmt.Errorf("server.max_limit (%d) must be at least server.default_limit (%d)", c.Server.MaxLimit, c.Server.DefaultLimit)
	}
	if c.Scraper.Timeout <= 0 {
		return fmt.Errorf("scraper.timeout must be positive, got %s", c.Scraper.Timeout)
	}
	if c.Scraper.RatePerSecond <= 0 {
		return fmt.Errorf("scraper.rate_per_second must be positive, got %g", c.Scraper.RatePerSecond)
	}
	if c.Scraper.MaxBodyBytes <= 0 {
		return fmt.Errorf("scraper.max_body_bytes must be positive, got %d", c.Scraper.MaxBodyBytes)
	}
	if c.Inbox.Enabled && c.Inbox.Dir == "" {
		return fmt.Errorf("inbox.dir must be set when the inbox is enabled")
	}
	if c.Inbox.Debounce < 0 {
		return fmt.Errorf("inbox.debounce must be non-negative, got %s", c.Inbox.Debounce)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
