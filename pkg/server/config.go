package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"warden/pkg/logging"
)

// Config holds server configuration.
type Config struct {
	ListenAddr  string `yaml:"listen_addr"`  // TCP bind address for sessions (e.g. ":9700")
	MetricsAddr string `yaml:"metrics_addr"` // HTTP bind address for /metrics (empty = disabled)
	DBPath      string `yaml:"db_path"`      // SQLite database path

	PolicyFile    string `yaml:"policy_file"`    // YAML policy: reason presets, staff roles
	DirectoryFile string `yaml:"directory_file"` // YAML roster of known name -> subject id

	TickInterval         time.Duration `yaml:"tick_interval"`          // main loop tick
	DisconnectGraceTicks int           `yaml:"disconnect_grace_ticks"` // ticks between verdict and cut

	Log LogConfig `yaml:"log"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DefaultDisconnectGraceTicks delays the cut long enough for the
// explanation to reach the session first.
const DefaultDisconnectGraceTicks = 5

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:           ":9700",
		MetricsAddr:          ":9702",
		DBPath:               "warden.db",
		DisconnectGraceTicks: DefaultDisconnectGraceTicks,
		Log:                  LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads a YAML config file over the defaults. A missing path
// returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI flag
	if err != nil {
		return cfg, fmt.Errorf("server: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("server: parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the config for values the server cannot run with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("server: listen_addr must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("server: db_path must not be empty")
	}
	if c.DisconnectGraceTicks < 0 {
		return fmt.Errorf("server: disconnect_grace_ticks must not be negative")
	}
	if err := logging.Validate(c.Log.Level); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
