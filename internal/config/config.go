// Package config loads application configuration from the user config
// file, with environment variable overrides for deployment settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	// Mode selects the storage backend, "local" or "cloud".
	Mode string `yaml:"mode" mapstructure:"mode"`

	// DataDir holds the local state file, the cached session and the
	// device identifier. Defaults to ~/.todo-overlay.
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	Cloud CloudConfig `yaml:"cloud" mapstructure:"cloud"`
	Net   NetConfig   `yaml:"net" mapstructure:"net"`
	Log   LogConfig   `yaml:"log" mapstructure:"log"`
}

// CloudConfig points at the remote backend.
type CloudConfig struct {
	// DSN is the Postgres connection string.
	DSN string `yaml:"dsn" mapstructure:"dsn"`

	// AuthURL is the base URL of the auth service.
	AuthURL string `yaml:"auth_url" mapstructure:"auth_url"`

	// APIKey is sent with every auth request.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// NetConfig tunes the connectivity probe.
type NetConfig struct {
	// ProbeAddress is the host:port dialed to decide online/offline.
	// Empty disables probing; the app then always reports online.
	ProbeAddress string `yaml:"probe_address" mapstructure:"probe_address"`

	// ProbeInterval is how often connectivity is rechecked.
	ProbeInterval time.Duration `yaml:"probe_interval" mapstructure:"probe_interval"`

	// ProbeTimeout bounds each connectivity check.
	ProbeTimeout time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
}

// LogConfig controls the rotating log file used by long-running commands.
type LogConfig struct {
	// File is the log path. Empty logs to stderr.
	File string `yaml:"file" mapstructure:"file"`

	// MaxSizeMB is the rotation threshold per file.
	MaxSizeMB int `yaml:"max_size_mb" mapstructure:"max_size_mb"`

	// MaxBackups is how many rotated files are kept.
	MaxBackups int `yaml:"max_backups" mapstructure:"max_backups"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dataDir := ".todo-overlay"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".todo-overlay")
	}
	return &Config{
		Mode:    "local",
		DataDir: dataDir,
		Net: NetConfig{
			ProbeInterval: 15 * time.Second,
			ProbeTimeout:  3 * time.Second,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Path returns the user config file location.
func Path() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".todo-overlay", "config.yaml")
	}
	return filepath.Join(".todo-overlay", "config.yaml")
}

// Load reads the config file if present and applies TODO_* environment
// overrides (TODO_MODE, TODO_CLOUD_DSN, ...). A missing file is not an
// error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = Path()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TODO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults double as key registrations so AutomaticEnv sees them.
	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("cloud.dsn", cfg.Cloud.DSN)
	v.SetDefault("cloud.auth_url", cfg.Cloud.AuthURL)
	v.SetDefault("cloud.api_key", cfg.Cloud.APIKey)
	v.SetDefault("net.probe_address", cfg.Net.ProbeAddress)
	v.SetDefault("net.probe_interval", cfg.Net.ProbeInterval)
	v.SetDefault("net.probe_timeout", cfg.Net.ProbeTimeout)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.max_size_mb", cfg.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", cfg.Log.MaxBackups)

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Mode != "local" && cfg.Mode != "cloud" {
		return nil, fmt.Errorf("config: mode must be \"local\" or \"cloud\", got %q", cfg.Mode)
	}
	return cfg, nil
}
