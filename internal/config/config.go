// Package config loads the application configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	// MaxParallel bounds concurrent folder syncs per account.
	MaxParallel int `mapstructure:"max_parallel" yaml:"max_parallel"`

	// WindowSize caps items per sync window.
	WindowSize int `mapstructure:"window_size" yaml:"window_size"`

	// RetryAttempts bounds transport retries per request.
	RetryAttempts int `mapstructure:"retry_attempts" yaml:"retry_attempts"`

	// RequestsPerSecond rate-limits outgoing requests.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	// BodyTruncationKB caps body bytes fetched during item sync.
	BodyTruncationKB int `mapstructure:"body_truncation_kb" yaml:"body_truncation_kb"`
}

// Config is the top-level application configuration.
type Config struct {
	// ListenAddr is the control API listen address.
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`

	// DataDir holds accounts.yml, the mirror database and the blob cache.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	Sync SyncConfig `mapstructure:"sync" yaml:"sync"`
}

// DefaultConfigPath returns ~/.config/iwomail/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "iwomail", "config.yaml")
}

func defaults() *Config {
	return &Config{
		ListenAddr: "127.0.0.1:8095",
		DataDir:    "./data",
		Sync: SyncConfig{
			MaxParallel:       4,
			WindowSize:        100,
			RetryAttempts:     3,
			RequestsPerSecond: 10,
			BodyTruncationKB:  32,
		},
	}
}

// Load reads the configuration from path. A missing file yields defaults.
// IWOMAIL_-prefixed environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("IWOMAIL")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", "127.0.0.1:8095")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("sync.max_parallel", 4)
	v.SetDefault("sync.window_size", 100)
	v.SetDefault("sync.retry_attempts", 3)
	v.SetDefault("sync.requests_per_second", 10)
	v.SetDefault("sync.body_truncation_kb", 32)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
