package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Port int `toml:"port"`
}

type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

type RetentionConfig struct {
	Days         int `toml:"days"`          // Archived threads older than this are purged
	SweepMinutes int `toml:"sweep_minutes"` // How often the sweeper runs
}

type CacheConfig struct {
	ThreadListTTLSeconds int `toml:"thread_list_ttl_seconds"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Retention RetentionConfig `toml:"retention"`
	Cache     CacheConfig     `toml:"cache"`
	Log       LogConfig       `toml:"log"`
}

func LoadConfig(filepath string) (*Config, error) {
	var config Config

	// Set default values
	config.Server.Port = 3000
	config.Storage.DataDir = "./data"
	config.Retention.Days = 90
	config.Retention.SweepMinutes = 60
	config.Cache.ThreadListTTLSeconds = 30
	config.Log.Level = "info"

	// Load config file when present; defaults alone are a valid setup
	if _, err := os.Stat(filepath); err == nil {
		if _, err := toml.DecodeFile(filepath, &config); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the loaded configuration for nonsense values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage data_dir is required")
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("retention days must not be negative")
	}
	if c.Retention.SweepMinutes <= 0 {
		return fmt.Errorf("retention sweep_minutes must be positive")
	}
	if c.Cache.ThreadListTTLSeconds < 0 {
		return fmt.Errorf("cache thread_list_ttl_seconds must not be negative")
	}
	return nil
}

// RetentionCutoff returns the last-activity cutoff for the purge sweeper.
func (c *Config) RetentionCutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -c.Retention.Days)
}

// SweepInterval returns how often the retention sweeper runs.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Retention.SweepMinutes) * time.Minute
}

// ThreadListTTL returns the cache lifetime for thread-list responses.
func (c *Config) ThreadListTTL() time.Duration {
	return time.Duration(c.Cache.ThreadListTTLSeconds) * time.Second
}
