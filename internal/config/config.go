package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all pipeline configuration.
type Config struct {
	Topology TopologyConfig
	Slicing  SlicingConfig
	Storage  StorageConfig
	Logging  LogConfig
}

// TopologyConfig holds the worker-pool identity of this process.
type TopologyConfig struct {
	Rank       int `envconfig:"WORKER_RANK" default:"0"`
	TotalRanks int `envconfig:"WORKER_TOTAL" default:"1"`
}

// SlicingConfig holds slicing-engine tunables.
type SlicingConfig struct {
	MaxBatchFrames int `envconfig:"MAX_BATCH_FRAMES" default:"8"`
}

// StorageConfig holds block-store settings.
type StorageConfig struct {
	OutDir           string `envconfig:"OUT_DIR" default:"./out"`
	CompressionLevel int    `envconfig:"COMPRESSION_LEVEL" default:"3"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("TOMOFLOW", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Topology: TopologyConfig{Rank: 0, TotalRanks: 1},
		Slicing:  SlicingConfig{MaxBatchFrames: 8},
		Storage:  StorageConfig{OutDir: "./out", CompressionLevel: 3},
		Logging:  LogConfig{Level: "info", Development: false},
	}
}

func (c *Config) validate() error {
	if c.Topology.TotalRanks < 1 {
		return fmt.Errorf("worker total must be at least 1, got %d", c.Topology.TotalRanks)
	}
	if c.Topology.Rank < 0 || c.Topology.Rank >= c.Topology.TotalRanks {
		return fmt.Errorf("worker rank %d outside pool of %d", c.Topology.Rank, c.Topology.TotalRanks)
	}
	if c.Slicing.MaxBatchFrames < 1 {
		return fmt.Errorf("max batch frames must be at least 1, got %d", c.Slicing.MaxBatchFrames)
	}
	return nil
}
