package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Topology config
	assert.Equal(t, 0, cfg.Topology.Rank)
	assert.Equal(t, 1, cfg.Topology.TotalRanks)

	// Slicing config
	assert.Equal(t, 8, cfg.Slicing.MaxBatchFrames)

	// Storage config
	assert.Equal(t, "./out", cfg.Storage.OutDir)
	assert.Equal(t, 3, cfg.Storage.CompressionLevel)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)
}

func TestLoadOrDefault(t *testing.T) {
	// Should return default when no env vars set
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Topology.TotalRanks)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"WORKER_RANK":       "2",
		"WORKER_TOTAL":      "4",
		"MAX_BATCH_FRAMES":  "16",
		"OUT_DIR":           "/tmp/blocks",
		"COMPRESSION_LEVEL": "9",
		"LOG_LEVEL":         "debug",
		"LOG_DEV":           "true",
	}

	for key, value := range envVars {
		err := os.Setenv(key, value)
		require.NoError(t, err)
		defer os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Topology.Rank)
	assert.Equal(t, 4, cfg.Topology.TotalRanks)
	assert.Equal(t, 16, cfg.Slicing.MaxBatchFrames)
	assert.Equal(t, "/tmp/blocks", cfg.Storage.OutDir)
	assert.Equal(t, 9, cfg.Storage.CompressionLevel)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	err := os.Setenv("MAX_BATCH_FRAMES", "32")
	require.NoError(t, err)
	defer os.Unsetenv("MAX_BATCH_FRAMES")

	err = os.Setenv("LOG_LEVEL", "warn")
	require.NoError(t, err)
	defer os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	require.NoError(t, err)

	// Verify overridden values
	assert.Equal(t, 32, cfg.Slicing.MaxBatchFrames)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Verify default values still apply
	assert.Equal(t, 0, cfg.Topology.Rank)
	assert.Equal(t, 1, cfg.Topology.TotalRanks)
	assert.Equal(t, "./out", cfg.Storage.OutDir)
}

func TestTopologyValidation(t *testing.T) {
	tests := []struct {
		name    string
		rank    string
		total   string
		wantErr bool
	}{
		{
			name:    "default values",
			rank:    "",
			total:   "",
			wantErr: false,
		},
		{
			name:    "valid pool",
			rank:    "3",
			total:   "4",
			wantErr: false,
		},
		{
			name:    "rank outside pool",
			rank:    "4",
			total:   "4",
			wantErr: true,
		},
		{
			name:    "negative rank",
			rank:    "-1",
			total:   "4",
			wantErr: true,
		},
		{
			name:    "empty pool",
			rank:    "0",
			total:   "0",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("WORKER_RANK")
			os.Unsetenv("WORKER_TOTAL")

			if tt.rank != "" {
				err := os.Setenv("WORKER_RANK", tt.rank)
				require.NoError(t, err)
				defer os.Unsetenv("WORKER_RANK")
			}
			if tt.total != "" {
				err := os.Setenv("WORKER_TOTAL", tt.total)
				require.NoError(t, err)
				defer os.Unsetenv("WORKER_TOTAL")
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, cfg)
			}
		})
	}
}

func TestSlicingValidation(t *testing.T) {
	err := os.Setenv("MAX_BATCH_FRAMES", "0")
	require.NoError(t, err)
	defer os.Unsetenv("MAX_BATCH_FRAMES")

	_, err = Load()
	assert.Error(t, err)

	// LoadOrDefault falls back instead of failing
	cfg := LoadOrDefault()
	assert.Equal(t, 8, cfg.Slicing.MaxBatchFrames)
}
