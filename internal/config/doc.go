// Package config provides 12-factor configuration management for the
// pipeline worker.
//
// Configuration is loaded from environment variables with sensible defaults.
// Worker pools run the same binary on every rank, so env vars are the natural
// channel for per-rank identity and shared settings alike.
//
// Configuration Sections:
//   - Topology: worker rank and pool size of this process
//   - Slicing: batch-size tunables for the slicing engine
//   - Storage: block-store output directory and compression
//   - Logging: log level and output format
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("rank %d of %d\n", cfg.Topology.Rank, cfg.Topology.TotalRanks)
//
// Environment Variables:
//   - WORKER_RANK, WORKER_TOTAL
//   - MAX_BATCH_FRAMES
//   - OUT_DIR, COMPRESSION_LEVEL
//   - LOG_LEVEL, LOG_DEV
package config
