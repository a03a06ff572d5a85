package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/voxelforge/tomoflow/internal/config"
	"github.com/voxelforge/tomoflow/internal/logging"
	"github.com/voxelforge/tomoflow/internal/monitoring"
	"github.com/voxelforge/tomoflow/internal/pipeline"
	"github.com/voxelforge/tomoflow/internal/stages"
	"github.com/voxelforge/tomoflow/internal/storage"
	"github.com/voxelforge/tomoflow/internal/topology"
)

func main() {
	angles := flag.Int("angles", 180, "Number of projection angles in the synthetic scan")
	height := flag.Int("height", 64, "Detector rows")
	width := flag.Int("width", 64, "Detector columns")
	iterations := flag.Int("iterations", 4, "Smoothing iterations")
	runs := flag.Int("runs", 1, "Number of full pipeline runs")
	flag.Parse()

	cfg := config.LoadOrDefault()
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	logger = logging.ForRank(logger, cfg.Topology.Rank)

	store, err := storage.NewBlockStore(cfg.Storage.OutDir, cfg.Storage.CompressionLevel)
	if err != nil {
		logger.Fatal("Failed to open block store", zap.Error(err))
	}

	shape := []int{*angles, *height, *width}
	rank := len(shape)
	chain := []pipeline.Stage{
		&stages.Normalize{In: "scan", Out: "normalized", Rank: rank, MaxBatch: cfg.Slicing.MaxBatchFrames},
		&stages.Smooth{
			In:            "normalized",
			Out:           "volume",
			Rank:          rank,
			MaxBatch:      cfg.Slicing.MaxBatchFrames,
			NumIterations: *iterations,
			Alpha:         0.5,
		},
		&stages.BlockSaver{Dataset: "volume", Rank: rank, MaxBatch: cfg.Slicing.MaxBatchFrames},
	}
	loaders := []pipeline.Loader{
		&stages.ScanLoader{Dataset: "scan", Shape: shape},
	}

	driver, err := pipeline.NewDriver(pipeline.DriverConfig{
		Coordinator: topology.Static{
			WorkerRank: cfg.Topology.Rank,
			PoolSize:   cfg.Topology.TotalRanks,
		},
		Backend: storage.NewMemory(),
		Store:   store,
		Metrics: monitoring.NewMetrics(),
		Logger:  logger,
	}, loaders, chain)
	if err != nil {
		logger.Fatal("Failed to create driver", zap.Error(err))
	}

	for i := 0; i < *runs; i++ {
		if err := driver.Run(); err != nil {
			logger.Fatal("Pipeline run failed", zap.Error(err), zap.Int("run", i))
		}
	}
}
