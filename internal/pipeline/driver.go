package pipeline

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxelforge/tomoflow/internal/dataset"
	"github.com/voxelforge/tomoflow/internal/distribute"
	"github.com/voxelforge/tomoflow/internal/monitoring"
	"github.com/voxelforge/tomoflow/internal/slicing"
	"github.com/voxelforge/tomoflow/internal/storage"
	"github.com/voxelforge/tomoflow/internal/topology"
)

// DriverConfig wires the driver's collaborators.
type DriverConfig struct {
	Coordinator topology.Coordinator
	Backend     storage.Backend
	Store       *storage.BlockStore // optional, enables metadata + block output
	Metrics     *monitoring.Metrics // optional
	Logger      *zap.Logger

	// MetadataPath overrides where the coordinator rank commits the
	// pipeline metadata. Defaults to the block store directory.
	MetadataPath string
}

// Driver advances the plugin chain stage by stage on one worker rank: it
// runs the loaders, commits the pipeline metadata at the coordinator rank,
// computes each stage's slicing and this rank's share, delegates execution,
// and applies the registry's merge and finalize rules between stages.
type Driver struct {
	coord    topology.Coordinator
	backend  storage.Backend
	store    *storage.BlockStore
	metrics  *monitoring.Metrics
	log      *zap.Logger
	metaPath string

	loaders []Loader
	stages  []Stage
}

// NewDriver creates a driver for one chain of loaders and stages.
func NewDriver(cfg DriverConfig, loaders []Loader, stages []Stage) (*Driver, error) {
	if cfg.Coordinator == nil {
		return nil, fmt.Errorf("driver requires a coordinator")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("driver requires a storage backend")
	}
	if len(loaders) == 0 {
		return nil, fmt.Errorf("driver requires at least one loader")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	metaPath := cfg.MetadataPath
	if metaPath == "" && cfg.Store != nil {
		metaPath = filepath.Join(cfg.Store.Dir(), "pipeline_metadata.json")
	}
	return &Driver{
		coord:    cfg.Coordinator,
		backend:  cfg.Backend,
		store:    cfg.Store,
		metrics:  metrics,
		log:      log.With(zap.Int("rank", cfg.Coordinator.Rank())),
		metaPath: metaPath,
		loaders:  loaders,
		stages:   stages,
	}, nil
}

// Run executes the full chain once. The input-dataset set is restored to the
// post-loading checkpoint before returning, so a subsequent Run starts
// clean.
func (d *Driver) Run() error {
	ctx := &Context{
		RunID:    uuid.New(),
		Registry: dataset.NewRegistry(d.log),
		Backend:  d.backend,
		Store:    d.store,
		Coord:    d.coord,
		Log:      d.log,
		Metrics:  d.metrics,
	}
	d.log.Info("pipeline run starting",
		zap.String("run_id", ctx.RunID.String()),
		zap.Int("loaders", len(d.loaders)),
		zap.Int("stages", len(d.stages)))

	for _, l := range d.loaders {
		if err := l.Load(ctx); err != nil {
			return fmt.Errorf("loader %q failed: %w", l.Name(), err)
		}
	}
	ctx.Registry.Checkpoint()

	// The stage list is final once loading completes. The coordinator rank
	// commits it to durable storage between two barriers so no rank reads
	// metadata before it is fully written.
	d.barrier()
	if topology.IsWriter(d.coord) && d.metaPath != "" {
		if err := d.commitMetadata(ctx); err != nil {
			return err
		}
	}
	d.barrier()

	for i, s := range d.stages {
		ctx.StageIndex = i
		if err := d.runStage(ctx, s, i == len(d.stages)-1); err != nil {
			return err
		}
	}

	d.metrics.RunsCompleted.Inc()
	ctx.Registry.Restore()
	d.log.Info("pipeline run complete", zap.String("run_id", ctx.RunID.String()))
	return nil
}

func (d *Driver) barrier() {
	d.metrics.BarrierWaits.Inc()
	d.coord.Barrier()
}

func (d *Driver) commitMetadata(ctx *Context) error {
	meta := &Metadata{
		RunID:     ctx.RunID.String(),
		CreatedAt: time.Now().UTC(),
		Stages:    make([]StageRecord, 0, len(d.stages)),
	}
	for _, s := range d.stages {
		meta.Stages = append(meta.Stages, recordStage(s))
	}
	if err := meta.Save(d.metaPath); err != nil {
		return err
	}
	d.log.Debug("pipeline metadata committed", zap.String("path", d.metaPath))
	return nil
}

func (d *Driver) runStage(ctx *Context, s Stage, last bool) error {
	start := time.Now()
	err := d.executeStage(ctx, s)
	d.metrics.ObserveStage(s.Name(), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("stage %q failed: %w", s.Name(), err)
	}

	d.logSummaries(ctx, s)
	if last {
		ctx.Registry.Finalize(d.backend)
	} else {
		ctx.Registry.Merge()
	}
	d.metrics.DatasetsLive.Set(float64(len(ctx.Registry.Names(dataset.In))))
	return nil
}

// logSummaries reports value statistics for the stage's outputs when the
// backend can compute them.
func (d *Driver) logSummaries(ctx *Context, s Stage) {
	sm, ok := d.backend.(storage.Summarizer)
	if !ok {
		return
	}
	for _, ds := range ctx.Registry.Datasets(dataset.Out) {
		h, has := ds.Storage()
		if !has {
			continue
		}
		stats, err := sm.Summary(h)
		if err != nil {
			continue
		}
		d.log.Debug("dataset summary",
			zap.String("stage", s.Name()),
			zap.String("dataset", ds.Name()),
			zap.Float64("mean", stats.Mean),
			zap.Float64("stddev", stats.StdDev),
			zap.Float64("min", stats.Min),
			zap.Float64("max", stats.Max),
			zap.Int("count", stats.Count))
	}
}

func (d *Driver) executeStage(ctx *Context, s Stage) error {
	d.log.Info("stage starting",
		zap.String("stage", s.Name()),
		zap.Int("position", ctx.StageIndex))

	if err := s.Setup(ctx); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	if err := d.applyPatterns(ctx, s); err != nil {
		return err
	}

	share, total, err := d.shareFor(ctx, s)
	if err != nil {
		return err
	}
	frames := 0
	for _, b := range share {
		frames += b.Frames()
	}
	d.metrics.FramesProcessed.Add(float64(frames))
	d.log.Debug("share computed",
		zap.String("stage", s.Name()),
		zap.Int("total_batches", total),
		zap.Int("share_batches", len(share)),
		zap.Int("share_frames", frames))

	if it, ok := s.(Iterative); ok {
		return d.runIterative(ctx, it, share)
	}
	return s.Execute(ctx, share)
}

// applyPatterns attaches and activates the stage's declared patterns,
// failing fast when a pattern names a missing dataset or does not fit its
// shape.
func (d *Driver) applyPatterns(ctx *Context, s Stage) error {
	pats := s.Patterns()
	for _, role := range []dataset.Role{dataset.In, dataset.Out} {
		declared := pats.In
		if role == dataset.Out {
			declared = pats.Out
		}
		for _, name := range sortedKeys(declared) {
			ds, ok := ctx.Registry.Get(role, name)
			if !ok {
				return &UnknownDatasetError{Stage: s.Name(), Dataset: name, Role: string(role)}
			}
			p := declared[name]
			if err := ds.AddPattern(p); err != nil {
				return &ShapeMismatchError{
					Stage:   s.Name(),
					Dataset: name,
					Pattern: p.Name,
					Cause:   err,
				}
			}
			if err := ds.SetCurrentPattern(p.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Driver) shareFor(ctx *Context, s Stage) ([]slicing.Batch, int, error) {
	pats := s.Patterns()
	var primary *dataset.Dataset
	if names := sortedKeys(pats.In); len(names) > 0 {
		primary, _ = ctx.In(names[0])
	} else if names := sortedKeys(pats.Out); len(names) > 0 {
		primary, _ = ctx.Out(names[0])
	}
	if primary == nil {
		return nil, 0, fmt.Errorf("stage %q declares no patterns", s.Name())
	}

	grouped, err := primary.GroupedSlices(s.MaxBatchSize())
	if err != nil {
		return nil, 0, err
	}
	d.metrics.BatchesGrouped.Add(float64(len(grouped)))
	return distribute.Distribute(grouped, d.coord.Rank(), d.coord.TotalRanks())
}

func (d *Driver) runIterative(ctx *Context, it Iterative, share []slicing.Batch) error {
	n := it.Iterations()
	if n < 1 {
		n = 1
	}
	visible, a, b := it.AlternatingPair()
	dsA, ok := ctx.Out(a)
	if !ok {
		return &UnknownDatasetError{Stage: it.Name(), Dataset: a, Role: string(dataset.Out)}
	}
	dsB, ok := ctx.Out(b)
	if !ok {
		return &UnknownDatasetError{Stage: it.Name(), Dataset: b, Role: string(dataset.Out)}
	}
	if err := ctx.Registry.RegisterAlternating(visible, dsA, dsB); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		ctx.Iteration = i
		d.log.Debug("iteration starting",
			zap.String("stage", it.Name()),
			zap.Int("iteration", i))
		if err := it.Execute(ctx, share); err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
		if i < n-1 {
			ctx.Registry.SwapAlternating()
		}
	}
	ctx.Iteration = 0
	ctx.Registry.ResolveAlternating()
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
