package stages

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/voxelforge/tomoflow/internal/pattern"
	"github.com/voxelforge/tomoflow/internal/pipeline"
	"github.com/voxelforge/tomoflow/internal/slicing"
	"github.com/voxelforge/tomoflow/internal/topology"
)

// BlockSaver persists one dataset to the block store. Only the designated
// coordinator rank writes; the preceding stage boundary guarantees the data
// is complete before this stage runs.
type BlockSaver struct {
	Dataset  string
	Rank     int
	MaxBatch int
}

// Name implements pipeline.Stage.
func (s *BlockSaver) Name() string { return "block_saver" }

// MaxBatchSize implements pipeline.Stage.
func (s *BlockSaver) MaxBatchSize() int { return s.MaxBatch }

// Setup implements pipeline.Stage. The saver declares no outputs.
func (s *BlockSaver) Setup(ctx *pipeline.Context) error { return nil }

// Patterns implements pipeline.Stage.
func (s *BlockSaver) Patterns() pipeline.Patterns {
	return pipeline.Patterns{
		In: map[string]pattern.Pattern{s.Dataset: projectionPattern(s.Rank)},
	}
}

// Execute implements pipeline.Stage.
func (s *BlockSaver) Execute(ctx *pipeline.Context, share []slicing.Batch) error {
	if ctx.Store == nil || !topology.IsWriter(ctx.Coord) {
		return nil
	}
	in, ok := ctx.In(s.Dataset)
	if !ok {
		return fmt.Errorf("block saver: dataset %q not present", s.Dataset)
	}
	h, ok := in.Storage()
	if !ok {
		return fmt.Errorf("block saver: dataset %q has no storage", s.Dataset)
	}
	shape := in.Shape()
	data, err := ctx.Backend.Read(h, fullSelection(len(shape)))
	if err != nil {
		return err
	}
	path := ctx.Store.BlockName(ctx.StageIndex, s.Name(), s.Dataset)
	if err := ctx.Store.Save(path, shape, data); err != nil {
		return err
	}
	ctx.Log.Info("dataset persisted", zap.String("dataset", s.Dataset), zap.String("path", path))
	return nil
}
