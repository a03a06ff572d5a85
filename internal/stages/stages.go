// Package stages bundles the built-in stages: a synthetic scan loader, a
// normalization filter, an iterative smoother, and a block saver. They carry
// no reconstruction math; their job is to move data through the chain the
// way real plugins do.
package stages

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/voxelforge/tomoflow/internal/dataset"
	"github.com/voxelforge/tomoflow/internal/pattern"
	"github.com/voxelforge/tomoflow/internal/pipeline"
	"github.com/voxelforge/tomoflow/internal/slicing"
	"github.com/voxelforge/tomoflow/internal/storage"
)

// fullSelection addresses an entire array.
func fullSelection(rank int) slicing.Tuple {
	tup := make(slicing.Tuple, rank)
	for i := range tup {
		tup[i] = slicing.FullDim()
	}
	return tup
}

// ScanLoader synthesizes a raw scan volume and registers it as the initial
// input dataset. The first dimension is the projection angle, the remaining
// dimensions the detector plane.
type ScanLoader struct {
	Dataset string
	Shape   []int
}

// Name implements pipeline.Loader.
func (l *ScanLoader) Name() string { return "scan_loader" }

// Load implements pipeline.Loader.
func (l *ScanLoader) Load(ctx *pipeline.Context) error {
	if len(l.Shape) < 2 {
		return fmt.Errorf("scan loader needs at least 2 dimensions, got %d", len(l.Shape))
	}
	d, err := ctx.Registry.Create(dataset.In, l.Dataset, l.Shape, storage.Float64, dataset.Raw)
	if err != nil {
		return err
	}
	h, err := ctx.Backend.Allocate(l.Shape, storage.Float64)
	if err != nil {
		return err
	}
	d.AttachStorage(h)

	n := 1
	for _, ext := range l.Shape {
		n *= ext
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(i % 251) // synthetic, bounded ramp
	}
	if err := ctx.Backend.Write(h, fullSelection(len(l.Shape)), data); err != nil {
		return err
	}

	if err := d.AddPattern(projectionPattern(len(l.Shape))); err != nil {
		return err
	}
	return d.SetCurrentPattern("projection")
}

// projectionPattern slices the angle axis and keeps the detector plane
// whole.
func projectionPattern(rank int) pattern.Pattern {
	core := make([]int, 0, rank-1)
	for i := 1; i < rank; i++ {
		core = append(core, i)
	}
	return pattern.New("projection", core, []int{0})
}

// Normalize shifts each projection frame to zero mean.
type Normalize struct {
	In       string
	Out      string
	Rank     int // dimensionality of the input dataset
	MaxBatch int
}

// Name implements pipeline.Stage.
func (s *Normalize) Name() string { return "normalize" }

// MaxBatchSize implements pipeline.Stage.
func (s *Normalize) MaxBatchSize() int { return s.MaxBatch }

// Setup implements pipeline.Stage.
func (s *Normalize) Setup(ctx *pipeline.Context) error {
	in, ok := ctx.In(s.In)
	if !ok {
		return fmt.Errorf("normalize: input dataset %q not loaded", s.In)
	}
	out, err := ctx.Registry.Create(dataset.Out, s.Out, in.Shape(), storage.Float64, dataset.Raw)
	if err != nil {
		return err
	}
	h, err := ctx.Backend.Allocate(in.Shape(), storage.Float64)
	if err != nil {
		return err
	}
	out.AttachStorage(h)
	return nil
}

// Patterns implements pipeline.Stage.
func (s *Normalize) Patterns() pipeline.Patterns {
	p := projectionPattern(s.Rank)
	return pipeline.Patterns{
		In:  map[string]pattern.Pattern{s.In: p},
		Out: map[string]pattern.Pattern{s.Out: p},
	}
}

// Execute implements pipeline.Stage.
func (s *Normalize) Execute(ctx *pipeline.Context, share []slicing.Batch) error {
	in, _ := ctx.In(s.In)
	out, _ := ctx.Out(s.Out)
	hin, _ := in.Storage()
	hout, _ := out.Storage()

	for _, b := range share {
		data, err := ctx.Backend.Read(hin, b.Slice)
		if err != nil {
			return err
		}
		frameLen := len(data) / b.Frames()
		for off := 0; off < len(data); off += frameLen {
			frame := data[off : off+frameLen]
			mean := stat.Mean(frame, nil)
			floats.AddConst(-mean, frame)
		}
		if err := ctx.Backend.Write(hout, b.Slice, data); err != nil {
			return err
		}
	}
	return nil
}
