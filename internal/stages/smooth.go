package stages

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/voxelforge/tomoflow/internal/dataset"
	"github.com/voxelforge/tomoflow/internal/pattern"
	"github.com/voxelforge/tomoflow/internal/pipeline"
	"github.com/voxelforge/tomoflow/internal/slicing"
	"github.com/voxelforge/tomoflow/internal/storage"
)

// Smooth is an iterative relaxation filter: each iteration blends the
// previous estimate toward the stage input. It demonstrates the alternating
// read/write buffer scheme; the math itself is a stand-in for a real
// iterative reconstruction.
type Smooth struct {
	In            string
	Out           string // externally visible result name
	Rank          int
	MaxBatch      int
	NumIterations int
	Alpha         float64 // blend weight toward the input, in (0, 1]
}

// Name implements pipeline.Stage.
func (s *Smooth) Name() string { return "smooth" }

// MaxBatchSize implements pipeline.Stage.
func (s *Smooth) MaxBatchSize() int { return s.MaxBatch }

// Iterations implements pipeline.Iterative.
func (s *Smooth) Iterations() int { return s.NumIterations }

// AlternatingPair implements pipeline.Iterative.
func (s *Smooth) AlternatingPair() (visible, a, b string) {
	return s.Out, s.Out, dataset.CloneName(s.Out, 0)
}

// Setup implements pipeline.Stage. It declares the result buffer and its
// iteration clone.
func (s *Smooth) Setup(ctx *pipeline.Context) error {
	in, ok := ctx.In(s.In)
	if !ok {
		return fmt.Errorf("smooth: input dataset %q not loaded", s.In)
	}
	for _, name := range []string{s.Out, dataset.CloneName(s.Out, 0)} {
		d, err := ctx.Registry.Create(dataset.Out, name, in.Shape(), storage.Float64, dataset.Volume)
		if err != nil {
			return err
		}
		h, err := ctx.Backend.Allocate(in.Shape(), storage.Float64)
		if err != nil {
			return err
		}
		d.AttachStorage(h)
	}
	return nil
}

// Patterns implements pipeline.Stage.
func (s *Smooth) Patterns() pipeline.Patterns {
	p := projectionPattern(s.Rank)
	return pipeline.Patterns{
		In: map[string]pattern.Pattern{s.In: p},
		Out: map[string]pattern.Pattern{
			s.Out:                     p,
			dataset.CloneName(s.Out, 0): p,
		},
	}
}

// Execute implements pipeline.Stage. Iteration 0 seeds the write buffer from
// the stage input; later iterations read the previous estimate from the
// alternating read buffer.
func (s *Smooth) Execute(ctx *pipeline.Context, share []slicing.Batch) error {
	in, _ := ctx.In(s.In)
	hin, _ := in.Storage()

	read, write, err := ctx.Registry.AlternatingBuffers(s.Out)
	if err != nil {
		return err
	}
	hwrite, _ := write.Storage()

	src := hin
	if ctx.Iteration > 0 {
		src, _ = read.Storage()
	}

	alpha := s.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = 0.5
	}

	for _, b := range share {
		prev, err := ctx.Backend.Read(src, b.Slice)
		if err != nil {
			return err
		}
		orig, err := ctx.Backend.Read(hin, b.Slice)
		if err != nil {
			return err
		}
		// next = (1-alpha)*prev + alpha*orig
		floats.Scale(1-alpha, prev)
		floats.AddScaled(prev, alpha, orig)
		if err := ctx.Backend.Write(hwrite, b.Slice, prev); err != nil {
			return err
		}
	}
	return nil
}
