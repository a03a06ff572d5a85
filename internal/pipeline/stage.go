package pipeline

import (
	"github.com/voxelforge/tomoflow/internal/pattern"
	"github.com/voxelforge/tomoflow/internal/slicing"
)

// Patterns declares the access patterns a stage needs, keyed by dataset
// name. A dataset's pattern decides which of its axes are sliced across the
// worker pool and which stay whole inside each unit of work.
type Patterns struct {
	In  map[string]pattern.Pattern
	Out map[string]pattern.Pattern
}

// Stage is one plugin's contract within the chain. The driver calls the
// methods in a fixed order per stage: Setup, Patterns, then Execute with
// this rank's share of the grouped batch list.
type Stage interface {
	Name() string

	// Setup declares the stage's output datasets through the context's
	// registry. Run once per stage before slicing is computed.
	Setup(ctx *Context) error

	// Patterns returns the stage's declared input and output patterns.
	Patterns() Patterns

	// MaxBatchSize bounds the number of frames grouped into one batch.
	// Values below 1 are treated as 1.
	MaxBatchSize() int

	// Execute processes this rank's share of the global batch list.
	Execute(ctx *Context, share []slicing.Batch) error
}

// Loader populates the initial input datasets before the processing chain
// starts. Loaders run on every rank; the resulting input set is the restart
// checkpoint.
type Loader interface {
	Name() string
	Load(ctx *Context) error
}

// Iterative is a stage that repeats a fixed number of times, reading from
// one of two alternating buffers and writing the other, swapped each
// iteration.
type Iterative interface {
	Stage

	// Iterations returns the fixed iteration count, at least 1.
	Iterations() int

	// AlternatingPair names the pair: the externally visible dataset name
	// and the two buffer names declared in Setup.
	AlternatingPair() (visible, a, b string)
}
