// Package storage provides the array storage boundary for the pipeline core.
// The core never inspects file formats; it only requests reads and writes at
// index ranges computed by the slicing engine.
package storage

import (
	"fmt"

	"github.com/voxelforge/tomoflow/internal/slicing"
)

// DType identifies the element type of a stored array.
type DType string

const (
	// Float64 is the only element type the bundled backends carry.
	Float64 DType = "float64"
)

// Handle identifies one allocated array within a backend. Opaque to callers.
type Handle uint32

// Backend is the storage collaborator consumed by the pipeline core.
type Backend interface {
	// Allocate reserves storage for a new array of the given shape.
	Allocate(shape []int, dtype DType) (Handle, error)
	// Read returns the elements addressed by the selection, flattened in
	// row-major order.
	Read(h Handle, sel slicing.Tuple) ([]float64, error)
	// Write stores the flattened elements at the addressed selection.
	Write(h Handle, sel slicing.Tuple, data []float64) error
	// Release frees the array. Reads of a released handle fail.
	Release(h Handle) error
}

// Summarizer is implemented by backends that can compute distribution
// statistics over a whole array. The driver logs summaries when available.
type Summarizer interface {
	Summary(h Handle) (Stats, error)
}

// selIndices expands one selection entry into the concrete indices it
// addresses along a dimension of the given extent.
func selIndices(d slicing.Dim, extent int) ([]int, error) {
	switch d.Kind {
	case slicing.Full:
		out := make([]int, extent)
		for i := range out {
			out[i] = i
		}
		return out, nil
	case slicing.Index:
		if d.Index < 0 || d.Index >= extent {
			return nil, fmt.Errorf("index %d out of range [0, %d)", d.Index, extent)
		}
		return []int{d.Index}, nil
	case slicing.Range:
		if d.Step == 0 {
			return nil, fmt.Errorf("zero step in range selection")
		}
		var out []int
		for i := d.Start; (d.Step > 0 && i < d.Stop) || (d.Step < 0 && i > d.Stop); i += d.Step {
			if i < 0 || i >= extent {
				return nil, fmt.Errorf("range index %d out of range [0, %d)", i, extent)
			}
			out = append(out, i)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown selection kind %d", d.Kind)
}
