// Package slicing turns a dataset shape and an access pattern into the
// ordered, grouped, size-bounded batches of frames that the worker pool
// distributes among ranks.
package slicing

import (
	"fmt"
	"strings"
)

// DimKind discriminates the three per-dimension entries of a Tuple.
type DimKind int

const (
	// Index addresses a single position along the dimension.
	Index DimKind = iota
	// Range addresses a strided half-open interval [Start, Stop).
	Range
	// Full marks a core dimension taken whole.
	Full
)

// Dim is one entry of a Tuple.
type Dim struct {
	Kind  DimKind
	Index int
	Start int
	Stop  int // exclusive
	Step  int
}

// IndexDim returns a single-index entry.
func IndexDim(i int) Dim { return Dim{Kind: Index, Index: i} }

// RangeDim returns a strided range entry over [start, stop).
func RangeDim(start, stop, step int) Dim {
	return Dim{Kind: Range, Start: start, Stop: stop, Step: step}
}

// FullDim returns a whole-axis entry.
func FullDim() Dim { return Dim{Kind: Full} }

// Frames reports how many positions the entry addresses along its axis.
// Full entries report 1: a core axis contributes a single whole block.
func (d Dim) Frames() int {
	switch d.Kind {
	case Index, Full:
		return 1
	case Range:
		if d.Step == 0 {
			return 0
		}
		n := (d.Stop - d.Start) / d.Step
		if (d.Stop-d.Start)%d.Step != 0 {
			n++
		}
		if n < 0 {
			return 0
		}
		return n
	}
	return 0
}

func (d Dim) String() string {
	switch d.Kind {
	case Index:
		return fmt.Sprintf("%d", d.Index)
	case Range:
		return fmt.Sprintf("%d:%d:%d", d.Start, d.Stop, d.Step)
	case Full:
		return ":"
	}
	return "?"
}

// Tuple addresses one unit of work: one entry per dataset dimension, in the
// dataset's shape order.
type Tuple []Dim

func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, d := range t {
		parts[i] = d.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Batch is a grouped run of tuples advancing along exactly one axis by a
// constant non-zero step, bounded in frame count by the grouping limit.
type Batch struct {
	// Slice addresses the whole run; Slice[Axis] is a Range entry, every
	// other slice-dimension entry is fixed.
	Slice Tuple
	// Axis is the varying dimension. Axis < 0 marks a degenerate batch of
	// a single tuple with no varying slice axis.
	Axis int
	// Step is the constant advance along Axis, zero for degenerate batches.
	Step int
}

// Frames reports the number of individual work units in the batch.
func (b Batch) Frames() int {
	if b.Axis < 0 {
		return 1
	}
	return b.Slice[b.Axis].Frames()
}

// Expand flattens the batch back into its individual single-index tuples,
// in order. Inverse of grouping.
func (b Batch) Expand() []Tuple {
	if b.Axis < 0 {
		tup := make(Tuple, len(b.Slice))
		copy(tup, b.Slice)
		return []Tuple{tup}
	}
	r := b.Slice[b.Axis]
	out := make([]Tuple, 0, b.Frames())
	for i := r.Start; (r.Step > 0 && i < r.Stop) || (r.Step < 0 && i > r.Stop); i += r.Step {
		tup := make(Tuple, len(b.Slice))
		copy(tup, b.Slice)
		tup[b.Axis] = IndexDim(i)
		out = append(out, tup)
	}
	return out
}
