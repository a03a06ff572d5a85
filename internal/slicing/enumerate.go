package slicing

import (
	"fmt"

	"github.com/voxelforge/tomoflow/internal/pattern"
)

// Enumerate produces the ordered sequence of tuples addressing every
// independent core block of a dataset under the given pattern. Slice
// dimensions are iterated in row-major order (last slice axis fastest),
// matching the dataset's shape order; core dimensions are emitted whole.
//
// The sequence is finite, its length is the product of the slice-dimension
// extents, and repeated calls with the same inputs yield identical output.
func Enumerate(shape []int, p pattern.Pattern) ([]Tuple, error) {
	if err := p.Validate(len(shape)); err != nil {
		return nil, err
	}
	for i, ext := range shape {
		if ext <= 0 {
			return nil, &pattern.InvalidPatternError{
				Pattern: p.Name,
				Reason:  fmt.Sprintf("dimension %d has non-positive extent %d", i, ext),
			}
		}
	}

	sliceDims := p.SliceDims()
	total := 1
	for _, d := range sliceDims {
		total *= shape[d]
	}

	base := make(Tuple, len(shape))
	for i := range base {
		base[i] = FullDim()
	}

	// Odometer over the slice dimensions, last axis fastest.
	counters := make([]int, len(sliceDims))
	out := make([]Tuple, 0, total)
	for n := 0; n < total; n++ {
		tup := make(Tuple, len(base))
		copy(tup, base)
		for i, d := range sliceDims {
			tup[d] = IndexDim(counters[i])
		}
		out = append(out, tup)

		for i := len(sliceDims) - 1; i >= 0; i-- {
			counters[i]++
			if counters[i] < shape[sliceDims[i]] {
				break
			}
			counters[i] = 0
		}
	}
	return out, nil
}
