package slicing

import (
	"fmt"
)

// UngroupableSequenceError reports an enumerated sequence the grouper cannot
// batch safely: duplicate tuples, mixed entry kinds, or inconsistent rank.
// Grouping fails loudly rather than mis-batching data destined for parallel
// writes.
type UngroupableSequenceError struct {
	Position int
	Reason   string
}

func (e *UngroupableSequenceError) Error() string {
	return fmt.Sprintf("ungroupable sequence at tuple %d: %s", e.Position, e.Reason)
}

// Group coalesces consecutive tuples that advance along exactly one axis by a
// constant step into range batches, each spanning at most maxBatch frames.
//
// A tuple extends the open batch only when the batch's step is still
// undetermined and the candidate differs along exactly one axis, or the
// candidate's per-axis step exactly matches the established one. A candidate
// differing along more than one axis closes the batch: the stepping axis
// would be ambiguous, so no axis is guessed.
func Group(tuples []Tuple, maxBatch int) ([]Batch, error) {
	if maxBatch < 1 {
		maxBatch = 1
	}

	var out []Batch
	var open []Tuple
	var step []int // nil until established

	for pos, tup := range tuples {
		switch {
		case len(open) == 0:
			open = append(open, tup)

		case step == nil:
			ns, err := calcStep(open[len(open)-1], tup, pos)
			if err != nil {
				return nil, err
			}
			switch axes := nonZeroAxes(ns); len(axes) {
			case 0:
				return nil, &UngroupableSequenceError{Position: pos, Reason: "duplicate tuple"}
			case 1:
				open = append(open, tup)
				step = ns
			default:
				out = appendClosed(out, open, nil, maxBatch)
				open = []Tuple{tup}
			}

		default:
			ns, err := calcStep(open[len(open)-1], tup, pos)
			if err != nil {
				return nil, err
			}
			if equalSteps(ns, step) {
				open = append(open, tup)
			} else {
				out = appendClosed(out, open, step, maxBatch)
				open = []Tuple{tup}
				step = nil
			}
		}
	}
	if len(open) > 0 {
		out = appendClosed(out, open, step, maxBatch)
	}
	return out, nil
}

// calcStep computes the per-axis difference between two consecutive tuples.
func calcStep(a, b Tuple, pos int) ([]int, error) {
	if len(a) != len(b) {
		return nil, &UngroupableSequenceError{Position: pos, Reason: "tuple rank changed mid-sequence"}
	}
	step := make([]int, len(a))
	for i := range a {
		if a[i].Kind != b[i].Kind {
			return nil, &UngroupableSequenceError{
				Position: pos,
				Reason:   fmt.Sprintf("dimension %d changed kind mid-sequence", i),
			}
		}
		switch a[i].Kind {
		case Full:
			// core axis, never steps
		case Index:
			step[i] = b[i].Index - a[i].Index
		default:
			return nil, &UngroupableSequenceError{
				Position: pos,
				Reason:   fmt.Sprintf("dimension %d is already a range", i),
			}
		}
	}
	return step, nil
}

func nonZeroAxes(step []int) []int {
	var axes []int
	for i, s := range step {
		if s != 0 {
			axes = append(axes, i)
		}
	}
	return axes
}

func equalSteps(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// appendClosed converts a finished run into range batches of at most
// maxBatch frames each and appends them to out.
func appendClosed(out []Batch, run []Tuple, step []int, maxBatch int) []Batch {
	if len(run) == 1 {
		return append(out, singletonBatch(run[0]))
	}

	axis := nonZeroAxes(step)[0]
	s := step[axis]
	start := run[0][axis].Index
	frames := len(run)

	for f := 0; f < frames; f += maxBatch {
		n := maxBatch
		if frames-f < n {
			n = frames - f
		}
		chunkStart := start + f*s
		tup := make(Tuple, len(run[0]))
		copy(tup, run[0])
		tup[axis] = RangeDim(chunkStart, chunkStart+n*s, s)
		out = append(out, Batch{Slice: tup, Axis: axis, Step: s})
	}
	return out
}

// singletonBatch wraps a lone tuple. The last single-index axis becomes a
// one-frame range so downstream code sees a uniform batch shape; a tuple
// with no index entries (all-core pattern) stays degenerate.
func singletonBatch(t Tuple) Batch {
	axis := -1
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Kind == Index {
			axis = i
			break
		}
	}
	tup := make(Tuple, len(t))
	copy(tup, t)
	if axis < 0 {
		return Batch{Slice: tup, Axis: -1}
	}
	i := t[axis].Index
	tup[axis] = RangeDim(i, i+1, 1)
	return Batch{Slice: tup, Axis: axis, Step: 1}
}
