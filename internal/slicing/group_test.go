package slicing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelforge/tomoflow/internal/pattern"
)

func tuplesFor(t *testing.T, shape []int, p pattern.Pattern) []Tuple {
	t.Helper()
	tuples, err := Enumerate(shape, p)
	require.NoError(t, err)
	return tuples
}

func TestGroupSingleAxis(t *testing.T) {
	// Shape (10,), one slice dimension of extent 10, max batch 4:
	// batches cover [0:4), [4:8), [8:10).
	tuples := tuplesFor(t, []int{10, 3}, pattern.New("p", []int{1}, []int{0}))

	batches, err := Group(tuples, 4)
	require.NoError(t, err)
	require.Len(t, batches, 3)

	want := [][3]int{{0, 4, 1}, {4, 8, 1}, {8, 10, 1}}
	for i, b := range batches {
		r := b.Slice[b.Axis]
		assert.Equal(t, Range, r.Kind)
		assert.Equal(t, want[i][0], r.Start, "batch %d start", i)
		assert.Equal(t, want[i][1], r.Stop, "batch %d stop", i)
		assert.Equal(t, want[i][2], r.Step, "batch %d step", i)
	}
}

func TestGroupRoundTrip(t *testing.T) {
	// Flattening the batches reproduces the enumerated sequence exactly.
	shapes := []struct {
		name     string
		shape    []int
		p        pattern.Pattern
		maxBatch int
	}{
		{"1 slice dim", []int{17, 4}, pattern.New("p", []int{1}, []int{0}), 5},
		{"2 slice dims", []int{3, 7, 4}, pattern.New("p", []int{2}, []int{0, 1}), 4},
		{"batch of one", []int{6, 2}, pattern.New("p", []int{1}, []int{0}), 1},
		{"huge batch", []int{9, 2}, pattern.New("p", []int{1}, []int{0}), 100},
		{"no slice dims", []int{5, 5}, pattern.New("p", []int{0, 1}, nil), 3},
	}

	for _, tt := range shapes {
		t.Run(tt.name, func(t *testing.T) {
			tuples := tuplesFor(t, tt.shape, tt.p)
			batches, err := Group(tuples, tt.maxBatch)
			require.NoError(t, err)

			var flat []Tuple
			for _, b := range batches {
				flat = append(flat, b.Expand()...)
			}
			require.Len(t, flat, len(tuples))
			for i := range tuples {
				assert.Equal(t, tuples[i], flat[i], "tuple %d", i)
			}
		})
	}
}

func TestGroupBatchSizeBound(t *testing.T) {
	tuples := tuplesFor(t, []int{100, 2}, pattern.New("p", []int{1}, []int{0}))
	for _, maxBatch := range []int{1, 3, 7, 64} {
		batches, err := Group(tuples, maxBatch)
		require.NoError(t, err)
		for i, b := range batches {
			assert.LessOrEqual(t, b.Frames(), maxBatch, "maxBatch=%d batch=%d", maxBatch, i)
		}
	}
}

func TestGroupClosesAtRowBoundary(t *testing.T) {
	// With two slice dims the inner axis wraps at each row end; the wrap
	// steps along two axes at once, so the open batch must close there.
	tuples := tuplesFor(t, []int{3, 4, 2}, pattern.New("p", []int{2}, []int{0, 1}))

	batches, err := Group(tuples, 100)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	for i, b := range batches {
		assert.Equal(t, 4, b.Frames(), "row %d", i)
		assert.Equal(t, 1, b.Axis)
		assert.Equal(t, i, b.Slice[0].Index)
	}
}

func TestGroupMultiAxisStepNeverGuesses(t *testing.T) {
	// A diagonal sequence steps along two axes with equal magnitude at
	// every transition; each tuple must end up in its own batch.
	seq := []Tuple{
		{IndexDim(0), IndexDim(0), FullDim()},
		{IndexDim(1), IndexDim(1), FullDim()},
		{IndexDim(2), IndexDim(2), FullDim()},
	}
	batches, err := Group(seq, 10)
	require.NoError(t, err)
	assert.Len(t, batches, 3)
	for _, b := range batches {
		assert.Equal(t, 1, b.Frames())
	}
}

func TestGroupDuplicateTupleFails(t *testing.T) {
	seq := []Tuple{
		{IndexDim(3), FullDim()},
		{IndexDim(3), FullDim()},
	}
	_, err := Group(seq, 10)
	require.Error(t, err)
	var use *UngroupableSequenceError
	assert.True(t, errors.As(err, &use))
}

func TestGroupMixedRankFails(t *testing.T) {
	seq := []Tuple{
		{IndexDim(0), FullDim()},
		{IndexDim(1), IndexDim(0), FullDim()},
	}
	_, err := Group(seq, 10)
	var use *UngroupableSequenceError
	assert.True(t, errors.As(err, &use))
}

func TestGroupNegativeStep(t *testing.T) {
	seq := []Tuple{
		{IndexDim(5), FullDim()},
		{IndexDim(4), FullDim()},
		{IndexDim(3), FullDim()},
		{IndexDim(2), FullDim()},
	}
	batches, err := Group(seq, 3)
	require.NoError(t, err)

	var flat []Tuple
	for _, b := range batches {
		assert.LessOrEqual(t, b.Frames(), 3)
		flat = append(flat, b.Expand()...)
	}
	require.Len(t, flat, len(seq))
	for i := range seq {
		assert.Equal(t, seq[i], flat[i])
	}
}
