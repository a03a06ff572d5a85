package dataset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelforge/tomoflow/internal/storage"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(nil)
}

func TestCreateDuplicateOutput(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Create(Out, "A", []int{4}, storage.Float64, Raw)
	require.NoError(t, err)

	_, err = r.Create(Out, "A", []int{4}, storage.Float64, Raw)
	require.Error(t, err)
	var dde *DuplicateDatasetError
	assert.True(t, errors.As(err, &dde))
	assert.Equal(t, "A", dde.Name)
}

func TestMergeMovesKeptOutputs(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Create(Out, "A", []int{4}, storage.Float64, Raw)
	require.NoError(t, err)
	_, err = r.Create(Out, "B", []int{4}, storage.Float64, Raw)
	require.NoError(t, err)

	r.Merge()

	assert.Equal(t, []string{"A", "B"}, r.Names(In))
	assert.Empty(t, r.Names(Out))
}

func TestMergeDropsRemoved(t *testing.T) {
	r := newTestRegistry(t)

	a, err := r.Create(Out, "A", []int{4}, storage.Float64, Raw)
	require.NoError(t, err)
	a.Remove = true
	_, err = r.Create(Out, "B", []int{4}, storage.Float64, Raw)
	require.NoError(t, err)

	r.Merge()

	assert.Equal(t, []string{"B"}, r.Names(In))
}

func TestMergeEmptyOutputIsNoOp(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Create(In, "scan", []int{4}, storage.Float64, Raw)
	require.NoError(t, err)

	r.Merge()

	assert.Equal(t, []string{"scan"}, r.Names(In))
	assert.Empty(t, r.Names(Out))
}

func TestMergeOverwritesSameName(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Create(In, "A", []int{4}, storage.Float64, Raw)
	require.NoError(t, err)
	replacement, err := r.Create(Out, "A", []int{8}, storage.Float64, Raw)
	require.NoError(t, err)

	r.Merge()

	got, ok := r.Get(In, "A")
	require.True(t, ok)
	assert.Same(t, replacement, got)
}

func TestFinalizeRecords(t *testing.T) {
	r := newTestRegistry(t)
	backend := storage.NewMemory()

	_, err := r.Create(In, "A", []int{4}, storage.Float64, Raw)
	require.NoError(t, err)

	// Stage outputs: "A" replaces the input, "B" is kept, "C" is removed.
	_, err = r.Create(Out, "A", []int{4}, storage.Float64, Raw)
	require.NoError(t, err)
	b, err := r.Create(Out, "B", []int{4}, storage.Float64, Raw)
	require.NoError(t, err)
	b.SetPreview(Preview{Ranges: [][2]int{{0, 2}}})
	c, err := r.Create(Out, "C", []int{4}, storage.Float64, Raw)
	require.NoError(t, err)
	c.Remove = true
	h, err := backend.Allocate([]int{4}, storage.Float64)
	require.NoError(t, err)
	c.AttachStorage(h)

	tr := r.Finalize(backend)

	assert.Equal(t, []string{"C"}, tr.Remove)
	assert.Equal(t, []string{"A", "B"}, tr.Keep)
	assert.Equal(t, []string{"A"}, tr.Replace)

	assert.Equal(t, []string{"A", "B"}, r.Names(In))
	assert.Empty(t, r.Names(Out))

	// Survivors see the full extent again.
	assert.True(t, b.GetPreview().Empty())

	// Removed dataset's storage was released.
	_, err = backend.Shape(h)
	assert.Error(t, err)
}

func TestFinalizeResetsReplication(t *testing.T) {
	r := newTestRegistry(t)

	flat, err := r.Create(In, "flat", []int{2, 4}, storage.Float64, Replicated)
	require.NoError(t, err)
	require.NoError(t, flat.Replicate(9))

	r.Finalize(nil)

	assert.False(t, flat.Replicated())
}

func TestCheckpointRestore(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Create(In, "scan", []int{4}, storage.Float64, Raw)
	require.NoError(t, err)
	r.Checkpoint()

	_, err = r.Create(Out, "derived", []int{4}, storage.Float64, Raw)
	require.NoError(t, err)
	r.Merge()
	assert.Equal(t, []string{"derived", "scan"}, r.Names(In))

	r.Restore()
	assert.Equal(t, []string{"scan"}, r.Names(In))
	assert.Empty(t, r.Names(Out))
}

func TestAlternatingPairResolution(t *testing.T) {
	run := func(t *testing.T, iterations int) {
		r := newTestRegistry(t)
		x, err := r.Create(Out, "X", []int{4}, storage.Float64, Volume)
		require.NoError(t, err)
		y, err := r.Create(Out, "Y", []int{4}, storage.Float64, Volume)
		require.NoError(t, err)
		require.NoError(t, r.RegisterAlternating("X", x, y))

		for i := 0; i < iterations-1; i++ {
			r.SwapAlternating()
		}
		r.ResolveAlternating()

		removed := 0
		for _, d := range []*Dataset{x, y} {
			if d.Remove {
				removed++
			}
		}
		assert.Equal(t, 1, removed, "exactly one of the pair is removed")

		var kept *Dataset
		if x.Remove {
			kept = y
		} else {
			kept = x
		}
		assert.Equal(t, "X", kept.Name(), "survivor keeps the visible name")

		r.Merge()
		assert.Equal(t, []string{"X"}, r.Names(In))
	}

	t.Run("single iteration", func(t *testing.T) { run(t, 1) })
	t.Run("two iterations", func(t *testing.T) { run(t, 2) })
	t.Run("five iterations", func(t *testing.T) { run(t, 5) })
}

func TestAlternatingBuffers(t *testing.T) {
	r := newTestRegistry(t)
	x, err := r.Create(Out, "X", []int{4}, storage.Float64, Volume)
	require.NoError(t, err)
	y, err := r.Create(Out, "Y", []int{4}, storage.Float64, Volume)
	require.NoError(t, err)
	require.NoError(t, r.RegisterAlternating("X", x, y))

	// Before the first swap the first member is the write target.
	read, write, err := r.AlternatingBuffers("X")
	require.NoError(t, err)
	assert.Same(t, y, read)
	assert.Same(t, x, write)

	r.SwapAlternating()
	read, write, err = r.AlternatingBuffers("X")
	require.NoError(t, err)
	assert.Same(t, x, read)
	assert.Same(t, y, write)

	r.SwapAlternating()
	read, write, err = r.AlternatingBuffers("X")
	require.NoError(t, err)
	assert.Same(t, y, read)
	assert.Same(t, x, write)

	_, _, err = r.AlternatingBuffers("missing")
	assert.Error(t, err)
}

func TestCloneName(t *testing.T) {
	assert.Equal(t, "volume_itr_clone0", CloneName("volume", 0))
}
