package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockStoreRoundTrip(t *testing.T) {
	store, err := NewBlockStore(t.TempDir(), 3)
	require.NoError(t, err)

	shape := []int{3, 4}
	data := make([]float64, 12)
	for i := range data {
		data[i] = float64(i) * 0.25
	}

	path := store.BlockName(1, "normalize", "normalized")
	assert.Contains(t, path, "01_normalize_normalized.blk.zst")

	require.NoError(t, store.Save(path, shape, data))

	gotShape, gotData, err := store.Load(path)
	require.NoError(t, err)
	assert.Equal(t, shape, gotShape)
	assert.Equal(t, data, gotData)
}

func TestBlockStoreLoadMissing(t *testing.T) {
	store, err := NewBlockStore(t.TempDir(), 3)
	require.NoError(t, err)

	_, _, err = store.Load(store.BlockName(0, "x", "y"))
	assert.Error(t, err)
}
