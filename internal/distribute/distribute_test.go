package distribute

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelforge/tomoflow/internal/pattern"
	"github.com/voxelforge/tomoflow/internal/slicing"
)

func TestPartitionCoversExactly(t *testing.T) {
	for _, n := range []int{0, 1, 5, 10, 17, 100} {
		for _, ranks := range []int{1, 2, 3, 7, 16} {
			covered := make([]int, n)
			prevEnd := 0
			for rank := 0; rank < ranks; rank++ {
				share, err := Partition(n, rank, ranks)
				require.NoError(t, err)
				assert.Equal(t, prevEnd, share.Start, "n=%d ranks=%d rank=%d contiguous", n, ranks, rank)
				prevEnd = share.End
				for i := share.Start; i < share.End; i++ {
					covered[i]++
				}
			}
			assert.Equal(t, n, prevEnd, "n=%d ranks=%d full coverage", n, ranks)
			for i, c := range covered {
				assert.Equal(t, 1, c, "n=%d ranks=%d index %d covered once", n, ranks, i)
			}
		}
	}
}

func TestPartitionSizesDifferByAtMostOne(t *testing.T) {
	for _, n := range []int{10, 17, 23} {
		for _, ranks := range []int{2, 3, 5, 8} {
			minSize, maxSize := n, 0
			for rank := 0; rank < ranks; rank++ {
				share, err := Partition(n, rank, ranks)
				require.NoError(t, err)
				if share.Len() < minSize {
					minSize = share.Len()
				}
				if share.Len() > maxSize {
					maxSize = share.Len()
				}
			}
			assert.LessOrEqual(t, maxSize-minSize, 1, "n=%d ranks=%d", n, ranks)
		}
	}
}

func TestPartitionLargerSharesAtLowerRanks(t *testing.T) {
	// 3 batches over 2 ranks: rank 0 takes 2, rank 1 takes 1.
	s0, err := Partition(3, 0, 2)
	require.NoError(t, err)
	s1, err := Partition(3, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, s0.Len())
	assert.Equal(t, 1, s1.Len())
	assert.Equal(t, Share{Start: 0, End: 2}, s0)
	assert.Equal(t, Share{Start: 2, End: 3}, s1)
}

func TestPartitionDeterministic(t *testing.T) {
	first, err := Partition(17, 2, 5)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Partition(17, 2, 5)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestPartitionInvalidRank(t *testing.T) {
	var ire *InvalidRankError

	_, err := Partition(10, 2, 2)
	require.Error(t, err)
	assert.True(t, errors.As(err, &ire))

	_, err = Partition(10, 0, 0)
	require.Error(t, err)
	assert.True(t, errors.As(err, &ire))

	_, err = Partition(10, -1, 4)
	require.Error(t, err)
	assert.True(t, errors.As(err, &ire))
}

func TestDistributeShare(t *testing.T) {
	tuples, err := slicing.Enumerate([]int{10, 3}, pattern.New("p", []int{1}, []int{0}))
	require.NoError(t, err)
	batches, err := slicing.Group(tuples, 4)
	require.NoError(t, err)
	require.Len(t, batches, 3)

	// Rank 0 gets the [0:4) and [4:8) batches, rank 1 gets [8:10).
	share0, total, err := Distribute(batches, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, share0, 2)
	assert.Equal(t, 0, share0[0].Slice[0].Start)
	assert.Equal(t, 4, share0[1].Slice[0].Start)

	share1, _, err := Distribute(batches, 1, 2)
	require.NoError(t, err)
	require.Len(t, share1, 1)
	assert.Equal(t, 8, share1[0].Slice[0].Start)
	assert.Equal(t, 10, share1[0].Slice[0].Stop)
}
