// Package distribute partitions an ordered batch list across a fixed pool of
// worker ranks. Partitions are contiguous and near-equal so every rank can
// recompute the full assignment independently and arrive at the same answer,
// which downstream synchronization barriers rely on.
package distribute

import (
	"fmt"

	"github.com/voxelforge/tomoflow/internal/slicing"
)

// InvalidRankError reports a rank outside the configured topology.
type InvalidRankError struct {
	Rank       int
	TotalRanks int
}

func (e *InvalidRankError) Error() string {
	return fmt.Sprintf("invalid rank %d for topology of %d", e.Rank, e.TotalRanks)
}

// Share is one rank's contiguous slice [Start, End) of the global batch
// ordering.
type Share struct {
	Start int
	End   int
}

// Len reports the number of batches in the share.
func (s Share) Len() int { return s.End - s.Start }

// Partition splits the index range [0, n) into totalRanks contiguous
// partitions whose sizes differ by at most one, larger partitions at lower
// ranks, and returns the partition for the given rank. The result depends
// only on the arguments, never on calling order or rank-local state.
func Partition(n, rank, totalRanks int) (Share, error) {
	if totalRanks < 1 || rank < 0 || rank >= totalRanks {
		return Share{}, &InvalidRankError{Rank: rank, TotalRanks: totalRanks}
	}
	base := n / totalRanks
	rem := n % totalRanks

	start := rank*base + min(rank, rem)
	size := base
	if rank < rem {
		size++
	}
	return Share{Start: start, End: start + size}, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Distribute assigns this rank its share of the grouped batch list and
// reports the full batch count alongside, for callers that track global
// progress.
func Distribute(batches []slicing.Batch, rank, totalRanks int) ([]slicing.Batch, int, error) {
	share, err := Partition(len(batches), rank, totalRanks)
	if err != nil {
		return nil, 0, err
	}
	return batches[share.Start:share.End], len(batches), nil
}
