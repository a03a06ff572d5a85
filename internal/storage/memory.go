package storage

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/voxelforge/tomoflow/internal/slicing"
)

// Memory is an in-process backend holding arrays as flat row-major buffers.
// Good for tests and single-node runs; each worker rank owns its own
// instance, so no locking is needed beyond the registration map.
type Memory struct {
	mu     sync.RWMutex
	next   Handle
	blocks map[Handle]*block
}

type block struct {
	shape   []int
	strides []int
	data    []float64
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{next: 1, blocks: make(map[Handle]*block)}
}

// Allocate reserves a zero-filled array.
func (m *Memory) Allocate(shape []int, dtype DType) (Handle, error) {
	if dtype != Float64 {
		return 0, fmt.Errorf("unsupported dtype %q", dtype)
	}
	n := 1
	for i, ext := range shape {
		if ext <= 0 {
			return 0, fmt.Errorf("dimension %d has non-positive extent %d", i, ext)
		}
		n *= ext
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.next
	m.next++
	m.blocks[h] = &block{
		shape:   append([]int(nil), shape...),
		strides: rowMajorStrides(shape),
		data:    make([]float64, n),
	}
	return h, nil
}

// Read returns the selected elements flattened in row-major order.
func (m *Memory) Read(h Handle, sel slicing.Tuple) ([]float64, error) {
	b, err := m.lookup(h)
	if err != nil {
		return nil, err
	}
	var out []float64
	err = b.walkRuns(sel, func(offset, n int) error {
		out = append(out, b.data[offset:offset+n]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Write stores data at the selected elements. The data length must match the
// selection size exactly.
func (m *Memory) Write(h Handle, sel slicing.Tuple, data []float64) error {
	b, err := m.lookup(h)
	if err != nil {
		return err
	}
	pos := 0
	err = b.walkRuns(sel, func(offset, n int) error {
		if pos+n > len(data) {
			return fmt.Errorf("write data too short: have %d elements", len(data))
		}
		copy(b.data[offset:offset+n], data[pos:pos+n])
		pos += n
		return nil
	})
	if err != nil {
		return err
	}
	if pos != len(data) {
		return fmt.Errorf("write data length %d does not match selection size %d", len(data), pos)
	}
	return nil
}

// Release frees the array.
func (m *Memory) Release(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blocks[h]; !ok {
		return fmt.Errorf("unknown storage handle %d", h)
	}
	delete(m.blocks, h)
	return nil
}

// Shape returns the shape of an allocated array.
func (m *Memory) Shape(h Handle) ([]int, error) {
	b, err := m.lookup(h)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), b.shape...), nil
}

// Fill sets every element of the array to v.
func (m *Memory) Fill(h Handle, v float64) error {
	b, err := m.lookup(h)
	if err != nil {
		return err
	}
	for i := range b.data {
		b.data[i] = v
	}
	return nil
}

// Stats summarizes the value distribution of one array.
type Stats struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	Count  int
}

// Summary computes distribution statistics over the whole array.
func (m *Memory) Summary(h Handle) (Stats, error) {
	b, err := m.lookup(h)
	if err != nil {
		return Stats{}, err
	}
	if len(b.data) == 0 {
		return Stats{}, nil
	}
	return Stats{
		Mean:   stat.Mean(b.data, nil),
		StdDev: stat.StdDev(b.data, nil),
		Min:    floats.Min(b.data),
		Max:    floats.Max(b.data),
		Count:  len(b.data),
	}, nil
}

func (m *Memory) lookup(h Handle) (*block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[h]
	if !ok {
		return nil, fmt.Errorf("unknown storage handle %d", h)
	}
	return b, nil
}

func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	s := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= shape[i]
	}
	return strides
}

// walkRuns visits the selection as maximal contiguous runs of the flat
// buffer, so reads and writes move whole rows at a time when the trailing
// dimension is selected densely.
func (b *block) walkRuns(sel slicing.Tuple, visit func(offset, n int) error) error {
	if len(sel) != len(b.shape) {
		return fmt.Errorf("selection rank %d does not match array rank %d", len(sel), len(b.shape))
	}

	last := len(b.shape) - 1
	if last < 0 {
		return visit(0, 1)
	}

	indices := make([][]int, len(sel))
	for i, d := range sel {
		idx, err := selIndices(d, b.shape[i])
		if err != nil {
			return fmt.Errorf("dimension %d: %w", i, err)
		}
		indices[i] = idx
	}

	// The trailing dimension forms one memcpy run when selected with unit
	// stride; otherwise each element is its own run.
	lastIdx := indices[last]
	contiguous := len(lastIdx) > 0 && lastIdx[len(lastIdx)-1]-lastIdx[0] == len(lastIdx)-1

	counters := make([]int, last)
	for {
		base := 0
		for i := 0; i < last; i++ {
			base += indices[i][counters[i]] * b.strides[i]
		}
		if contiguous {
			if err := visit(base+lastIdx[0], len(lastIdx)); err != nil {
				return err
			}
		} else {
			for _, j := range lastIdx {
				if err := visit(base+j, 1); err != nil {
					return err
				}
			}
		}

		i := last - 1
		for ; i >= 0; i-- {
			counters[i]++
			if counters[i] < len(indices[i]) {
				break
			}
			counters[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return nil
}
