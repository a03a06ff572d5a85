// Package dataset models named, shaped N-dimensional arrays flowing through
// the plugin chain, and the registry that owns their lifecycle between
// stages.
package dataset

import (
	"fmt"

	"github.com/voxelforge/tomoflow/internal/pattern"
	"github.com/voxelforge/tomoflow/internal/slicing"
	"github.com/voxelforge/tomoflow/internal/storage"
)

// Kind tags the slicing behavior of a dataset. A single dispatch table keyed
// on Kind replaces per-type slicing overrides.
type Kind int

const (
	// Raw is ordinary acquired data.
	Raw Kind = iota
	// Replicated repeats a smaller base buffer along the leading dimension.
	Replicated
	// Volume is reconstructed volume data.
	Volume
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Raw:
		return "raw"
	case Replicated:
		return "replicated"
	case Volume:
		return "volume"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Preview restricts a dataset to a sub-range per dimension for quick
// passes. An empty preview selects the full extent.
type Preview struct {
	Ranges [][2]int // per-dim [start, stop); nil means full extent
}

// Empty reports whether the preview selects the full extent.
func (p Preview) Empty() bool { return len(p.Ranges) == 0 }

// Dataset is a named, shaped array with its declared access patterns.
// The shape is immutable once storage is attached; the active pattern may
// change between stages but must be one of the declared ones.
type Dataset struct {
	name     string
	shape    []int
	dtype    storage.DType
	kind     Kind
	patterns map[string]pattern.Pattern
	current  string

	// Remove marks the dataset for discard at the next merge/finalize.
	Remove bool

	preview Preview
	reps    int // >1 when replicated

	handle    storage.Handle
	hasHandle bool
}

// New creates a dataset. Storage is attached separately by the creating
// stage.
func New(name string, shape []int, dtype storage.DType, kind Kind) *Dataset {
	return &Dataset{
		name:     name,
		shape:    append([]int(nil), shape...),
		dtype:    dtype,
		kind:     kind,
		patterns: make(map[string]pattern.Pattern),
		reps:     1,
	}
}

// Name returns the dataset's current name.
func (d *Dataset) Name() string { return d.name }

// Rename changes the externally visible name. Used only by the iterative
// finalization path; ordinary stages never rename datasets.
func (d *Dataset) Rename(name string) { d.name = name }

// Shape returns the declared shape.
func (d *Dataset) Shape() []int { return append([]int(nil), d.shape...) }

// DType returns the element type.
func (d *Dataset) DType() storage.DType { return d.dtype }

// Kind returns the slicing kind tag.
func (d *Dataset) Kind() Kind { return d.kind }

// AddPattern declares a pattern, validating it against the dataset rank.
func (d *Dataset) AddPattern(p pattern.Pattern) error {
	if err := p.Validate(len(d.shape)); err != nil {
		return err
	}
	d.patterns[p.Name] = p
	return nil
}

// SetCurrentPattern activates a previously declared pattern.
func (d *Dataset) SetCurrentPattern(name string) error {
	if _, ok := d.patterns[name]; !ok {
		return &pattern.InvalidPatternError{
			Pattern: name,
			Reason:  fmt.Sprintf("not declared on dataset %q", d.name),
		}
	}
	d.current = name
	return nil
}

// CurrentPattern returns the active pattern, if any.
func (d *Dataset) CurrentPattern() (pattern.Pattern, bool) {
	p, ok := d.patterns[d.current]
	return p, ok
}

// SetPreview restricts the dataset to a sub-range selection.
func (d *Dataset) SetPreview(p Preview) { d.preview = p }

// ClearPreview restores the full extent.
func (d *Dataset) ClearPreview() { d.preview = Preview{} }

// GetPreview returns the active preview selection.
func (d *Dataset) GetPreview() Preview { return d.preview }

// Replicate marks the dataset as repeating its base buffer n times along the
// leading dimension. Only Replicated datasets may replicate.
func (d *Dataset) Replicate(n int) error {
	if d.kind != Replicated {
		return fmt.Errorf("dataset %q has kind %s, cannot replicate", d.name, d.kind)
	}
	if n < 1 {
		return fmt.Errorf("replication count %d < 1", n)
	}
	d.reps = n
	return nil
}

// ResetReplication restores the base, non-replicated form.
func (d *Dataset) ResetReplication() { d.reps = 1 }

// Replicated reports whether the buffer is currently in replicated form.
func (d *Dataset) Replicated() bool { return d.reps > 1 }

// AttachStorage binds the backing array. The shape becomes immutable from
// this point.
func (d *Dataset) AttachStorage(h storage.Handle) {
	d.handle = h
	d.hasHandle = true
}

// Storage returns the backing handle, if attached.
func (d *Dataset) Storage() (storage.Handle, bool) { return d.handle, d.hasHandle }

// effectiveShape is the shape the slicing engine sees: previews narrow
// extents, replication widens the leading one.
func (d *Dataset) effectiveShape() []int {
	shape := d.Shape()
	if !d.preview.Empty() {
		for i, r := range d.preview.Ranges {
			if i >= len(shape) {
				break
			}
			if n := r[1] - r[0]; n > 0 && n < shape[i] {
				shape[i] = n
			}
		}
	}
	if d.reps > 1 && len(shape) > 0 {
		shape[0] *= d.reps
	}
	return shape
}

// sliceStrategy enumerates and groups the work units of one dataset kind.
type sliceStrategy func(d *Dataset, p pattern.Pattern, maxBatch int) ([]slicing.Batch, error)

var strategies = map[Kind]sliceStrategy{
	Raw:        slicePlain,
	Volume:     slicePlain,
	Replicated: slicePlain, // replication is folded into effectiveShape
}

// GroupedSlices computes the ordered, grouped batch list for the dataset
// under its active pattern.
func (d *Dataset) GroupedSlices(maxBatch int) ([]slicing.Batch, error) {
	p, ok := d.CurrentPattern()
	if !ok {
		return nil, &pattern.InvalidPatternError{
			Pattern: "(none)",
			Reason:  fmt.Sprintf("dataset %q has no active pattern", d.name),
		}
	}
	strategy, ok := strategies[d.kind]
	if !ok {
		return nil, fmt.Errorf("no slicing strategy for kind %s", d.kind)
	}
	return strategy(d, p, maxBatch)
}

func slicePlain(d *Dataset, p pattern.Pattern, maxBatch int) ([]slicing.Batch, error) {
	tuples, err := slicing.Enumerate(d.effectiveShape(), p)
	if err != nil {
		return nil, err
	}
	return slicing.Group(tuples, maxBatch)
}
