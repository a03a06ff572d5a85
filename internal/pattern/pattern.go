// Package pattern describes how the axes of an N-dimensional dataset are
// classified for slicing: core dimensions stay whole inside every unit of
// work, slice dimensions may be divided across work units and worker ranks.
package pattern

import (
	"fmt"
	"sort"
)

// Role classifies one dimension of a dataset under a pattern.
type Role int

const (
	// Core dimensions are always included whole in each unit of work.
	Core Role = iota
	// Slice dimensions may be divided across work units and ranks.
	Slice
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case Core:
		return "core"
	case Slice:
		return "slice"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Pattern maps dimension indices to roles under a single name.
// Well-known names follow tomography conventions ("projection", "sinogram",
// "volume_xz"), but any name is accepted.
type Pattern struct {
	Name  string
	Roles map[int]Role
}

// New creates a pattern from explicit core and slice dimension lists.
func New(name string, coreDims, sliceDims []int) Pattern {
	roles := make(map[int]Role, len(coreDims)+len(sliceDims))
	for _, d := range coreDims {
		roles[d] = Core
	}
	for _, d := range sliceDims {
		roles[d] = Slice
	}
	return Pattern{Name: name, Roles: roles}
}

// CoreDims returns the core dimension indices in ascending order.
func (p Pattern) CoreDims() []int {
	return p.dims(Core)
}

// SliceDims returns the slice dimension indices in ascending order.
func (p Pattern) SliceDims() []int {
	return p.dims(Slice)
}

func (p Pattern) dims(role Role) []int {
	var out []int
	for d, r := range p.Roles {
		if r == role {
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out
}

// Validate checks the pattern against a dataset rank. Every referenced
// dimension must fall inside [0, rank), every dimension of the dataset must
// be assigned exactly one role, and at least one core dimension must exist
// (a pattern with no core dimensions describes no data per work unit).
func (p Pattern) Validate(rank int) error {
	if len(p.Roles) != rank {
		return &InvalidPatternError{
			Pattern: p.Name,
			Reason:  fmt.Sprintf("covers %d dimensions, dataset has rank %d", len(p.Roles), rank),
		}
	}
	core := 0
	for d, r := range p.Roles {
		if d < 0 || d >= rank {
			return &InvalidPatternError{
				Pattern: p.Name,
				Reason:  fmt.Sprintf("dimension %d outside [0, %d)", d, rank),
			}
		}
		if r == Core {
			core++
		}
	}
	if core == 0 {
		return &InvalidPatternError{Pattern: p.Name, Reason: "no core dimensions"}
	}
	return nil
}

// InvalidPatternError reports a pattern that cannot drive the slicing engine.
type InvalidPatternError struct {
	Pattern string
	Reason  string
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %s", e.Pattern, e.Reason)
}
