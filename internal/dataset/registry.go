package dataset

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/voxelforge/tomoflow/internal/storage"
)

// Role distinguishes the two dataset maps the registry owns.
type Role string

const (
	// In is the input set consumed by the active stage.
	In Role = "in"
	// Out is the output set produced by the active stage.
	Out Role = "out"
)

// DuplicateDatasetError reports a stage declaring two outputs under one name.
type DuplicateDatasetError struct {
	Name string
	Role Role
}

func (e *DuplicateDatasetError) Error() string {
	return fmt.Sprintf("dataset %q already declared in %s set", e.Name, e.Role)
}

// Ref is a stable handle into the registry's append-only dataset arena.
// Checkpoints save sets of refs instead of deep copies.
type Ref int

// Transition records the remove/keep/replace decisions computed when the
// chain finalizes. Created once, consumed immediately, then discarded.
type Transition struct {
	Remove  []string
	Keep    []string
	Replace []string
}

type altPair struct {
	visible string
	a, b    Ref
}

// Registry owns the current input and output dataset maps for one worker
// rank. Each rank holds an independent copy, so no locking is needed; the
// driver is the only mutator.
type Registry struct {
	log *zap.Logger

	arena []*Dataset
	in    map[string]Ref
	out   map[string]Ref

	checkpoint map[string]Ref
	pairs      []altPair
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		log: log,
		in:  make(map[string]Ref),
		out: make(map[string]Ref),
	}
}

// Create registers a new dataset in the given role. Reusing a name within
// the output set of one stage is a fatal configuration error.
func (r *Registry) Create(role Role, name string, shape []int, dtype storage.DType, kind Kind) (*Dataset, error) {
	m := r.roleMap(role)
	if _, exists := m[name]; exists {
		return nil, &DuplicateDatasetError{Name: name, Role: role}
	}
	d := New(name, shape, dtype, kind)
	ref := Ref(len(r.arena))
	r.arena = append(r.arena, d)
	m[name] = ref
	r.log.Debug("dataset created",
		zap.String("name", name),
		zap.String("role", string(role)),
		zap.Ints("shape", shape),
		zap.String("kind", kind.String()))
	return d, nil
}

// Get looks up a dataset by role and name.
func (r *Registry) Get(role Role, name string) (*Dataset, bool) {
	ref, ok := r.roleMap(role)[name]
	if !ok {
		return nil, false
	}
	return r.arena[ref], true
}

// Names lists the dataset names in a role, sorted for deterministic
// iteration across ranks.
func (r *Registry) Names(role Role) []string {
	m := r.roleMap(role)
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Datasets returns the datasets of a role in name order.
func (r *Registry) Datasets(role Role) []*Dataset {
	names := r.Names(role)
	out := make([]*Dataset, len(names))
	for i, name := range names {
		out[i] = r.arena[r.roleMap(role)[name]]
	}
	return out
}

// Checkpoint captures the current input set. Restore returns to it after the
// full chain finishes so a second pipeline invocation starts clean.
func (r *Registry) Checkpoint() {
	r.checkpoint = make(map[string]Ref, len(r.in))
	for name, ref := range r.in {
		r.checkpoint[name] = ref
	}
	r.log.Debug("registry checkpoint taken", zap.Int("datasets", len(r.checkpoint)))
}

// Restore resets the input set to the checkpoint and clears the output set.
func (r *Registry) Restore() {
	if r.checkpoint == nil {
		return
	}
	r.in = make(map[string]Ref, len(r.checkpoint))
	for name, ref := range r.checkpoint {
		r.in[name] = ref
	}
	r.out = make(map[string]Ref)
	r.pairs = nil
}

// Merge moves every produced output not marked for removal into the input
// set under its name, overwriting prior inputs, then clears the output set.
// Outputs marked Remove never enter the input set. Merging an empty output
// set is a no-op.
func (r *Registry) Merge() {
	for name, ref := range r.out {
		d := r.arena[ref]
		if d.Remove {
			r.log.Debug("dataset dropped at merge", zap.String("name", name))
			continue
		}
		r.in[name] = ref
	}
	r.out = make(map[string]Ref)

	// Obsolete iteration buffers may still sit in the input set.
	for name, ref := range r.in {
		if r.arena[ref].Remove {
			delete(r.in, name)
		}
	}
}

// RegisterAlternating pairs two datasets as alternating read/write buffers
// for an iterative stage. The visible name is the one callers use to refer
// to the pair; the resolution at the final iteration keeps it on the
// surviving buffer.
func (r *Registry) RegisterAlternating(visible string, a, b *Dataset) error {
	ra, ok := r.refOf(a)
	if !ok {
		return fmt.Errorf("dataset %q not registered", a.Name())
	}
	rb, ok := r.refOf(b)
	if !ok {
		return fmt.Errorf("dataset %q not registered", b.Name())
	}
	r.pairs = append(r.pairs, altPair{visible: visible, a: ra, b: rb})
	return nil
}

// CloneName derives the registry name of the i-th iteration clone of a
// dataset.
func CloneName(name string, i int) string {
	return fmt.Sprintf("%s_itr_clone%d", name, i)
}

// AlternatingBuffers returns the pair registered under the visible name as
// (read, write): read is the member currently enrolled as an input, write
// the one enrolled as an output.
func (r *Registry) AlternatingBuffers(visible string) (read, write *Dataset, err error) {
	for _, p := range r.pairs {
		if p.visible != visible {
			continue
		}
		a, b := r.arena[p.a], r.arena[p.b]
		switch {
		case r.enrolledOut(p.a) && r.enrolledOut(p.b):
			// Before the first swap both buffers sit in the output set;
			// the first member is the initial write target.
			return b, a, nil
		case r.enrolledOut(p.a):
			return b, a, nil
		case r.enrolledOut(p.b):
			return a, b, nil
		default:
			return nil, nil, fmt.Errorf("alternating pair %q has no output member", visible)
		}
	}
	return nil, nil, fmt.Errorf("no alternating pair registered as %q", visible)
}

// SwapAlternating exchanges the in/out enrollment of every alternating
// pair, turning each iteration's write buffer into the next one's read
// buffer.
func (r *Registry) SwapAlternating() {
	for _, p := range r.pairs {
		a, b := r.arena[p.a], r.arena[p.b]
		// When both buffers are still enrolled as outputs (before the
		// first swap), the first member was the initial write target.
		outRef, inRef := p.b, p.a
		outDS, inDS := b, a
		if r.enrolledOut(p.a) {
			outRef, inRef = p.a, p.b
			outDS, inDS = a, b
		}
		delete(r.out, outDS.Name())
		delete(r.in, inDS.Name())
		r.in[outDS.Name()] = outRef
		r.out[inDS.Name()] = inRef
	}
}

// ResolveAlternating is called after the final iteration. For each pair, the
// buffer currently enrolled in the output set is the real continuing output:
// it keeps the visible name, the other is marked for removal.
func (r *Registry) ResolveAlternating() {
	for _, p := range r.pairs {
		a, b := r.arena[p.a], r.arena[p.b]
		final, obsolete := a, b
		if !r.enrolledOut(p.a) && r.enrolledOut(p.b) {
			final, obsolete = b, a
		}
		obsolete.Remove = true
		if final.Name() != p.visible {
			delete(r.out, final.Name())
			final.Rename(p.visible)
			if ref, ok := r.refOf(final); ok {
				r.out[p.visible] = ref
			}
		}
		r.log.Debug("alternating pair resolved",
			zap.String("visible", p.visible),
			zap.String("kept", final.Name()),
			zap.String("removed", obsolete.Name()))
	}
	r.pairs = nil
}

// Finalize computes the remove/keep/replace record for the last stage,
// deletes datasets not kept, resets replicated inputs to base form, and
// files the survivors into the input set with previews cleared so a restart
// sees the full extent.
func (r *Registry) Finalize(backend storage.Backend) Transition {
	var t Transition

	for _, name := range r.Names(Out) {
		d := r.arena[r.out[name]]
		if d.Remove {
			t.Remove = append(t.Remove, name)
		} else {
			t.Keep = append(t.Keep, name)
		}
		if _, replaced := r.in[name]; replaced {
			t.Replace = append(t.Replace, name)
		}
	}

	for _, d := range r.Datasets(In) {
		if d.Replicated() {
			d.ResetReplication()
		}
	}

	for _, name := range t.Remove {
		ref := r.out[name]
		if h, ok := r.arena[ref].Storage(); ok && backend != nil {
			if err := backend.Release(h); err != nil {
				r.log.Warn("failed to release storage", zap.String("name", name), zap.Error(err))
			}
		}
		delete(r.out, name)
	}

	for name, ref := range r.out {
		d := r.arena[ref]
		d.ClearPreview()
		r.in[name] = ref
	}
	r.out = make(map[string]Ref)

	for name, ref := range r.in {
		if r.arena[ref].Remove {
			delete(r.in, name)
		}
	}

	r.log.Info("registry finalized",
		zap.Strings("keep", t.Keep),
		zap.Strings("remove", t.Remove),
		zap.Strings("replace", t.Replace))
	return t
}

func (r *Registry) roleMap(role Role) map[string]Ref {
	if role == Out {
		return r.out
	}
	return r.in
}

func (r *Registry) refOf(d *Dataset) (Ref, bool) {
	for i, e := range r.arena {
		if e == d {
			return Ref(i), true
		}
	}
	return 0, false
}

func (r *Registry) enrolledOut(ref Ref) bool {
	for _, e := range r.out {
		if e == ref {
			return true
		}
	}
	return false
}
