// Package topology abstracts the fixed worker-process pool the pipeline runs
// on. The driver touches exactly two synchronization points through the
// Coordinator interface, so ordering assumptions stay explicit and testable
// without a real multi-process harness.
package topology

// Coordinator supplies worker identity and collective synchronization.
// Implementations come from an external collective-communication layer; the
// bundled Local implementation covers single-process runs and tests.
type Coordinator interface {
	// Rank identifies this worker within the pool, in [0, TotalRanks()).
	Rank() int
	// TotalRanks reports the fixed pool size.
	TotalRanks() int
	// Barrier blocks until every rank has reached the same point.
	Barrier()
}

// IsWriter reports whether this rank is the designated coordinator rank that
// performs one-time metadata writes. By convention it is the highest rank.
func IsWriter(c Coordinator) bool {
	return c.Rank() == c.TotalRanks()-1
}

// Local is a single-process coordinator: one rank, no-op barrier.
type Local struct{}

// Rank returns 0.
func (Local) Rank() int { return 0 }

// TotalRanks returns 1.
func (Local) TotalRanks() int { return 1 }

// Barrier is a no-op for a pool of one.
func (Local) Barrier() {}

// Static describes one rank of an externally launched pool whose barrier is
// provided by the launcher.
type Static struct {
	WorkerRank int
	PoolSize   int
	Sync       func()
}

// Rank returns the configured rank.
func (s Static) Rank() int { return s.WorkerRank }

// TotalRanks returns the configured pool size.
func (s Static) TotalRanks() int { return s.PoolSize }

// Barrier invokes the launcher-provided synchronization, if any.
func (s Static) Barrier() {
	if s.Sync != nil {
		s.Sync()
	}
}
