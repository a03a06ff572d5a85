// Package pipeline drives a chain of processing stages over shared
// N-dimensional datasets on a fixed pool of worker ranks.
//
// Every rank executes the same chain in lock-step. For each stage the driver
// asks the stage for its access patterns, enumerates and groups the frame
// index space of the primary input, takes this rank's contiguous share of
// the grouped batch list, and delegates execution. Between stages the
// dataset registry merges produced outputs into the next stage's inputs;
// after the last stage it finalizes remove/keep/replace decisions and
// restores the post-loading checkpoint so the next run starts clean.
//
// Determinism is load-bearing: the batch ordering and the per-rank partition
// are pure functions of the inputs, so disjoint ranks write disjoint index
// ranges of shared storage without locking. The only blocking operations are
// the two collective barriers around the coordinator rank's one-time
// metadata commit.
//
// Failures here are configuration bugs, not transient faults: slicing and
// distribution are deterministic arithmetic, so the driver aborts the run on
// the first error instead of retrying.
package pipeline
