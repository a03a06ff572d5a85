package pipeline

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxelforge/tomoflow/internal/dataset"
	"github.com/voxelforge/tomoflow/internal/monitoring"
	"github.com/voxelforge/tomoflow/internal/storage"
	"github.com/voxelforge/tomoflow/internal/topology"
)

// Context carries the run state every stage call receives. All dataset
// access flows through the registry it holds; stages keep no dataset state
// of their own.
type Context struct {
	RunID    uuid.UUID
	Registry *dataset.Registry
	Backend  storage.Backend
	Store    *storage.BlockStore
	Coord    topology.Coordinator
	Log      *zap.Logger
	Metrics  *monitoring.Metrics

	// StageIndex is the position of the active stage in the chain,
	// starting at 0 for the first processing stage.
	StageIndex int

	// Iteration counts from 0 within an iterative stage, 0 otherwise.
	Iteration int
}

// In fetches an input dataset by name.
func (c *Context) In(name string) (*dataset.Dataset, bool) {
	return c.Registry.Get(dataset.In, name)
}

// Out fetches an output dataset by name.
func (c *Context) Out(name string) (*dataset.Dataset, bool) {
	return c.Registry.Get(dataset.Out, name)
}
