package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"

	"github.com/voxelforge/tomoflow/internal/pattern"
)

// PatternRecord is the serialized form of one resolved pattern.
type PatternRecord struct {
	Name  string `json:"name"`
	Core  []int  `json:"core"`
	Slice []int  `json:"slice"`
}

// StageRecord describes one stage of the finalized chain.
type StageRecord struct {
	Name     string                   `json:"name"`
	MaxBatch int                      `json:"max_batch"`
	In       map[string]PatternRecord `json:"in_patterns"`
	Out      map[string]PatternRecord `json:"out_patterns"`
}

// Metadata is the serializable description of the ordered stage list and
// their resolved patterns. The designated coordinator rank writes it once
// per run, between the two barriers; every rank may read it afterwards.
type Metadata struct {
	RunID     string        `json:"run_id"`
	CreatedAt time.Time     `json:"created_at"`
	Stages    []StageRecord `json:"stages"`
}

func recordPattern(p pattern.Pattern) PatternRecord {
	return PatternRecord{Name: p.Name, Core: p.CoreDims(), Slice: p.SliceDims()}
}

func recordStage(s Stage) StageRecord {
	pats := s.Patterns()
	rec := StageRecord{
		Name:     s.Name(),
		MaxBatch: s.MaxBatchSize(),
		In:       make(map[string]PatternRecord, len(pats.In)),
		Out:      make(map[string]PatternRecord, len(pats.Out)),
	}
	for name, p := range pats.In {
		rec.In[name] = recordPattern(p)
	}
	for name, p := range pats.Out {
		rec.Out[name] = recordPattern(p)
	}
	return rec
}

// Save writes the metadata as indented JSON.
func (m *Metadata) Save(path string) error {
	data, err := sonic.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pipeline metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write pipeline metadata: %w", err)
	}
	return nil
}

// LoadMetadata reads metadata written by the coordinator rank.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline metadata: %w", err)
	}
	var m Metadata
	if err := sonic.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline metadata: %w", err)
	}
	return &m, nil
}
