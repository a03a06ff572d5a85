package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// BlockStore persists whole arrays as zstd-compressed blocks, one file per
// dataset. The layout is a small binary header (rank, extents) followed by
// the row-major float64 payload, all inside the compressed stream. This is a
// plain block dump, not an interchange format.
type BlockStore struct {
	dir   string
	level zstd.EncoderLevel
}

// NewBlockStore creates a store rooted at dir, creating it if needed.
func NewBlockStore(dir string, level int) (*BlockStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create block store dir: %w", err)
	}
	return &BlockStore{dir: dir, level: zstd.EncoderLevelFromZstd(level)}, nil
}

// Dir returns the store's root directory.
func (s *BlockStore) Dir() string { return s.dir }

// BlockName derives the on-disk name for one dataset produced by the stage
// at the given position in the chain.
func (s *BlockStore) BlockName(stageIndex int, stageName, dataset string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%02d_%s_%s.blk.zst", stageIndex, stageName, dataset))
}

// Save writes an array to the named block file.
func (s *BlockStore) Save(path string, shape []int, data []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create block %s: %w", path, err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(s.level))
	if err != nil {
		return fmt.Errorf("failed to open zstd writer: %w", err)
	}

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(len(shape)))
	if _, err := enc.Write(buf); err != nil {
		return closeOnErr(enc, err)
	}
	for _, ext := range shape {
		binary.LittleEndian.PutUint64(buf, uint64(ext))
		if _, err := enc.Write(buf); err != nil {
			return closeOnErr(enc, err)
		}
	}
	payload := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(payload[i*8:], math.Float64bits(v))
	}
	if _, err := enc.Write(payload); err != nil {
		return closeOnErr(enc, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finish block %s: %w", path, err)
	}
	return nil
}

// Load reads an array back from a block file.
func (s *BlockStore) Load(path string) ([]int, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open block %s: %w", path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open zstd reader: %w", err)
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read block %s: %w", path, err)
	}
	if len(raw) < 8 {
		return nil, nil, fmt.Errorf("block %s truncated", path)
	}
	rank := int(binary.LittleEndian.Uint64(raw))
	off := 8
	if len(raw) < off+8*rank {
		return nil, nil, fmt.Errorf("block %s truncated", path)
	}
	shape := make([]int, rank)
	n := 1
	for i := range shape {
		shape[i] = int(binary.LittleEndian.Uint64(raw[off:]))
		off += 8
		n *= shape[i]
	}
	if len(raw) != off+8*n {
		return nil, nil, fmt.Errorf("block %s payload size mismatch", path)
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[off+i*8:]))
	}
	return shape, data, nil
}

func closeOnErr(enc *zstd.Encoder, err error) error {
	enc.Close()
	return fmt.Errorf("failed to write block: %w", err)
}
