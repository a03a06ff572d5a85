package pattern

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternDims(t *testing.T) {
	p := New("sinogram", []int{1, 2}, []int{0})
	assert.Equal(t, []int{1, 2}, p.CoreDims())
	assert.Equal(t, []int{0}, p.SliceDims())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
		rank    int
		wantErr bool
	}{
		{"valid 3d", New("projection", []int{1, 2}, []int{0}), 3, false},
		{"valid all core", New("volume", []int{0, 1}, nil), 2, false},
		{"no core dims", New("bad", nil, []int{0, 1}), 2, true},
		{"dim out of range", New("bad", []int{0}, []int{3}), 2, true},
		{"negative dim", New("bad", []int{-1}, []int{0}), 2, true},
		{"rank mismatch", New("bad", []int{0}, []int{1}), 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pattern.Validate(tt.rank)
			if tt.wantErr {
				require.Error(t, err)
				var ipe *InvalidPatternError
				assert.True(t, errors.As(err, &ipe))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "core", Core.String())
	assert.Equal(t, "slice", Slice.String())
}
