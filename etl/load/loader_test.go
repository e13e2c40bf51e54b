package load

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchRanges(t *testing.T) {
	tests := []struct {
		name string
		n    int
		size int
		want [][2]int
	}{
		{"empty", 0, 100, nil},
		{"single partial batch", 10, 100, [][2]int{{0, 10}}},
		{"exact multiple", 200, 100, [][2]int{{0, 100}, {100, 200}}},
		{"trailing partial", 250, 100, [][2]int{{0, 100}, {100, 200}, {200, 250}}},
		{"size one", 3, 1, [][2]int{{0, 1}, {1, 2}, {2, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := batchRanges(tt.n, tt.size)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	assert.Equal(t, "SP", nullable("SP"))
}

func TestBatchErrorMessage(t *testing.T) {
	err := BatchError{Index: 3, Err: assert.AnError}
	assert.Contains(t, err.Error(), "batch 3")
}
