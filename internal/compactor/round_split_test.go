package compactor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

func TestSplitRangesMergesOverlapping(t *testing.T) {
	files := []types.ParquetFile{
		{ID: 1, MinTime: 0, MaxTime: 20},
		{ID: 2, MinTime: 10, MaxTime: 30},
		{ID: 3, MinTime: 100, MaxTime: 110},
	}
	ranges := SplitRanges(files, 200)
	if assert.Len(t, ranges, 2) {
		assert.Len(t, ranges[0].Files, 2)
		assert.Equal(t, int64(0), ranges[0].Min)
		assert.Equal(t, int64(30), ranges[0].Max)
		assert.Len(t, ranges[1].Files, 1)
	}
}

func TestSplitRangesTransitiveChain(t *testing.T) {
	files := []types.ParquetFile{
		{ID: 1, MinTime: 0, MaxTime: 10},
		{ID: 2, MinTime: 10, MaxTime: 20},
		{ID: 3, MinTime: 20, MaxTime: 30},
	}
	ranges := SplitRanges(files, 200)
	assert.Len(t, ranges, 1, "chained overlaps merge into a single range")
	assert.Len(t, ranges[0].Files, 3)
}

func TestSplitRangesEmpty(t *testing.T) {
	assert.Nil(t, SplitRanges(nil, 200))
}
