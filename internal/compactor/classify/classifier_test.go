package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beaverdb/tsdb-core/internal/compactor/plan"
	"github.com/beaverdb/tsdb-core/pkg/types"
)

func pf(id types.ParquetFileID, level types.CompactionLevel, min, max, size int64) types.ParquetFile {
	return types.ParquetFile{ID: id, CompactionLevel: level, MinTime: min, MaxTime: max, SizeBytes: size}
}

func TestClassifyKeepsHigherLevelFiles(t *testing.T) {
	files := []types.ParquetFile{
		pf(1, types.LevelTwo, 0, 10, 100),
		pf(2, types.LevelZero, 0, 10, 100),
	}
	op := plan.Op{Kind: plan.CompactSameLevel, Level: types.LevelZero}
	c := Classify(op, files, 1000)

	assert.Contains(t, c.Keep, files[0])
}

func TestClassifyKeepsNonOverlappingStartLevelFile(t *testing.T) {
	files := []types.ParquetFile{
		pf(1, types.LevelZero, 0, 10, 100),
		pf(2, types.LevelZero, 100, 110, 100),
	}
	op := plan.Op{Kind: plan.CompactSameLevel, Level: types.LevelZero}
	c := Classify(op, files, 1000)

	assert.Len(t, c.Keep, 2, "the two L0 files form the target set and neither overlaps the other")
	assert.Nil(t, c.Action)
}

func TestClassifyUpgradesIsolatedOversizedFile(t *testing.T) {
	files := []types.ParquetFile{
		pf(1, types.LevelZero, 0, 10, 10_000),
	}
	op := plan.Op{Kind: plan.CompactSameLevel, Level: types.LevelZero}
	c := Classify(op, files, 1000)

	assert.Equal(t, files, c.Upgrade)
	assert.Empty(t, c.Keep)
}

func TestClassifyCompactsOverlappingStartLevelFiles(t *testing.T) {
	files := []types.ParquetFile{
		pf(1, types.LevelZero, 0, 20, 100),
		pf(2, types.LevelZero, 10, 30, 100),
	}
	op := plan.Op{Kind: plan.CompactSameLevel, Level: types.LevelZero}
	c := Classify(op, files, 1000)

	if assert.NotNil(t, c.Action) {
		assert.Equal(t, ActionCompact, c.Action.Kind)
		assert.ElementsMatch(t, files, c.Action.Files)
	}
}

func TestClassifyReasonTotalSizeThreshold(t *testing.T) {
	files := []types.ParquetFile{
		pf(1, types.LevelZero, 0, 20, 600),
		pf(2, types.LevelZero, 10, 30, 600),
	}
	op := plan.Op{Kind: plan.CompactSameLevel, Level: types.LevelZero}
	c := Classify(op, files, 1000)

	require := assert.New(t)
	require.NotNil(c.Action)
	require.Equal(TotalSizeThreshold, c.Action.Reason)
}

func TestActionEmpty(t *testing.T) {
	var a *Action
	assert.True(t, a.Empty())
	assert.True(t, (&Action{}).Empty())
	assert.False(t, (&Action{Files: []types.ParquetFile{pf(1, 0, 0, 1, 1)}}).Empty())
}
