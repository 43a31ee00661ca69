package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

func file(id types.ParquetFileID, level types.CompactionLevel) types.ParquetFile {
	return types.ParquetFile{ID: id, CompactionLevel: level}
}

func TestChooseOpPromotesManySmallFiles(t *testing.T) {
	files := make([]types.ParquetFile, manySmallFilesThreshold+1)
	for i := range files {
		files[i] = file(types.ParquetFileID(i+1), types.LevelZero)
	}
	op := chooseOp(files)
	assert.Equal(t, CompactToNext, op.Kind)
	assert.Equal(t, types.LevelZero, op.Level)
	assert.Equal(t, types.LevelOne, op.TargetLevel())
}

func TestChooseOpDefaultsToSameLevel(t *testing.T) {
	op := chooseOp([]types.ParquetFile{file(1, types.LevelOne), file(2, types.LevelOne)})
	assert.Equal(t, CompactSameLevel, op.Kind)
	assert.Equal(t, types.LevelOne, op.TargetLevel())
}

func TestChunkBranchesRespectsCap(t *testing.T) {
	files := []types.ParquetFile{file(1, 0), file(2, 0), file(3, 0)}
	branches := chunkBranches(files, Op{Kind: CompactSameLevel}, 2)
	if assert.Len(t, branches, 2) {
		assert.Len(t, branches[0].Files, 2)
		assert.Len(t, branches[1].Files, 1)
	}
}

func TestDefaultPlannerBuildsRoundInfo(t *testing.T) {
	p := NewDefaultPlanner()
	ranges := []Range{{Min: 0, Max: 10, Cap: 2, Files: []types.ParquetFile{file(1, 0), file(2, 0), file(3, 0)}}}
	info := p.Plan(ranges)
	if assert.Len(t, info.Ranges, 1) {
		assert.Len(t, info.Ranges[0].Branches, 2)
		assert.False(t, info.Done(), "a range with branches is not done")
	}
}

func TestRoundInfoDoneWhenNoBranchesOrOutput(t *testing.T) {
	info := RoundInfo{Ranges: []Range{{Min: 0, Max: 10}}}
	assert.True(t, info.Done())
}
