package plan

import "github.com/beaverdb/tsdb-core/pkg/types"

// manySmallFilesThreshold is the file count, at the range's start level,
// above which the planner prefers promoting the merge result a level
// rather than re-merging in place — the "many small files" branch of
// classification is really a classify.Reason, but the planner has to
// pick an Op before classify ever runs, so it uses this as a coarse
// proxy.
const manySmallFilesThreshold = 8

// Planner turns the disjoint ranges produced by round-splitting into a
// RoundInfo: one Op and a set of size-bounded Branches per range.
type Planner interface {
	Plan(ranges []Range) RoundInfo
}

// defaultPlanner is the only Planner this module ships. It never calls
// the classifier directly — that happens per-branch once the driver
// executes a branch — it only decides what kind of work a range's
// branches should attempt and how to chunk the range's files into
// branches no larger than Cap.
type defaultPlanner struct{}

// NewDefaultPlanner constructs the standard planner.
func NewDefaultPlanner() Planner { return defaultPlanner{} }

func (defaultPlanner) Plan(ranges []Range) RoundInfo {
	out := make([]Range, len(ranges))
	for i, r := range ranges {
		r.Op = chooseOp(r.Files)
		r.Branches = chunkBranches(r.Files, r.Op, r.Cap)
		out[i] = r
	}
	return RoundInfo{Ranges: out}
}

// chooseOp picks the start level (the lowest level present in files)
// and decides whether this range's branches should compact in place or
// promote a level, based on how many files sit at that start level.
func chooseOp(files []types.ParquetFile) Op {
	if len(files) == 0 {
		return Op{Kind: CompactSameLevel, Level: types.LevelZero}
	}

	start := files[0].CompactionLevel
	count := 0
	for _, f := range files {
		if f.CompactionLevel < start {
			start = f.CompactionLevel
		}
	}
	for _, f := range files {
		if f.CompactionLevel == start {
			count++
		}
	}

	if start == types.LevelZero && count > manySmallFilesThreshold {
		return Op{Kind: CompactToNext, Level: start}
	}
	return Op{Kind: CompactSameLevel, Level: start}
}

// chunkBranches groups files into branches of at most cap files each.
// cap <= 0 means unbounded (one branch).
func chunkBranches(files []types.ParquetFile, op Op, cap int) []Branch {
	if len(files) == 0 {
		return nil
	}
	if cap <= 0 {
		return []Branch{{Op: op, Files: files}}
	}

	var branches []Branch
	for start := 0; start < len(files); start += cap {
		end := start + cap
		if end > len(files) {
			end = len(files)
		}
		branches = append(branches, Branch{Op: op, Files: files[start:end]})
	}
	return branches
}
