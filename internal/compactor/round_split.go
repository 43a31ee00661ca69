// Package compactor wires the file classifier, planner, scratchpad,
// catalog committer and gossip broadcaster into the per-partition
// compaction driver (Driver.Run in driver.go).
package compactor

import (
	"sort"

	"github.com/beaverdb/tsdb-core/internal/compactor/plan"
	"github.com/beaverdb/tsdb-core/pkg/types"
)

// SplitRanges partitions a partition's live files into disjoint time
// Ranges: two files land in the same range iff their time spans
// intersect, directly or transitively through a chain of overlaps.
// Ranges never overlap in time, so branches in different ranges can
// compact without contending on the same rows.
//
// Named for original_source/compactor/src/components/round_split/
// mod.rs, whose RoundSplit trait the distilled spec folds into "the
// planner produces ranges" without naming the step; the trait itself is
// a one-method stub (Split(files, op, partition) -> (now, later)), so
// the merge-by-overlap algorithm below is this module's own.
func SplitRanges(files []types.ParquetFile, capPerBranch int) []plan.Range {
	if len(files) == 0 {
		return nil
	}

	sorted := make([]types.ParquetFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinTime < sorted[j].MinTime })

	var ranges []plan.Range
	cur := plan.Range{Min: sorted[0].MinTime, Max: sorted[0].MaxTime, Cap: capPerBranch}
	cur.Files = append(cur.Files, sorted[0])

	for _, f := range sorted[1:] {
		if f.MinTime <= cur.Max {
			cur.Files = append(cur.Files, f)
			if f.MaxTime > cur.Max {
				cur.Max = f.MaxTime
			}
			continue
		}
		ranges = append(ranges, cur)
		cur = plan.Range{Min: f.MinTime, Max: f.MaxTime, Cap: capPerBranch}
		cur.Files = append(cur.Files, f)
	}
	ranges = append(ranges, cur)

	return ranges
}
