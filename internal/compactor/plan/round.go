// Package plan holds the tagged-variant round/range/op types shared by
// the classifier and the compaction driver, split out as a leaf package
// so that internal/compactor/classify can depend on it without creating
// an import cycle back through the top-level internal/compactor package.
package plan

import "github.com/beaverdb/tsdb-core/pkg/types"

// OpKind names the four shapes a branch's work can take.
type OpKind int

const (
	// CompactSameLevel merges overlapping files without changing their
	// level — the common case for repeated L0 overlap.
	CompactSameLevel OpKind = iota
	// CompactToNext merges files and promotes the result to Level+1.
	CompactToNext
	// SplitOverlaps rewrites an overlapping set into disjoint,
	// time-bounded outputs at the same level.
	SplitOverlaps
	// SplitManySmall rewrites a run of small same-level files into
	// fewer, larger ones by time boundary rather than by merge.
	SplitManySmall
)

func (k OpKind) String() string {
	switch k {
	case CompactSameLevel:
		return "compact_same_level"
	case CompactToNext:
		return "compact_to_next"
	case SplitOverlaps:
		return "split_overlaps"
	case SplitManySmall:
		return "split_many_small"
	default:
		return "unknown"
	}
}

// Op is a branch's unit of work: what kind, and at what source level.
type Op struct {
	Kind  OpKind
	Level types.CompactionLevel
}

// TargetLevel is the level a branch running this op aims to produce.
// CompactToNext is the only kind that advances a level; every other
// kind keeps files at the level they started on.
func (o Op) TargetLevel() types.CompactionLevel {
	if o.Kind == CompactToNext {
		return o.Level.Next()
	}
	return o.Level
}

// Branch is one compaction unit: a bounded subset (spec: at most 200
// files) of a range's files, classified and executed independently.
type Branch struct {
	Op    Op
	Files []types.ParquetFile
}

// Range is a disjoint time interval within a round. A round partitions
// a partition's files into Ranges so that no two ranges' files overlap
// in time, letting branches in different ranges execute without
// contending on the same rows.
type Range struct {
	Min, Max int64
	// Files is the range's current live input files, as handed to it by
	// the round splitter; Branches is derived from this by the planner.
	Files []types.ParquetFile
	// Cap bounds how many files one branch in this range may carry
	// (spec glossary: "Branch ... ≤200 files").
	Cap int
	Op  Op
	Branches []Branch
	// FilesForLater accumulates this range's branch outputs across one
	// round; the driver unions these into next round's file set.
	FilesForLater []types.ParquetFile
}

// RoundInfo is what the planner hands the driver for one iteration:
// the set of disjoint ranges to work on this round.
type RoundInfo struct {
	Ranges []Range
}

// Done reports whether a round has nothing left to do: every range has
// no branches and nothing new was emitted.
func (r RoundInfo) Done() bool {
	for _, rg := range r.Ranges {
		if len(rg.Branches) > 0 || len(rg.FilesForLater) > 0 {
			return false
		}
	}
	return true
}
