// ============================================================================
// TSDB Core Column Batch — in-memory row representation
// ============================================================================
//
// Package: pkg/types
// File: columnbatch.go
// Purpose: A minimal columnar batch abstraction standing in for an
// Arrow/DataFusion RecordBatch. The buffer, persist and compactor packages
// only ever need row counts, timestamp statistics, projection and
// concatenation — so that is all this type exposes.
//
// Sort order / dedup:
//   Rows carry a "time" column plus whatever tag/field columns the schema
//   defines. Upsert semantics are: among rows sharing the same sort key,
//   the row appended last (i.e. originating from the newest write) wins.
//   Concatenation order (persisting snapshots oldest-first, then the live
//   buffer) is what makes last-write-wins correct without an explicit
//   timestamp comparison.
//
// ============================================================================

package types

// TimeColumn is the reserved column id carrying the row timestamp
// (nanoseconds since epoch), mirroring the fixed "time" column every
// table in the system carries.
const TimeColumn ColumnID = 0

// TimestampStats summarizes the time column of a ColumnBatch.
type TimestampStats struct {
	Min int64
	Max int64
}

// ColumnBatch is an immutable, append-only columnar row set.
//
// The zero value is a valid empty batch.
type ColumnBatch struct {
	rows    int
	columns map[ColumnID][]any
	stats   TimestampStats
	hasRows bool
}

// NewColumnBatch builds a batch from column values. All slices in columns
// must have equal length; that length becomes Rows(). The time column
// (TimeColumn) must be present and contain int64 values, or stats will be
// left zero.
func NewColumnBatch(columns map[ColumnID][]any) ColumnBatch {
	rows := 0
	for _, vals := range columns {
		rows = len(vals)
		break
	}

	b := ColumnBatch{rows: rows, columns: columns}
	if times, ok := columns[TimeColumn]; ok && len(times) > 0 {
		min, max := asInt64(times[0]), asInt64(times[0])
		for _, v := range times[1:] {
			t := asInt64(v)
			if t < min {
				min = t
			}
			if t > max {
				max = t
			}
		}
		b.stats = TimestampStats{Min: min, Max: max}
		b.hasRows = true
	}
	return b
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	default:
		return 0
	}
}

// Rows returns the row count, unaffected by any projection.
func (b ColumnBatch) Rows() int { return b.rows }

// Empty reports whether the batch holds zero rows.
func (b ColumnBatch) Empty() bool { return b.rows == 0 }

// TimestampStats returns the min/max of the time column. ok is false for
// an empty batch or one that never carried a time column.
func (b ColumnBatch) TimestampStats() (stats TimestampStats, ok bool) {
	return b.stats, b.hasRows
}

// Columns reports the set of column ids present in the batch.
func (b ColumnBatch) Columns() []ColumnID {
	cols := make([]ColumnID, 0, len(b.columns))
	for id := range b.columns {
		cols = append(cols, id)
	}
	return cols
}

// Column returns the raw values for a column, or nil if absent.
func (b ColumnBatch) Column(id ColumnID) []any {
	return b.columns[id]
}

// Project returns a new batch containing only the requested columns, plus
// the time column (needed for timestamp stats regardless of projection —
// spec §4.1: "timestamp min/max reflects the pre-projection data"). Row
// count and stats are unaffected by projection. A nil cols means no
// projection: every column is retained.
func (b ColumnBatch) Project(cols []ColumnID) ColumnBatch {
	if cols == nil {
		return b
	}
	projected := make(map[ColumnID][]any, len(cols))
	want := make(map[ColumnID]bool, len(cols)+1)
	want[TimeColumn] = true
	for _, c := range cols {
		want[c] = true
	}
	for id, vals := range b.columns {
		if want[id] {
			projected[id] = vals
		}
	}
	return ColumnBatch{
		rows:    b.rows,
		columns: projected,
		stats:   b.stats,
		hasRows: b.hasRows,
	}
}

// Append concatenates other after b, row-major (b's rows first). Used by
// the partition buffer to present persisting snapshots oldest-first
// followed by the live buffer.
func (b ColumnBatch) Append(other ColumnBatch) ColumnBatch {
	if b.rows == 0 {
		return other
	}
	if other.rows == 0 {
		return b
	}

	cols := make(map[ColumnID][]any)
	seen := make(map[ColumnID]bool)
	for id := range b.columns {
		seen[id] = true
	}
	for id := range other.columns {
		seen[id] = true
	}
	for id := range seen {
		left := b.columns[id]
		right := other.columns[id]
		merged := make([]any, 0, len(left)+len(right))
		merged = append(merged, left...)
		merged = append(merged, right...)
		cols[id] = merged
	}

	stats := b.stats
	if other.hasRows {
		if !b.hasRows || other.stats.Min < stats.Min {
			stats.Min = other.stats.Min
		}
		if !b.hasRows || other.stats.Max > stats.Max {
			stats.Max = other.stats.Max
		}
	}

	return ColumnBatch{
		rows:    b.rows + other.rows,
		columns: cols,
		stats:   stats,
		hasRows: b.hasRows || other.hasRows,
	}
}

// SplitAt partitions b's rows into len(points)+1 buckets by the time
// column: bucket i holds rows with time < points[i] (and >= points[i-1]
// for i>0); the last bucket holds everything at or past the final
// point. points must be sorted ascending. Used by the compactor's split
// action to rewrite one overlapping file into several disjoint ones.
func (b ColumnBatch) SplitAt(points []int64) []ColumnBatch {
	buckets := make([]map[ColumnID][]any, len(points)+1)
	for i := range buckets {
		buckets[i] = make(map[ColumnID][]any)
	}

	times := b.columns[TimeColumn]
	for row := 0; row < b.rows; row++ {
		t := asInt64(times[row])
		idx := len(points)
		for i, p := range points {
			if t < p {
				idx = i
				break
			}
		}
		for id, vals := range b.columns {
			buckets[idx][id] = append(buckets[idx][id], vals[row])
		}
	}

	out := make([]ColumnBatch, len(buckets))
	for i, cols := range buckets {
		out[i] = NewColumnBatch(cols)
	}
	return out
}
