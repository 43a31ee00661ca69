package persist

import (
	"sort"

	"github.com/beaverdb/tsdb-core/internal/catalog"
	"github.com/beaverdb/tsdb-core/pkg/types"
)

// CompactResult is one persisting snapshot paired with the sort key it
// is uploaded under.
type CompactResult struct {
	Batch    types.ColumnBatch
	SortKey  types.SortKey
	Extended bool // SortKey differs from the key Compact was called with
}

// Compact determines whether snapshot's columns require extending key.
// It returns snapshot's rows unchanged: they are not sorted or
// deduplicated under the sort key.
//
// ColumnBatch carries no tag/field distinction, so every non-time column present in
// snapshot is treated as a candidate sort-key column, mirroring the
// persist worker's "compact" step in ingester/src/persist/worker.rs that
// inspects a batch's schema for newly seen tag columns.
func Compact(snapshot types.ColumnBatch, key types.SortKey) CompactResult {
	cols := snapshot.Columns()
	tagColumns := make([]types.ColumnID, 0, len(cols))
	for _, c := range cols {
		if c == types.TimeColumn {
			continue
		}
		tagColumns = append(tagColumns, c)
	}
	sort.Slice(tagColumns, func(i, j int) bool { return tagColumns[i] < tagColumns[j] })

	candidate, extended := catalog.ExtendSortKey(key, tagColumns)
	return CompactResult{Batch: snapshot, SortKey: candidate, Extended: extended}
}
