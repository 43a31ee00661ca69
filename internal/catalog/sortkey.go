package catalog

import "github.com/beaverdb/tsdb-core/pkg/types"

// ExtendSortKey decides whether a persisting snapshot that carries
// tagColumns (the tag columns present in its rows, in schema order)
// requires extending current's sort key, and if so, computes the
// candidate key.
//
// Grounded on the persist worker's "compact" step in
// ingester/src/persist/worker.rs, which determines whether newly seen
// tag columns force a sort-key update before the upload can proceed.
// Any tag column present in the new data but absent from current's
// columns is appended, in the order it first appears, after current's
// existing columns.
func ExtendSortKey(current types.SortKey, tagColumns []types.ColumnID) (candidate types.SortKey, extended bool) {
	if current.IsDeferred {
		return types.ProvidedSortKey(append([]types.ColumnID{}, tagColumns...)), len(tagColumns) > 0
	}

	present := make(map[types.ColumnID]bool, len(current.Columns))
	for _, c := range current.Columns {
		present[c] = true
	}

	extra := make([]types.ColumnID, 0)
	for _, c := range tagColumns {
		if !present[c] {
			extra = append(extra, c)
			present[c] = true
		}
	}

	if len(extra) == 0 {
		return current, false
	}

	cols := make([]types.ColumnID, 0, len(current.Columns)+len(extra))
	cols = append(cols, current.Columns...)
	cols = append(cols, extra...)
	return types.ProvidedSortKey(cols), true
}
