package types

// SortKey orders a partition's rows for dedup and Parquet row-group
// pruning. Columns are tried left to right; time is always the final
// tiebreaker column, implicit and not listed.
//
// A partition's sort key starts Deferred (the catalog has never computed
// one) and becomes Provided the first time a persist worker derives one
// from the buffered schema. Once Provided, later writers extend it
// in place only when the new write introduces tag columns absent from the
// existing key (see catalog.ExtendSortKey) — narrowing a key is never
// allowed.
type SortKey struct {
	Columns   []ColumnID
	IsDeferred bool
}

// DeferredSortKey is the catalog value for a partition whose sort key has
// never been computed.
func DeferredSortKey() SortKey {
	return SortKey{IsDeferred: true}
}

// ProvidedSortKey wraps a concrete column ordering.
func ProvidedSortKey(cols []ColumnID) SortKey {
	return SortKey{Columns: cols}
}

// Extends reports whether candidate is a valid extension of k: k's columns
// must appear, in the same relative order, as a prefix-compatible subset
// of candidate's columns.
func (k SortKey) Extends(candidate SortKey) bool {
	if k.IsDeferred {
		return true
	}
	if len(candidate.Columns) < len(k.Columns) {
		return false
	}
	for i, col := range k.Columns {
		if candidate.Columns[i] != col {
			return false
		}
	}
	return true
}

// Equal reports whether two sort keys have identical column lists and
// deferred-ness.
func (k SortKey) Equal(other SortKey) bool {
	if k.IsDeferred != other.IsDeferred {
		return false
	}
	if len(k.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range k.Columns {
		if other.Columns[i] != c {
			return false
		}
	}
	return true
}
