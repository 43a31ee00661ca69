package buffer

import "github.com/beaverdb/tsdb-core/pkg/types"

// PersistingHandle identifies one frozen snapshot pushed onto a
// partition's persisting list by MarkPersisting. It is opaque and
// comparable; callers thread it through the persist queue and hand it
// back to MarkPersisted once the snapshot has been durably written.
//
// Handles may be retired out of acquisition order — mark_persisted(h2)
// before mark_persisted(h1) is legal — the partition (buffer.go) uses
// the embedded ident, not position, to find the right entry.
type PersistingHandle struct {
	Partition types.PartitionID
	ident     types.BatchIdent
}

// Ident exposes the underlying generation counter, used by persist
// workers only for logging/ordering diagnostics, never for addressing.
func (h PersistingHandle) Ident() types.BatchIdent { return h.ident }
