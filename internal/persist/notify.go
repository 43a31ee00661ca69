package persist

import (
	"context"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

// PersistedEvent describes one file that has just been durably
// registered in the catalog.
type PersistedEvent struct {
	Namespace types.NamespaceID
	Table     types.TableID
	Partition types.PartitionID
	File      types.ParquetFileID
	RowCount  int64
}

// CompletionObserver is notified after a persist job's catalog insert
// succeeds. A best-effort hook — the gossip hub is the one concrete
// implementation in this repository.
type CompletionObserver interface {
	ObservePersisted(ctx context.Context, event PersistedEvent) error
}

// Notify calls obs, logging (never propagating) a failure: the catalog
// insert has already committed by this point, so a downstream observer
// failure must not roll it back.
func Notify(ctx context.Context, obs CompletionObserver, event PersistedEvent) {
	if obs == nil {
		return
	}
	if err := obs.ObservePersisted(ctx, event); err != nil {
		log.Warn("persist: completion observer failed", "partition", event.Partition, "file", event.File, "error", err)
	}
}
