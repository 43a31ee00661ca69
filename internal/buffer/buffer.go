// Package buffer implements the per-partition write buffer: the mutable
// staging area that accepts streaming writes, freezes them into
// persisting snapshots on demand, and answers queries by concatenating
// persisting snapshots (oldest first) with the live buffer.
//
// Grounded on a prior iteration's job manager's hybrid "single source
// of truth plus secondary index" design and a worker pool's
// self-locking struct: a Buffer is its own monitor, every exported method
// takes its mutex for the whole of its (non-suspending) critical section.
package buffer

import (
	"log/slog"
	"sync"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

var log = slog.Default()

// persistingEntry is one frozen snapshot awaiting durable write,
// identified by its batch ident rather than its position in the list so
// it can be retired out of order.
type persistingEntry struct {
	ident     types.BatchIdent
	snapshot  types.ColumnBatch
	sequences []types.SequenceNumber
}

// live is the active, still-mutable accumulator.
type live struct {
	batch     types.ColumnBatch
	sequences []types.SequenceNumber
}

func (l live) empty() bool { return l.batch.Empty() }

// Buffer is the write buffer for a single partition.
type Buffer struct {
	mu sync.Mutex

	partition types.PartitionID
	namespace types.NamespaceID
	counter   *NamespaceCounter

	live       live
	persisting []persistingEntry
	nextIdent  types.BatchIdent

	startedCount   uint64
	completedCount uint64
	isEmpty        bool

	sortKey types.SortKey
}

// New constructs an empty buffer for one partition, wired to the shared
// per-namespace counter that tracks how many of the namespace's
// partitions are currently non-empty.
func New(partition types.PartitionID, namespace types.NamespaceID, counter *NamespaceCounter) *Buffer {
	return &Buffer{
		partition: partition,
		namespace: namespace,
		counter:   counter,
		isEmpty:   true,
		sortKey:   types.DeferredSortKey(),
	}
}

// BufferWrite appends batch (tagged with sequence) to the live
// accumulator. Accepts out-of-order sequence numbers — ordering among
// writes is not enforced here, only row content accumulates.
//
// On the empty→non-empty transition this increments the namespace
// counter; if that would exceed the namespace's cap, the write is
// rejected with types.ErrLimitExceeded and the buffer is left unchanged.
func (b *Buffer) BufferWrite(batch types.ColumnBatch, sequence types.SequenceNumber) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasEmpty := b.live.empty() && len(b.persisting) == 0
	if wasEmpty {
		if !b.counter.TryIncrement(b.namespace) {
			return types.NewError(types.ErrLimitExceeded, "namespace non-empty-partition cap exceeded", nil).
				WithPartition(b.partition)
		}
	}

	b.live.batch = b.live.batch.Append(batch)
	b.live.sequences = append(b.live.sequences, sequence)
	b.isEmpty = false
	return nil
}

// GetQueryData concatenates every persisting snapshot (oldest first)
// followed by the live buffer, projected to cols. Returns ok=false iff
// the partition is empty. Row count and timestamp stats always reflect
// the pre-projection data (spec requirement), so Rows()/TimestampStats()
// on the returned batch ignore the projection passed here.
func (b *Buffer) GetQueryData(cols []types.ColumnID) (snapshot types.ColumnBatch, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.live.empty() && len(b.persisting) == 0 {
		return types.ColumnBatch{}, false
	}

	var full types.ColumnBatch
	for _, p := range b.persisting {
		full = full.Append(p.snapshot)
	}
	full = full.Append(b.live.batch)

	return full.Project(cols), true
}

// MarkPersisting freezes the live buffer into a new persisting snapshot
// and returns a handle to it. Returns ok=false if the live buffer was
// already empty — there is nothing to freeze.
//
// From the swap onward this call cannot fail: losing the snapshot here
// would silently drop durable data.
func (b *Buffer) MarkPersisting() (handle PersistingHandle, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.live.empty() {
		return PersistingHandle{}, false
	}

	ident := b.nextIdent
	b.nextIdent++

	b.persisting = append(b.persisting, persistingEntry{
		ident:     ident,
		snapshot:  b.live.batch,
		sequences: b.live.sequences,
	})
	b.live = live{}
	b.startedCount++

	return PersistingHandle{Partition: b.partition, ident: ident}, true
}

// PersistingSnapshot returns the frozen batch and its sequence numbers
// for the entry identified by handle, without retiring it. A persist
// worker calls this to read the data it is about to compact and upload;
// ok is false if handle has already been retired by MarkPersisted.
func (b *Buffer) PersistingSnapshot(handle PersistingHandle) (snapshot types.ColumnBatch, sequences []types.SequenceNumber, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.persisting {
		if e.ident == handle.ident {
			return e.snapshot, e.sequences, true
		}
	}
	return types.ColumnBatch{}, nil, false
}

// MarkPersisted retires the persisting snapshot identified by handle and
// returns the set of sequence numbers it carried. Legal to call out of
// acquisition order; ordering among the remaining live entries is
// preserved.
//
// If this empties the partition, the namespace counter is decremented
// and IsEmpty flips to true.
func (b *Buffer) MarkPersisted(handle PersistingHandle) []types.SequenceNumber {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := -1
	for i, e := range b.persisting {
		if e.ident == handle.ident {
			idx = i
			break
		}
	}
	if idx == -1 {
		log.Warn("mark_persisted: unknown handle", "partition", b.partition, "ident", handle.ident)
		return nil
	}

	seqs := b.persisting[idx].sequences
	b.persisting = append(b.persisting[:idx], b.persisting[idx+1:]...)
	b.completedCount++

	if b.live.empty() && len(b.persisting) == 0 {
		b.isEmpty = true
		b.counter.Decrement(b.namespace)
	}

	return seqs
}

// UpdateSortKey installs a newly negotiated sort key as the partition's
// current provided key.
func (b *Buffer) UpdateSortKey(key types.SortKey) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sortKey = key
}

// SortKey returns the partition's current sort-key state.
func (b *Buffer) SortKey() types.SortKey {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sortKey
}

// IsEmpty reports the cached empty/non-empty state.
func (b *Buffer) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isEmpty
}

// Counts returns the started/completed persistence counters, for
// metrics and tests.
func (b *Buffer) Counts() (started, completed uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startedCount, b.completedCount
}
