package buffer

import (
	"sync"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

// Registry owns one Buffer per partition, creating it on first touch.
// It is the collaborator the WAL replay sink and the persist worker pool
// both hold: the former routes writes by partition, the latter looks up
// the buffer a persist Job's handle belongs to.
type Registry struct {
	mu      sync.Mutex
	counter *NamespaceCounter
	bufs    map[types.PartitionID]*Buffer
	ns      map[types.PartitionID]types.NamespaceID
}

// NewRegistry builds an empty registry sharing one NamespaceCounter
// across every partition it creates buffers for.
func NewRegistry(counter *NamespaceCounter) *Registry {
	return &Registry{
		counter: counter,
		bufs:    make(map[types.PartitionID]*Buffer),
		ns:      make(map[types.PartitionID]types.NamespaceID),
	}
}

// GetOrCreate returns the buffer for partition, creating it under
// namespace on first touch. Subsequent calls ignore namespace.
func (r *Registry) GetOrCreate(partition types.PartitionID, namespace types.NamespaceID) *Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.bufs[partition]; ok {
		return b
	}
	b := New(partition, namespace, r.counter)
	r.bufs[partition] = b
	r.ns[partition] = namespace
	return b
}

// Buffer implements persist.BufferSource: a lookup-only accessor that
// never creates a partition it hasn't seen.
func (r *Registry) Buffer(partition types.PartitionID) (*Buffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bufs[partition]
	return b, ok
}

// Partitions returns every partition the registry currently knows
// about, for the compaction driver's scheduling loop.
func (r *Registry) Partitions() []types.PartitionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.PartitionID, 0, len(r.bufs))
	for p := range r.bufs {
		out = append(out, p)
	}
	return out
}
