package buffer

import (
	"sync"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

// NamespaceCounter tracks, per namespace, how many of its partitions
// currently hold buffered or persisting rows. buffer_write increments it
// on the empty→non-empty transition; mark_persisted decrements it on the
// reverse transition. A namespace-wide cap bounds how many partitions may
// be simultaneously non-empty, surfaced to callers as types.ErrLimitExceeded.
type NamespaceCounter struct {
	mu      sync.Mutex
	counts  map[types.NamespaceID]int
	maxOpen int
}

// NewNamespaceCounter builds a counter with the given per-namespace cap.
// maxOpen <= 0 means unbounded.
func NewNamespaceCounter(maxOpen int) *NamespaceCounter {
	return &NamespaceCounter{
		counts:  make(map[types.NamespaceID]int),
		maxOpen: maxOpen,
	}
}

// TryIncrement attempts the empty→non-empty transition for ns. It
// returns false, without mutating state, if the namespace is already at
// its cap.
func (c *NamespaceCounter) TryIncrement(ns types.NamespaceID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxOpen > 0 && c.counts[ns] >= c.maxOpen {
		return false
	}
	c.counts[ns]++
	return true
}

// Decrement performs the non-empty→empty transition for ns.
func (c *NamespaceCounter) Decrement(ns types.NamespaceID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.counts[ns] > 0 {
		c.counts[ns]--
	}
	if c.counts[ns] == 0 {
		delete(c.counts, ns)
	}
}

// Count reports the current open-partition count for ns (test/diagnostic
// use only).
func (c *NamespaceCounter) Count(ns types.NamespaceID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[ns]
}
