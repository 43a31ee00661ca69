package persist

import (
	"time"

	"github.com/beaverdb/tsdb-core/internal/buffer"
	"github.com/beaverdb/tsdb-core/pkg/types"
)

// Job names one persisting snapshot ready for a worker to compact,
// upload and register. The partition id is the fingerprint: spec
// guarantees only one persist worker runs against a given partition at a
// time, so a worker never needs to coordinate with a sibling over the
// same Job.
type Job struct {
	Namespace types.NamespaceID
	Table     types.TableID
	Partition types.PartitionID
	Handle    buffer.PersistingHandle

	// EnqueuedAt is stamped by Queue.Submit/SubmitAffinity and used to
	// derive the queue-wait histogram.
	EnqueuedAt time.Time
}
