package persist

import (
	"context"
	"time"

	"github.com/beaverdb/tsdb-core/internal/catalog"
	"github.com/beaverdb/tsdb-core/pkg/types"
)

// casRetryBackoff is the fixed back-off between CAS attempts that fail
// with a transient catalog query error. Chosen shorter than the WAL
// gate's 500ms interval since a CAS retry only re-runs one catalog
// round-trip, not a whole segment's ops.
const casRetryBackoff = 250 * time.Millisecond

// CASOutcome is the result of one sort-key negotiation attempt.
type CASOutcome struct {
	// Key is either the installed candidate or, on a genuine mismatch,
	// the observed key the worker must restart Compact with.
	Key types.SortKey
	// Restart is true when the caller must re-run Compact using Key and
	// try the whole Upload→CAS cycle again.
	Restart bool
}

// NegotiateSortKey installs candidate as partition's sort key via CAS,
// retrying query-transient failures with fixed back-off indefinitely.
//
// A mismatch whose observed key equals candidate name-for-name is an
// idempotent concurrent update — treated as success, no restart. Any
// other mismatch surfaces as Restart with the observed key, so the
// caller can recompact against the key that actually won.
func NegotiateSortKey(ctx context.Context, cat catalog.Catalog, partition types.PartitionID, oldKey, candidate types.SortKey) (CASOutcome, error) {
	for {
		result, err := cat.CASSortKey(ctx, partition, oldKey, candidate)
		if err != nil {
			select {
			case <-ctx.Done():
				return CASOutcome{}, ctx.Err()
			case <-time.After(casRetryBackoff):
			}
			continue
		}

		if result.Installed {
			return CASOutcome{Key: candidate}, nil
		}

		if result.Observed.Equal(candidate) {
			return CASOutcome{Key: candidate}, nil
		}

		return CASOutcome{Key: result.Observed, Restart: true}, nil
	}
}
