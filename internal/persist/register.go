package persist

import (
	"context"
	"time"

	"github.com/beaverdb/tsdb-core/internal/catalog"
	"github.com/beaverdb/tsdb-core/pkg/types"
)

// registerRetryBackoff mirrors casRetryBackoff: register is assumed
// transient-failure-only and retries forever.
const registerRetryBackoff = 250 * time.Millisecond

// Register creates the catalog row for a newly uploaded file, retrying
// indefinitely on error.
func Register(ctx context.Context, cat catalog.Catalog, params catalog.CreateFileParams) (types.ParquetFileID, error) {
	for {
		id, err := cat.CreateParquetFile(ctx, params)
		if err == nil {
			return id, nil
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(registerRetryBackoff):
		}
	}
}
