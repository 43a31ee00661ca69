package compactor

import (
	"context"

	"github.com/beaverdb/tsdb-core/internal/catalog"
	"github.com/beaverdb/tsdb-core/pkg/types"
)

// Committer performs the atomic round commit: soft-delete the input
// files, upgrade the upgrade set to targetLevel, and insert the newly
// produced files, all in one catalog transaction.
type Committer struct {
	catalog catalog.Catalog
}

// NewCommitter builds a Committer over cat.
func NewCommitter(cat catalog.Catalog) *Committer {
	return &Committer{catalog: cat}
}

// Commit delegates to the catalog's atomic Commit and returns the ids
// assigned to the newly created files.
func (c *Committer) Commit(ctx context.Context, partition types.PartitionID, deleteIDs, upgradeIDs []types.ParquetFileID, targetLevel types.CompactionLevel, creates []catalog.CreateFileParams) ([]types.ParquetFileID, error) {
	return c.catalog.Commit(ctx, catalog.CommitParams{
		Partition:   partition,
		Delete:      deleteIDs,
		Upgrade:     upgradeIDs,
		TargetLevel: targetLevel,
		Create:      creates,
	})
}
