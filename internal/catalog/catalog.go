// Package catalog defines the metadata store contract consumed by the
// persist worker pool and the compaction driver: file registration,
// sort-key CAS, atomic round commits, and the skip-list for partitions
// that repeatedly fail to compact.
package catalog

import (
	"context"
	"errors"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

// ErrQueryTransient signals a retryable catalog failure (connection
// reset, deadlock, timeout) distinct from a sort-key mismatch.
var ErrQueryTransient = errors.New("catalog: transient query error")

// ErrNotFound is returned when fetching a partition/file that does not
// exist in the catalog.
var ErrNotFound = errors.New("catalog: not found")

// CreateFileParams carries everything needed to register a newly
// uploaded Parquet file.
type CreateFileParams struct {
	Namespace      types.NamespaceID
	Table          types.TableID
	Partition      types.PartitionID
	ObjectStoreID  types.ObjectStoreID
	MinTime        int64
	MaxTime        int64
	RowCount       int64
	SizeBytes      int64
	CompactionLevel types.CompactionLevel
	MaxSequence    types.SequenceNumber
}

// CASResult is the outcome of a sort-key compare-and-swap.
type CASResult struct {
	// Installed is true when this call's new key was installed.
	Installed bool
	// Mismatch is true when the stored key differed from OldNames/OldIDs
	// at call time; Observed carries the key actually stored.
	Mismatch bool
	Observed types.SortKey
}

// CommitParams describes one atomic round commit: soft-delete Delete,
// relevel Upgrade to TargetLevel, and insert Create.
type CommitParams struct {
	Partition   types.PartitionID
	Delete      []types.ParquetFileID
	Upgrade     []types.ParquetFileID
	TargetLevel types.CompactionLevel
	Create      []CreateFileParams
}

// Catalog is the metadata store contract. internal/catalog/memory.go is
// the in-memory fake every unit test uses; internal/catalog/postgres.go
// is the one concrete pgx-backed adapter.
type Catalog interface {
	// CreateParquetFile registers a newly uploaded file and returns its
	// assigned id. A newly created file must never be pre-marked for
	// deletion.
	CreateParquetFile(ctx context.Context, params CreateFileParams) (types.ParquetFileID, error)

	// CASSortKey attempts to replace a partition's sort key. oldKey is
	// the key the caller last observed; newKey is what it wants to
	// install. A mismatch is not an error: it is reported via
	// CASResult.Mismatch with the actually-stored key in Observed.
	CASSortKey(ctx context.Context, partition types.PartitionID, oldKey, newKey types.SortKey) (CASResult, error)

	// Commit performs one atomic round commit (delete + upgrade +
	// create) and returns the ids assigned to newly created files.
	Commit(ctx context.Context, params CommitParams) ([]types.ParquetFileID, error)

	// FetchFiles returns every live (non-soft-deleted) file for a
	// partition.
	FetchFiles(ctx context.Context, partition types.PartitionID) ([]types.ParquetFile, error)

	// SortKey returns the partition's current sort key.
	SortKey(ctx context.Context, partition types.PartitionID) (types.SortKey, error)

	// SkipCompaction records a partition as skip-listed, with a reason,
	// for operator visibility via the skipped_compactions surface.
	SkipCompaction(ctx context.Context, partition types.PartitionID, reason string) error
}
