package persist

import (
	"bytes"
	"context"

	"github.com/google/uuid"

	"github.com/beaverdb/tsdb-core/internal/objectstore"
	"github.com/beaverdb/tsdb-core/internal/parquetio"
	"github.com/beaverdb/tsdb-core/pkg/types"
)

// Uploader writes a compacted batch as one Parquet object under a fresh
// UUIDv4 object-store id and puts it to the shared store.
type Uploader struct {
	store objectstore.Store
}

// NewUploader wires an Uploader to a concrete Store, injected rather
// than constructed internally.
func NewUploader(store objectstore.Store) *Uploader {
	return &Uploader{store: store}
}

// Upload encodes batch as Parquet and puts it at the canonical path for
// (ns, table, partition). Returns the assigned object id and byte size.
func (u *Uploader) Upload(ctx context.Context, ns types.NamespaceID, table types.TableID, partition types.PartitionID, batch types.ColumnBatch) (types.ObjectStoreID, int64, error) {
	data, err := parquetio.WriteBatch(batch)
	if err != nil {
		return "", 0, types.NewError(types.ErrObjectStore, "encode parquet", err).WithPartition(partition)
	}

	id := types.ObjectStoreID(uuid.NewString())
	path := objectstore.Path(ns, table, partition, id)
	if err := u.store.Put(ctx, path, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", 0, types.NewError(types.ErrObjectStore, "upload parquet object", err).WithPartition(partition)
	}

	return id, int64(len(data)), nil
}
