// Package objectstore wraps the Parquet blob store behind a small
// interface (Put/Get/Delete by namespace/table/partition/object id) so
// catalog and compactor code never imports a storage SDK directly.
package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

// Path derives the canonical object path for a Parquet blob from its
// namespace/table/partition/object-store-id tuple.
func Path(ns types.NamespaceID, table types.TableID, partition types.PartitionID, id types.ObjectStoreID) string {
	return fmt.Sprintf("%d/%d/%d/%s.parquet", ns, table, partition, id)
}

// Store is the object-store collaborator contract. internal/objectstore/minio_store.go
// is the one concrete adapter; internal/objectstore/memory_store.go is
// the in-memory fake every unit test uses.
type Store interface {
	Put(ctx context.Context, path string, r io.Reader, size int64) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}
