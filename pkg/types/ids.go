// ============================================================================
// TSDB Core Identifiers
// ============================================================================
//
// Package: pkg/types
// File: ids.go
// Purpose: Typed identifiers shared across the buffer, WAL, persist and
// compactor packages.
//
// Design Principles:
//   1. Type Safety - custom types prevent primitive obsession (no bare
//      strings/ints passed between namespace, table and partition scopes)
//   2. JSON Serialization - full serialization support for WAL/catalog
//      round-tripping
//
// ============================================================================

package types

import "fmt"

// NamespaceID identifies a logical database (tenant) within the cluster.
type NamespaceID int64

// TableID identifies a table within a namespace.
type TableID int64

// PartitionID identifies a time-bucketed subset of a table's rows.
type PartitionID int64

// ColumnID identifies a column within a table's schema.
type ColumnID uint32

// ParquetFileID identifies a row in the catalog's parquet_file table.
type ParquetFileID int64

// SequenceNumber is per-table, monotonic per writer but not globally
// monotonic across writers (spec §3).
type SequenceNumber uint64

// ObjectStoreID is the UUIDv4 identifying a Parquet blob in object storage.
type ObjectStoreID string

// PartitionKey is the caller-supplied partitioning key (e.g. a day bucket)
// carried on every WriteOperation.
type PartitionKey string

// BatchIdent is a strictly increasing generation counter scoped to one
// partition buffer; it names a persisting snapshot uniquely so that
// mark_persisted can retire snapshots out of acquisition order.
type BatchIdent uint64

func (b BatchIdent) String() string {
	return fmt.Sprintf("batch-%d", uint64(b))
}

// CompactionLevel is the generational tag on a Parquet file.
type CompactionLevel int

const (
	// LevelZero is where every file starts life, written directly by a
	// persist worker.
	LevelZero CompactionLevel = iota
	LevelOne
	LevelTwo
)

func (l CompactionLevel) String() string {
	switch l {
	case LevelZero:
		return "L0"
	case LevelOne:
		return "L1"
	case LevelTwo:
		return "L2"
	default:
		return fmt.Sprintf("L%d", int(l))
	}
}

// Next returns the level one step up the hierarchy. Callers must not call
// Next on LevelTwo; there is nothing beyond it.
func (l CompactionLevel) Next() CompactionLevel {
	return l + 1
}
