package types

import "time"

// ParquetFile is the catalog's record of one persisted (or compacted) data
// file. Lineage tracks the L0 files a compacted file superseded, which
// integration tests assert on to verify a compaction round rewrote the
// right inputs.
type ParquetFile struct {
	ID             ParquetFileID
	Namespace      NamespaceID
	Table          TableID
	Partition      PartitionID
	ObjectStoreID  ObjectStoreID
	MinTime        int64
	MaxTime        int64
	RowCount       int64
	SizeBytes      int64
	CompactionLevel CompactionLevel
	MaxSequence    SequenceNumber
	CreatedAt      time.Time
	Lineage        []ParquetFileID
}

// Overlaps reports whether the file's time range intersects other's.
func (f ParquetFile) Overlaps(other ParquetFile) bool {
	return f.MinTime <= other.MaxTime && other.MinTime <= f.MaxTime
}
