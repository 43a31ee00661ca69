package wal

import (
	"context"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

// Segment identifies one closed WAL file, listed in strictly increasing
// age order by SegmentSource.ListSegments.
type Segment struct {
	ID   string
	Size int64
}

// SegmentSource lists, opens and deletes closed WAL segments. The
// concrete adapter (file_segment_source.go) reads ordinary files on
// disk; tests substitute an in-memory fake behind the same interface.
type SegmentSource interface {
	ListSegments(ctx context.Context) ([]Segment, error)
	OpenReader(ctx context.Context, seg Segment) (SegmentReader, error)
	Delete(ctx context.Context, seg Segment) error
}

// SegmentReader yields batches of sequenced ops recorded in one segment,
// in file order. Next returns io.EOF on a clean end of segment, and
// io.ErrUnexpectedEOF when a read stops mid-record — tolerated by Replay
// only on the final segment.
type SegmentReader interface {
	Next() ([]SequencedOp, error)
	Close() error
}

// SequencedOp pairs a per-table sequence number with the write operation
// it orders.
type SequencedOp struct {
	Sequence types.SequenceNumber
	Op       types.WriteOperation
}
