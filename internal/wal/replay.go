// Package wal implements the replay side of the write-ahead log: reading
// closed segments in age order, reconstructing write operations, and
// driving them into the partition buffer tree before deleting each
// segment. Grounded on a prior iteration's Replay method,
// generalized from a single JSON file to the spec's multi-segment model
// with truncated-tail tolerance.
package wal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

var log = slog.Default()

// gatePollInterval is the fixed back-off between ingest-state gate
// checks, matching the nominal 500ms the source calls for.
const gatePollInterval = 500 * time.Millisecond

// Sink is where decoded write operations land — the partition buffer
// tree sits behind this interface so replay never imports internal/buffer
// directly.
type Sink interface {
	Apply(ctx context.Context, op types.WriteOperation) error

	// FlushPartitions enqueues every partition touched since the last
	// flush onto the persist queue. Called once per segment that
	// produced at least one applied op, before that segment is deleted.
	FlushPartitions(ctx context.Context) error
}

// Metrics receives the counters Replay increments. internal/metrics.Collector
// implements this.
type Metrics interface {
	ReplayFileStarted()
	ReplayFileFinished(result, reason string)
	ReplayOp(outcome string)
}

// Engine drives replay of every closed segment a SegmentSource lists.
type Engine struct {
	source  SegmentSource
	gate    IngestStateGate
	metrics Metrics
}

// NewEngine constructs a replay engine. gate and metrics must not be nil;
// pass AlwaysReady{} and a no-op Metrics implementation where they are
// not needed.
func NewEngine(source SegmentSource, gate IngestStateGate, metrics Metrics) *Engine {
	return &Engine{source: source, gate: gate, metrics: metrics}
}

// Replay reads every segment in age order and applies it to sink,
// returning the highest sequence number successfully applied (or
// observed in a truncated final-segment tail).
func (e *Engine) Replay(ctx context.Context, sink Sink) (maxSequence types.SequenceNumber, err error) {
	segments, err := e.source.ListSegments(ctx)
	if err != nil {
		return maxSequence, err
	}

	for i, seg := range segments {
		isLast := i == len(segments)-1
		segMax, observed, truncated, ferr := e.replaySegment(ctx, seg, isLast, sink)
		if segMax > maxSequence {
			maxSequence = segMax
		}
		if ferr != nil {
			return maxSequence, ferr
		}

		if truncated {
			e.metrics.ReplayFileFinished("error", "truncated")
		} else if !observed {
			e.metrics.ReplayFileFinished("success", "empty")
		}

		if observed {
			if ferr := sink.FlushPartitions(ctx); ferr != nil {
				return maxSequence, ferr
			}
			if !truncated {
				e.metrics.ReplayFileFinished("success", "")
			}
		}

		if derr := e.source.Delete(ctx, seg); derr != nil {
			log.Warn("wal replay: segment delete failed", "segment", seg.ID, "error", derr)
		}
	}

	return maxSequence, nil
}

// replaySegment applies one segment's ops to sink. observed reports
// whether any op was actually applied (vs. an empty segment); truncated
// reports whether the final-segment unexpected-EOF tolerance fired.
func (e *Engine) replaySegment(ctx context.Context, seg Segment, isLast bool, sink Sink) (segMax types.SequenceNumber, observed, truncated bool, err error) {
	e.metrics.ReplayFileStarted()

	reader, err := e.source.OpenReader(ctx, seg)
	if err != nil {
		return 0, false, false, err
	}
	defer reader.Close()

	for {
		batch, rerr := reader.Next()
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			if isLast && errors.Is(rerr, io.ErrUnexpectedEOF) {
				truncated = true
				break
			}
			return segMax, observed, truncated, types.NewError(
				types.ErrCorruption, "wal segment read failed", rerr,
			).WithFile(0)
		}

		for _, sop := range batch {
			if len(sop.Op.Tables) == 0 {
				e.metrics.ReplayOp("skipped_empty")
				continue
			}

			if err := e.pollGate(ctx); err != nil {
				return segMax, observed, truncated, err
			}

			if err := sink.Apply(ctx, sop.Op); err != nil {
				e.metrics.ReplayOp("error")
				return segMax, observed, truncated, err
			}

			observed = true
			if sop.Sequence > segMax {
				segMax = sop.Sequence
			}
			e.metrics.ReplayOp("applied")
		}
	}

	return segMax, observed, truncated, nil
}

// pollGate blocks (with a fixed back-off) until the ingest-state gate
// reports ready, treating ErrDiskFull as non-blocking.
func (e *Engine) pollGate(ctx context.Context) error {
	for {
		err := e.gate.Check(ctx)
		if err == nil || errors.Is(err, ErrDiskFull) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(gatePollInterval):
		}
	}
}
