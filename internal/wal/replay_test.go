package wal

import (
	"context"
	"io"
	"testing"

	"github.com/beaverdb/tsdb-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader replays a fixed sequence of (batch, error) results, one per
// Next() call.
type fakeReader struct {
	steps []readerStep
	i     int
}

type readerStep struct {
	batch []SequencedOp
	err   error
}

func (r *fakeReader) Next() ([]SequencedOp, error) {
	if r.i >= len(r.steps) {
		return nil, io.EOF
	}
	s := r.steps[r.i]
	r.i++
	return s.batch, s.err
}

func (r *fakeReader) Close() error { return nil }

type fakeSource struct {
	segments []Segment
	readers  map[string]*fakeReader
	deleted  []string
}

func (s *fakeSource) ListSegments(ctx context.Context) ([]Segment, error) {
	return s.segments, nil
}

func (s *fakeSource) OpenReader(ctx context.Context, seg Segment) (SegmentReader, error) {
	return s.readers[seg.ID], nil
}

func (s *fakeSource) Delete(ctx context.Context, seg Segment) error {
	s.deleted = append(s.deleted, seg.ID)
	return nil
}

type fakeSink struct {
	applied []types.WriteOperation
	flushes int
}

func (s *fakeSink) Apply(ctx context.Context, op types.WriteOperation) error {
	s.applied = append(s.applied, op)
	return nil
}

func (s *fakeSink) FlushPartitions(ctx context.Context) error {
	s.flushes++
	return nil
}

type fakeMetrics struct {
	started  int
	finished []string // "result/reason"
	ops      []string
}

func (m *fakeMetrics) ReplayFileStarted() { m.started++ }
func (m *fakeMetrics) ReplayFileFinished(result, reason string) {
	m.finished = append(m.finished, result+"/"+reason)
}
func (m *fakeMetrics) ReplayOp(outcome string) { m.ops = append(m.ops, outcome) }

func opWithTable(seq types.SequenceNumber) SequencedOp {
	return SequencedOp{
		Sequence: seq,
		Op: types.WriteOperation{
			Sequence: seq,
			Tables: []types.TableWrite{
				{TableID: 1, Batch: types.NewColumnBatch(map[types.ColumnID][]any{types.TimeColumn: {int64(seq)}})},
			},
		},
	}
}

// TestTruncatedWALTail is the literal spec scenario: 3 segments, the
// last yields one good op then an unexpected-EOF. Replay returns
// max_sequence = last good, deletes all 3 segments, and records exactly
// one files_finished{result=error,reason=truncated}.
func TestTruncatedWALTail(t *testing.T) {
	source := &fakeSource{
		segments: []Segment{{ID: "0000000001.wal"}, {ID: "0000000002.wal"}, {ID: "0000000003.wal"}},
		readers: map[string]*fakeReader{
			"0000000001.wal": {steps: []readerStep{
				{batch: []SequencedOp{opWithTable(1)}},
				{err: io.EOF},
			}},
			"0000000002.wal": {steps: []readerStep{
				{batch: []SequencedOp{opWithTable(2)}},
				{err: io.EOF},
			}},
			"0000000003.wal": {steps: []readerStep{
				{batch: []SequencedOp{opWithTable(3)}},
				{err: io.ErrUnexpectedEOF},
			}},
		},
	}

	sink := &fakeSink{}
	metrics := &fakeMetrics{}
	engine := NewEngine(source, AlwaysReady{}, metrics)

	maxSeq, err := engine.Replay(context.Background(), sink)
	require.NoError(t, err)
	assert.Equal(t, types.SequenceNumber(3), maxSeq)

	assert.ElementsMatch(t, []string{"0000000001.wal", "0000000002.wal", "0000000003.wal"}, source.deleted)

	truncatedCount := 0
	for _, f := range metrics.finished {
		if f == "error/truncated" {
			truncatedCount++
		}
	}
	assert.Equal(t, 1, truncatedCount)
	assert.Equal(t, 3, sink.flushes)
}

func TestEmptySegmentIsDeletedWithoutFlush(t *testing.T) {
	source := &fakeSource{
		segments: []Segment{{ID: "0000000001.wal"}},
		readers: map[string]*fakeReader{
			"0000000001.wal": {steps: []readerStep{{err: io.EOF}}},
		},
	}
	sink := &fakeSink{}
	metrics := &fakeMetrics{}
	engine := NewEngine(source, AlwaysReady{}, metrics)

	_, err := engine.Replay(context.Background(), sink)
	require.NoError(t, err)
	assert.Equal(t, 0, sink.flushes)
	assert.Contains(t, metrics.finished, "success/empty")
	assert.Equal(t, []string{"0000000001.wal"}, source.deleted)
}

func TestSkippedEmptyOp(t *testing.T) {
	source := &fakeSource{
		segments: []Segment{{ID: "0000000001.wal"}},
		readers: map[string]*fakeReader{
			"0000000001.wal": {steps: []readerStep{
				{batch: []SequencedOp{{Sequence: 1, Op: types.WriteOperation{Sequence: 1}}}},
				{err: io.EOF},
			}},
		},
	}
	sink := &fakeSink{}
	metrics := &fakeMetrics{}
	engine := NewEngine(source, AlwaysReady{}, metrics)

	maxSeq, err := engine.Replay(context.Background(), sink)
	require.NoError(t, err)
	assert.Equal(t, types.SequenceNumber(0), maxSeq)
	assert.Contains(t, metrics.ops, "skipped_empty")
	assert.Equal(t, 0, sink.flushes)
}

func TestMidStreamCorruptionFailsReplay(t *testing.T) {
	source := &fakeSource{
		segments: []Segment{{ID: "0000000001.wal"}, {ID: "0000000002.wal"}},
		readers: map[string]*fakeReader{
			"0000000001.wal": {steps: []readerStep{
				{batch: []SequencedOp{opWithTable(1)}},
				{err: io.ErrUnexpectedEOF}, // not the last segment: fatal
			}},
			"0000000002.wal": {steps: []readerStep{{err: io.EOF}}},
		},
	}
	sink := &fakeSink{}
	metrics := &fakeMetrics{}
	engine := NewEngine(source, AlwaysReady{}, metrics)

	maxSeq, err := engine.Replay(context.Background(), sink)
	require.Error(t, err)
	assert.Equal(t, types.SequenceNumber(1), maxSeq)
	assert.Equal(t, types.ErrCorruption, types.KindOf(err))
}
