package controller

import (
	"context"

	"github.com/beaverdb/tsdb-core/internal/buffer"
	"github.com/beaverdb/tsdb-core/internal/persist"
	"github.com/beaverdb/tsdb-core/pkg/types"
)

// replaySink implements internal/wal.Sink: it routes each replayed
// write operation's table batches into the buffer registry and, once a
// segment finishes, freezes and enqueues every partition touched since
// the last flush — the same role a live ingest request handler plays,
// generalized to run once at startup over however much WAL is still
// unreplayed.
type replaySink struct {
	registry *buffer.Registry
	counter  *buffer.NamespaceCounter
	queue    *persist.Queue

	// table remembers which table a partition belongs to, since
	// buffer.Buffer itself is table-agnostic and only ever sees one
	// table's rows at a time.
	table   map[types.PartitionID]types.TableID
	touched map[types.PartitionID]types.NamespaceID
}

func newReplaySink(registry *buffer.Registry, counter *buffer.NamespaceCounter, queue *persist.Queue) *replaySink {
	return &replaySink{
		registry: registry,
		counter:  counter,
		queue:    queue,
		table:    make(map[types.PartitionID]types.TableID),
		touched:  make(map[types.PartitionID]types.NamespaceID),
	}
}

// Apply routes every table write in op into its own buffer, keyed by a
// partition id derived from (namespace, table, op.Partition).
func (s *replaySink) Apply(ctx context.Context, op types.WriteOperation) error {
	for _, tw := range op.Tables {
		pid := partitionIDFor(op.Namespace, tw.TableID, op.Partition)
		buf := s.registry.GetOrCreate(pid, op.Namespace)
		if err := buf.BufferWrite(tw.Batch, op.Sequence); err != nil {
			return err
		}
		s.table[pid] = tw.TableID
		s.touched[pid] = op.Namespace
	}
	return nil
}

// FlushPartitions freezes and enqueues every partition touched since
// the last flush, then clears the touched set.
func (s *replaySink) FlushPartitions(ctx context.Context) error {
	for pid, ns := range s.touched {
		buf, ok := s.registry.Buffer(pid)
		if !ok {
			continue
		}
		handle, ok := buf.MarkPersisting()
		if !ok {
			continue
		}
		job := persist.Job{
			Namespace: ns,
			Table:     s.table[pid],
			Partition: pid,
			Handle:    handle,
		}
		if err := s.queue.Submit(ctx, job); err != nil {
			return err
		}
	}
	s.touched = make(map[types.PartitionID]types.NamespaceID)
	return nil
}
