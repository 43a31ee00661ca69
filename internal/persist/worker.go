// Package persist implements the persist worker pool: the component
// that drains frozen partition-buffer snapshots through compact, upload,
// sort-key CAS, catalog registration and completion notification.
//
// Grounded on a prior iteration's worker pool shape: the same "fixed
// pool of goroutines pulling from a shared channel, explicit per-task
// loop, WaitGroup-tracked graceful shutdown" shape, generalized from
// "execute one opaque task" to the five-state
// COMPACT → UPLOAD → CAS? → REGISTER → NOTIFY machine.
package persist

import (
	"context"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/beaverdb/tsdb-core/internal/buffer"
	"github.com/beaverdb/tsdb-core/internal/catalog"
	"github.com/beaverdb/tsdb-core/pkg/types"
)

var log = slog.Default()

// uploadRetryBackoff mirrors casRetryBackoff/registerRetryBackoff:
// upload retries indefinitely, since a failure is assumed transient.
const uploadRetryBackoff = 250 * time.Millisecond

// BufferSource resolves a partition id to its live Buffer, so a worker
// can read the persisting snapshot it was handed a Job for and, once
// durably written, retire it.
type BufferSource interface {
	Buffer(partition types.PartitionID) (*buffer.Buffer, bool)
}

// Metrics is the subset of internal/metrics.Collector the persist pool
// needs, injected so this package never imports Prometheus directly.
type Metrics interface {
	ObservePersistQueueWait(seconds float64)
	ObservePersistDuration(seconds float64)
}

type jobState int

const (
	stateCompact jobState = iota
	stateUpload
	stateCAS
	stateRegister
	stateNotify
)

// Worker executes the persist state machine for whatever jobs its Queue
// hands it. Each field is injected at construction rather than reached
// through a package-level singleton.
type Worker struct {
	id       int
	queue    *Queue
	buffers  BufferSource
	catalog  catalog.Catalog
	uploader *Uploader
	observer CompletionObserver
	metrics  Metrics
	sortKeys *lru.Cache[types.PartitionID, types.SortKey]
}

// NewWorker constructs one persist worker. sortKeys is shared across a
// pool's workers (one cache, not one per worker) so a CAS-observed key
// update made by worker A is visible to worker B's next job on the same
// partition.
func NewWorker(id int, queue *Queue, buffers BufferSource, cat catalog.Catalog, uploader *Uploader, observer CompletionObserver, metrics Metrics, sortKeys *lru.Cache[types.PartitionID, types.SortKey]) *Worker {
	return &Worker{
		id:       id,
		queue:    queue,
		buffers:  buffers,
		catalog:  cat,
		uploader: uploader,
		observer: observer,
		metrics:  metrics,
		sortKeys: sortKeys,
	}
}

// Run polls the queue until ctx is cancelled, executing one job's
// persist state machine at a time.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Poll(ctx, w.id)
		if err != nil {
			return
		}

		w.metrics.ObservePersistQueueWait(time.Since(job.EnqueuedAt).Seconds())

		start := time.Now()
		if err := w.persistJob(ctx, job); err != nil {
			log.Error("persist: job aborted", "partition", job.Partition, "error", err)
		}
		w.metrics.ObservePersistDuration(time.Since(start).Seconds())
	}
}

// cachedSortKey returns the worker's best-known sort key for partition,
// falling back to a live catalog fetch (and caching the result) on a
// cold cache.
func (w *Worker) cachedSortKey(ctx context.Context, partition types.PartitionID) (types.SortKey, error) {
	if key, ok := w.sortKeys.Get(partition); ok {
		return key, nil
	}
	key, err := w.catalog.SortKey(ctx, partition)
	if err != nil {
		return types.SortKey{}, err
	}
	w.sortKeys.Add(partition, key)
	return key, nil
}

// persistJob runs the explicit COMPACT → UPLOAD → (CAS?) → REGISTER →
// NOTIFY loop for one job, restarting at COMPACT on a CAS mismatch.
func (w *Worker) persistJob(ctx context.Context, job Job) error {
	buf, ok := w.buffers.Buffer(job.Partition)
	if !ok {
		log.Warn("persist: unknown partition", "partition", job.Partition)
		return nil
	}

	snapshot, sequences, ok := buf.PersistingSnapshot(job.Handle)
	if !ok {
		log.Warn("persist: handle already retired", "partition", job.Partition)
		return nil
	}

	key, err := w.cachedSortKey(ctx, job.Partition)
	if err != nil {
		return err
	}

	var (
		compacted CompactResult
		objectID  types.ObjectStoreID
		size      int64
		fileID    types.ParquetFileID
		state     = stateCompact
	)

	for {
		switch state {
		case stateCompact:
			compacted = Compact(snapshot, key)
			state = stateUpload

		case stateUpload:
			id, sz, err := w.uploader.Upload(ctx, job.Namespace, job.Table, job.Partition, compacted.Batch)
			if err != nil {
				log.Error("persist: upload failed, retrying", "partition", job.Partition, "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(uploadRetryBackoff):
				}
				continue
			}
			objectID, size = id, sz
			if compacted.Extended {
				state = stateCAS
			} else {
				state = stateRegister
			}

		case stateCAS:
			outcome, err := NegotiateSortKey(ctx, w.catalog, job.Partition, key, compacted.SortKey)
			if err != nil {
				return err
			}
			key = outcome.Key
			w.sortKeys.Add(job.Partition, key)
			if outcome.Restart {
				state = stateCompact
				continue
			}
			buf.UpdateSortKey(key)
			state = stateRegister

		case stateRegister:
			stats, _ := compacted.Batch.TimestampStats()
			id, err := Register(ctx, w.catalog, catalog.CreateFileParams{
				Namespace:       job.Namespace,
				Table:           job.Table,
				Partition:       job.Partition,
				ObjectStoreID:   objectID,
				MinTime:         stats.Min,
				MaxTime:         stats.Max,
				RowCount:        int64(compacted.Batch.Rows()),
				SizeBytes:       size,
				CompactionLevel: types.LevelZero,
				MaxSequence:     maxSequence(sequences),
			})
			if err != nil {
				return err
			}
			fileID = id
			state = stateNotify

		case stateNotify:
			buf.MarkPersisted(job.Handle)
			Notify(ctx, w.observer, PersistedEvent{
				Namespace: job.Namespace,
				Table:     job.Table,
				Partition: job.Partition,
				File:      fileID,
				RowCount:  int64(compacted.Batch.Rows()),
			})
			return nil
		}
	}
}

func maxSequence(seqs []types.SequenceNumber) types.SequenceNumber {
	var max types.SequenceNumber
	for _, s := range seqs {
		if s > max {
			max = s
		}
	}
	return max
}
