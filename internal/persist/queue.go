package persist

import (
	"context"
	"time"
)

// Queue is the global MPMC persist queue plus one affinity channel per
// worker. Workers poll biased toward their own affinity channel first,
// which lets an external scheduler pin specific partitions to specific
// workers (client-driven reordering) without giving up the shared
// fallback queue. Grounded on the taskCh/resultCh shape used by
// a prior iteration's worker pool, generalized from one shared channel to
// a shared channel plus N affinity channels.
type Queue struct {
	global   chan Job
	affinity []chan Job
}

// NewQueue builds a queue sized for workerCount workers, each channel
// holding up to bufferSize pending jobs before Submit/SubmitAffinity
// block.
func NewQueue(bufferSize, workerCount int) *Queue {
	affinity := make([]chan Job, workerCount)
	for i := range affinity {
		affinity[i] = make(chan Job, bufferSize)
	}
	return &Queue{
		global:   make(chan Job, bufferSize),
		affinity: affinity,
	}
}

// Submit enqueues job onto the shared global queue; any worker may pick
// it up. Blocks until space is available or ctx is done.
func (q *Queue) Submit(ctx context.Context, job Job) error {
	job.EnqueuedAt = time.Now()
	select {
	case q.global <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitAffinity enqueues job onto workerID's affinity channel, so that
// worker (and only that worker) picks it up first.
func (q *Queue) SubmitAffinity(ctx context.Context, workerID int, job Job) error {
	job.EnqueuedAt = time.Now()
	select {
	case q.affinity[workerID] <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poll waits for the next job available to workerID: its own affinity
// channel is checked first without blocking, then both channels are
// raced. Returns ctx.Err() once ctx is done.
func (q *Queue) Poll(ctx context.Context, workerID int) (Job, error) {
	affinity := q.affinity[workerID]

	select {
	case job := <-affinity:
		return job, nil
	default:
	}

	select {
	case job := <-affinity:
		return job, nil
	case job := <-q.global:
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}
