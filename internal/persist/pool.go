package persist

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/beaverdb/tsdb-core/internal/catalog"
	"github.com/beaverdb/tsdb-core/pkg/types"
)

// defaultSortKeyCacheSize bounds the shared sort-key LRU. One entry per
// actively-persisting partition; partitions cool out of cache under
// memory pressure and simply re-fetch from the catalog on next use.
const defaultSortKeyCacheSize = 4096

// Pool runs a fixed number of persist Workers against a shared Queue,
// mirroring an earlier worker pool's shape: NewPool/Start/Stop
// lifecycle, context-cancellation instead of a stopCh +
// close(taskCh) pair since every collaborator here already takes a
// context.
type Pool struct {
	Queue *Queue

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool builds a pool with its own Queue sized for workerCount
// workers.
func NewPool(bufferSize, workerCount int) *Pool {
	return &Pool{Queue: NewQueue(bufferSize, workerCount)}
}

// Start launches workerCount goroutines, each running the persist state
// machine against shared collaborators, until ctx is cancelled or Stop
// is called.
func (p *Pool) Start(ctx context.Context, workerCount int, buffers BufferSource, cat catalog.Catalog, uploader *Uploader, observer CompletionObserver, metrics Metrics) error {
	sortKeys, err := lru.New[types.PartitionID, types.SortKey](defaultSortKeyCacheSize)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < workerCount; i++ {
		w := NewWorker(i, p.Queue, buffers, cat, uploader, observer, metrics, sortKeys)
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(runCtx)
		}(w)
	}

	return nil
}

// Stop cancels every worker's context and waits for them to drain their
// current job before returning.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}
