package compactor

import (
	"context"
	"time"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

// Outcome classifies how a partition's timeout-wrapped run ended.
type Outcome int

const (
	// OutcomeDone means work returned (successfully or with an error)
	// before the timeout elapsed; its own error is forwarded as-is.
	OutcomeDone Outcome = iota
	// OutcomeTimeout means the timeout elapsed and no branch signalled
	// progress during the run — the partition is reported to the
	// skipped-compactions sink.
	OutcomeTimeout
	// OutcomeSoftRetry means the timeout elapsed but at least one
	// branch signalled progress — the partition is retried next cycle,
	// not skip-listed.
	OutcomeSoftRetry
)

// RunWithProgressTimeout implements timeout-with-progress-checking:
// work runs with a progress channel it can signal on (per branch
// commit); if the timeout elapses before work returns, the run is
// classified by whether any progress signal arrived — soft retry if
// so, hard timeout if not. work's context is cancelled on timeout so
// in-flight plan futures are dropped; RunWithProgressTimeout always
// waits for work to return before reporting a timeout outcome.
//
// Grounded on internal/controller/controller.go's timeoutLoop shape
// (ticker + select over a stop signal), adapted from a polling loop
// over many jobs into a single wrapped run bounded by one timer.
func RunWithProgressTimeout(ctx context.Context, timeout time.Duration, work func(ctx context.Context, progress chan<- struct{}) error) (Outcome, error) {
	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	progress := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() { done <- work(workCtx, progress) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var sawProgress bool
	for {
		select {
		case <-progress:
			sawProgress = true

		case err := <-done:
			return OutcomeDone, err

		case <-timer.C:
			cancel()
			<-done // wait for work to observe cancellation and exit
			if sawProgress {
				return OutcomeSoftRetry, nil
			}
			return OutcomeTimeout, types.NewError(types.ErrTimeout, "partition compaction timed out with no progress", nil)
		}
	}
}
