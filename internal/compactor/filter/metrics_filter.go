package filter

import (
	"context"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

// Metrics is the subset of internal/metrics.Collector this package
// needs, injected so it never imports Prometheus directly.
type Metrics interface {
	PartitionFilterResult(result, filterType string)
}

// MetricsWrapper decorates a PartitionFilter with pass/filter/error
// counters. It is a pure pass-through: the returned (bool, error) is
// always bit-identical to the wrapped filter's own return, and exactly
// one of {pass, filter, error} increments by one per call.
type MetricsWrapper struct {
	inner   PartitionFilter
	metrics Metrics
}

// WrapWithMetrics returns inner decorated with metrics counting.
func WrapWithMetrics(inner PartitionFilter, metrics Metrics) *MetricsWrapper {
	return &MetricsWrapper{inner: inner, metrics: metrics}
}

func (w *MetricsWrapper) Name() string { return w.inner.Name() }

func (w *MetricsWrapper) ShouldCompact(ctx context.Context, partition types.PartitionID) (bool, error) {
	ok, err := w.inner.ShouldCompact(ctx, partition)
	switch {
	case err != nil:
		w.metrics.PartitionFilterResult("error", w.inner.Name())
	case ok:
		w.metrics.PartitionFilterResult("pass", w.inner.Name())
	default:
		w.metrics.PartitionFilterResult("filter", w.inner.Name())
	}
	return ok, err
}
