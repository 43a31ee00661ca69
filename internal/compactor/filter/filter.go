// Package filter implements the partition filter pipeline that decides
// whether a partition is compacted this cycle, plus the post-
// classification safety check that runs after the file classifier.
//
// Grounded on this codebase's interface-abstraction and
// metrics-collector-as-injected-dependency patterns
// (internal/metrics/metrics.go).
package filter

import (
	"context"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

// PartitionFilter decides whether partition should be compacted this
// cycle. A filter never mutates state; ShouldCompact is a pure
// predicate over catalog-observable facts.
type PartitionFilter interface {
	ShouldCompact(ctx context.Context, partition types.PartitionID) (bool, error)
	// Name identifies this filter for metrics and logging.
	Name() string
}

// Pipeline runs an ordered list of filters, short-circuiting on the
// first false result or error.
type Pipeline struct {
	filters []PartitionFilter
}

// NewPipeline builds a pipeline that runs filters in order.
func NewPipeline(filters ...PartitionFilter) *Pipeline {
	return &Pipeline{filters: filters}
}

// Run evaluates every filter in order. It returns false as soon as one
// filter returns false, and the filter's error (if any) is surfaced
// immediately without running later filters.
func (p *Pipeline) Run(ctx context.Context, partition types.PartitionID) (bool, error) {
	for _, f := range p.filters {
		ok, err := f.ShouldCompact(ctx, partition)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
