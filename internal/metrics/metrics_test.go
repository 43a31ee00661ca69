package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollectorRegistersEveryMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := NewCollector(reg)
	require.NotNil(t, collector)

	// A labelled vector only shows up in Gather once it has a child.
	collector.ReplayFileFinished("success", "")
	collector.ReplayOp("applied")
	collector.PartitionFilterResult("pass", "test")

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 6)
}

func TestReplayCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ReplayFileStarted()
	c.ReplayFileStarted()
	assert.Equal(t, float64(2), testutil.ToFloat64(c.replayFilesStarted))

	c.ReplayFileFinished("error", "truncated")
	assert.Equal(t, float64(1), testutil.ToFloat64(c.replayFilesFinished.WithLabelValues("error", "truncated")))

	c.ReplayOp("skipped_empty")
	c.ReplayOp("skipped_empty")
	c.ReplayOp("applied")
	assert.Equal(t, float64(2), testutil.ToFloat64(c.replayOps.WithLabelValues("skipped_empty")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.replayOps.WithLabelValues("applied")))
}

func TestPartitionFilterCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.PartitionFilterResult("pass", "has_new_files")
	c.PartitionFilterResult("filter", "has_new_files")
	c.PartitionFilterResult("error", "has_new_files")

	assert.Equal(t, float64(1), testutil.ToFloat64(c.partitionFilterCount.WithLabelValues("pass", "has_new_files")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.partitionFilterCount.WithLabelValues("filter", "has_new_files")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.partitionFilterCount.WithLabelValues("error", "has_new_files")))
}

func TestPersistHistogramsDoNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	assert.NotPanics(t, func() {
		c.ObservePersistQueueWait(0.25)
		c.ObservePersistDuration(1.5)
	})
}
