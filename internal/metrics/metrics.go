// Package metrics exposes a Prometheus Collector carrying the ingest
// and compaction metric surface: a struct of Counters/Histograms/Gauges
// built in one place and injected into components, never a
// package-level singleton — components take the Collector as a
// constructor parameter rather than reaching through a global.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns every metric the core emits, registered against a
// caller-supplied registry rather than prometheus's global default.
type Collector struct {
	replayFilesStarted  prometheus.Counter
	replayFilesFinished *prometheus.CounterVec // labels: result, reason
	replayOps           *prometheus.CounterVec // labels: outcome

	partitionFilterCount *prometheus.CounterVec // labels: result, filter_type

	persistQueueWait prometheus.Histogram
	persistDuration  prometheus.Histogram
}

// NewCollector builds and registers every metric against reg.
func NewCollector(reg *prometheus.Registry) *Collector {
	c := &Collector{
		replayFilesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingester_wal_replay_files_started",
			Help: "Total number of WAL segments replay has begun reading.",
		}),
		replayFilesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingester_wal_replay_files_finished",
			Help: "Total number of WAL segments replay has finished reading.",
		}, []string{"result", "reason"}),
		replayOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingester_wal_replay_ops",
			Help: "Total number of WAL ops replay has observed.",
		}, []string{"outcome"}),
		partitionFilterCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iox_compactor_partition_filter_count",
			Help: "Total number of partition filter evaluations.",
		}, []string{"result", "filter_type"}),
		persistQueueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingester_persist_queue_wait_seconds",
			Help:    "Time a persist job spent waiting in the queue before a worker picked it up.",
			Buckets: prometheus.DefBuckets,
		}),
		persistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingester_persist_duration_seconds",
			Help:    "Time a persist worker spent on one job, compact through notify.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.replayFilesStarted,
		c.replayFilesFinished,
		c.replayOps,
		c.partitionFilterCount,
		c.persistQueueWait,
		c.persistDuration,
	)

	return c
}

// ReplayFileStarted implements internal/wal.Metrics.
func (c *Collector) ReplayFileStarted() {
	c.replayFilesStarted.Inc()
}

// ReplayFileFinished implements internal/wal.Metrics.
func (c *Collector) ReplayFileFinished(result, reason string) {
	c.replayFilesFinished.WithLabelValues(result, reason).Inc()
}

// ReplayOp implements internal/wal.Metrics.
func (c *Collector) ReplayOp(outcome string) {
	c.replayOps.WithLabelValues(outcome).Inc()
}

// PartitionFilterResult implements internal/compactor/filter.Metrics.
func (c *Collector) PartitionFilterResult(result, filterType string) {
	c.partitionFilterCount.WithLabelValues(result, filterType).Inc()
}

// ObservePersistQueueWait records how long a job waited in the persist
// queue before a worker started on it.
func (c *Collector) ObservePersistQueueWait(seconds float64) {
	c.persistQueueWait.Observe(seconds)
}

// ObservePersistDuration records how long a persist worker spent on one
// job end to end.
func (c *Collector) ObservePersistDuration(seconds float64) {
	c.persistDuration.Observe(seconds)
}

// StartServer serves reg's metrics on /metrics until ctx is cancelled.
func StartServer(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return fmt.Errorf("metrics: server exited: %w", err)
	}
}
