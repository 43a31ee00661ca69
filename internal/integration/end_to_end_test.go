// Package integration drives the full ingest-to-compaction pipeline
// through internal/controller.Controller, the way a running tsdbcore
// process would, rather than exercising any one package in isolation.
package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beaverdb/tsdb-core/internal/config"
	"github.com/beaverdb/tsdb-core/internal/controller"
)

type wireOp struct {
	Sequence  int64            `json:"seq"`
	Namespace int64            `json:"namespace"`
	Partition string           `json:"partition"`
	Tables    []wireTableWrite `json:"tables"`
	Checksum  uint32           `json:"checksum"`
}

type wireTableWrite struct {
	TableID int64            `json:"table_id"`
	Columns map[uint32][]any `json:"columns"`
}

func writeSegment(t *testing.T, dir, name string, ops ...wireOp) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, op := range ops {
		require.NoError(t, enc.Encode(op))
	}
}

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "wal"), 0o755))

	var cfg config.Config
	cfg.WAL.Dir = filepath.Join(dir, "wal")
	cfg.Persist.QueueBufferSize = 32
	cfg.Persist.WorkerCount = 2
	cfg.Persist.SortKeyCacheSize = 64
	cfg.Compactor.BranchFileCap = 200
	cfg.Compactor.MaxParquetBytes = 1 << 20
	cfg.Compactor.Permits = 2
	cfg.Compactor.RoundTimeout = time.Second
	cfg.Compactor.PartitionWorkers = 1
	cfg.ObjectStore.Backend = "memory"
	return &cfg
}

// TestIngestThenCompactAcrossMultipleWrites replays two WAL segments
// covering three table writes into the same partition, then runs the
// compaction scheduler and asserts the partition converges to a single
// registered Parquet file holding every row written — the pipeline a
// real process runs end to end: WAL replay, buffering, persist, and
// compaction into one place.
func TestIngestThenCompactAcrossMultipleWrites(t *testing.T) {
	cfg := baseConfig(t)

	writeSegment(t, cfg.WAL.Dir, "0000000001.wal",
		wireOp{
			Sequence: 1, Namespace: 1, Partition: "2026-07-31",
			Tables: []wireTableWrite{{
				TableID: 1,
				Columns: map[uint32][]any{
					0: {int64(100), int64(200)},
					1: {int64(1), int64(2)},
				},
			}},
		},
		wireOp{
			Sequence: 2, Namespace: 1, Partition: "2026-07-31",
			Tables: []wireTableWrite{{
				TableID: 1,
				Columns: map[uint32][]any{
					0: {int64(300), int64(400)},
					1: {int64(3), int64(4)},
				},
			}},
		},
	)
	writeSegment(t, cfg.WAL.Dir, "0000000002.wal",
		wireOp{
			Sequence: 3, Namespace: 1, Partition: "2026-07-31",
			Tables: []wireTableWrite{{
				TableID: 1,
				Columns: map[uint32][]any{
					0: {int64(500)},
					1: {int64(5)},
				},
			}},
		},
	)

	ctrl, err := controller.New(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, ctrl.Start(ctx))
	defer ctrl.Stop()

	require.Eventually(t, func() bool {
		files, err := ctrl.Catalog().FetchFiles(context.Background(), ctrl.PartitionID(1, 1, "2026-07-31"))
		return err == nil && len(files) == 1 && files[0].RowCount == 5
	}, 3*time.Second, 20*time.Millisecond, "all five replayed rows should converge into one compacted file")
}

// TestIngestOnlyLeavesCompactionScheduleUnstarted exercises the
// `tsdbcore ingest` half of the CLI on its own: StartIngest replays
// the WAL and persists the buffered write, without ever starting the
// compaction scheduler loop StartCompaction/Start would add.
func TestIngestOnlyLeavesCompactionScheduleUnstarted(t *testing.T) {
	cfg := baseConfig(t)

	writeSegment(t, cfg.WAL.Dir, "0000000001.wal", wireOp{
		Sequence: 1, Namespace: 2, Partition: "2026-08-01",
		Tables: []wireTableWrite{{
			TableID: 9,
			Columns: map[uint32][]any{
				0: {int64(10), int64(20)},
				1: {int64(7), int64(8)},
			},
		}},
	})

	ctrl, err := controller.New(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, ctrl.StartIngest(ctx))
	defer ctrl.Stop()

	require.Eventually(t, func() bool {
		files, err := ctrl.Catalog().FetchFiles(context.Background(), ctrl.PartitionID(2, 9, "2026-08-01"))
		return err == nil && len(files) >= 1
	}, 2*time.Second, 10*time.Millisecond, "persist worker should register a file even without the compaction scheduler running")
}
