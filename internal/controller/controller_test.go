package controller

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaverdb/tsdb-core/internal/config"
)

// wireOp mirrors internal/wal's unexported on-disk JSON framing closely
// enough to hand-author one WAL segment line for this test, without
// reaching into that package's internals.
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

func writeSegment(t *testing.T, dir string, ops ...wireOp) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, "0000000001.wal"))
	require.NoError(t, err)
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, op := range ops {
		require.NoError(t, enc.Encode(op))
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "wal"), 0o755))

	var cfg config.Config
	cfg.WAL.Dir = filepath.Join(dir, "wal")
	cfg.Persist.QueueBufferSize = 16
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

func TestControllerReplaysWALAndPersists(t *testing.T) {
	cfg := testConfig(t)

	writeSegment(t, cfg.WAL.Dir, wireOp{
		Sequence:  1,
		Namespace: 1,
		Partition: "2026-07-31",
		Tables: []wireTableWrite{{
			TableID: 1,
			Columns: map[uint32][]any{
				0: {int64(100), int64(200)}, // time column
				1: {int64(42), int64(43)},
			},
		}},
	})

	ctrl, err := New(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, ctrl.Start(ctx))
	defer ctrl.Stop()

	require.Eventually(t, func() bool {
		files, ferr := ctrl.cat.FetchFiles(context.Background(), partitionIDFor(1, 1, "2026-07-31"))
		return ferr == nil && len(files) == 1
	}, 2*time.Second, 10*time.Millisecond, "replayed write should be compacted and registered")
}

func TestControllerStartStopWithEmptyWAL(t *testing.T) {
	cfg := testConfig(t)

	ctrl, err := New(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, ctrl.Start(ctx))
	ctrl.Stop()
}

func TestPartitionIDForIsDeterministic(t *testing.T) {
	a := partitionIDFor(1, 2, "2026-07-31")
	b := partitionIDFor(1, 2, "2026-08-01")

	assert.NotEqual(t, a, b)
	assert.Equal(t, partitionIDFor(1, 2, "2026-07-31"), a)
}
