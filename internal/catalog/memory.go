package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

// Memory is an in-memory Catalog used by every unit test in this
// module, the same role an earlier iteration's snapshot manager and job manager
// hand-rolled fakes play elsewhere in this codebase's test suites.
type Memory struct {
	mu       sync.Mutex
	nextID   types.ParquetFileID
	files    map[types.ParquetFileID]types.ParquetFile
	sortKeys map[types.PartitionID]types.SortKey
	skipped  map[types.PartitionID]string
}

// NewMemory constructs an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		files:    make(map[types.ParquetFileID]types.ParquetFile),
		sortKeys: make(map[types.PartitionID]types.SortKey),
		skipped:  make(map[types.PartitionID]string),
	}
}

func (m *Memory) CreateParquetFile(ctx context.Context, p CreateFileParams) (types.ParquetFileID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.files[id] = types.ParquetFile{
		ID:              id,
		Namespace:       p.Namespace,
		Table:           p.Table,
		Partition:       p.Partition,
		ObjectStoreID:   p.ObjectStoreID,
		MinTime:         p.MinTime,
		MaxTime:         p.MaxTime,
		RowCount:        p.RowCount,
		SizeBytes:       p.SizeBytes,
		CompactionLevel: p.CompactionLevel,
		MaxSequence:     p.MaxSequence,
		CreatedAt:       time.Unix(0, 0),
	}
	return id, nil
}

func (m *Memory) CASSortKey(ctx context.Context, partition types.PartitionID, oldKey, newKey types.SortKey) (CASResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.sortKeys[partition]
	if !ok {
		current = types.DeferredSortKey()
	}

	if !current.Equal(oldKey) {
		return CASResult{Mismatch: true, Observed: current}, nil
	}

	m.sortKeys[partition] = newKey
	return CASResult{Installed: true, Observed: newKey}, nil
}

func (m *Memory) Commit(ctx context.Context, params CommitParams) ([]types.ParquetFileID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range params.Delete {
		delete(m.files, id)
	}
	for _, id := range params.Upgrade {
		f, ok := m.files[id]
		if !ok {
			continue
		}
		f.CompactionLevel = params.TargetLevel
		m.files[id] = f
	}

	ids := make([]types.ParquetFileID, 0, len(params.Create))
	for _, c := range params.Create {
		m.nextID++
		id := m.nextID
		m.files[id] = types.ParquetFile{
			ID:              id,
			Namespace:       c.Namespace,
			Table:           c.Table,
			Partition:       c.Partition,
			ObjectStoreID:   c.ObjectStoreID,
			MinTime:         c.MinTime,
			MaxTime:         c.MaxTime,
			RowCount:        c.RowCount,
			SizeBytes:       c.SizeBytes,
			CompactionLevel: c.CompactionLevel,
			MaxSequence:     c.MaxSequence,
			CreatedAt:       time.Unix(0, 0),
			Lineage:         params.Delete,
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Memory) FetchFiles(ctx context.Context, partition types.PartitionID) ([]types.ParquetFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.ParquetFile
	for _, f := range m.files {
		if f.Partition == partition {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *Memory) SortKey(ctx context.Context, partition types.PartitionID) (types.SortKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if k, ok := m.sortKeys[partition]; ok {
		return k, nil
	}
	return types.DeferredSortKey(), nil
}

func (m *Memory) SkipCompaction(ctx context.Context, partition types.PartitionID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped[partition] = reason
	return nil
}

// Skipped reports whether a partition is currently skip-listed, and why
// — test/diagnostic accessor, not part of the Catalog interface.
func (m *Memory) Skipped(partition types.PartitionID) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reason, ok := m.skipped[partition]
	return reason, ok
}
