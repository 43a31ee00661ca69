package buffer

import (
	"testing"

	"github.com/beaverdb/tsdb-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowBatch(seq int64) types.ColumnBatch {
	return types.NewColumnBatch(map[types.ColumnID][]any{
		types.TimeColumn: {seq},
		types.ColumnID(1): {seq},
	})
}

func xValues(b types.ColumnBatch) []int64 {
	raw := b.Column(types.ColumnID(1))
	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		out = append(out, v.(int64))
	}
	return out
}

// TestOutOfOrderPersist is the literal scenario from the spec's end-to-end
// section: writes x=1..4, snapshot after 2/3/4 producing h1/h2/h3, then
// mark_persisted in the order h2, h3, h1.
func TestOutOfOrderPersist(t *testing.T) {
	counter := NewNamespaceCounter(0)
	buf := New(types.PartitionID(1), types.NamespaceID(1), counter)

	require.NoError(t, buf.BufferWrite(rowBatch(1), types.SequenceNumber(1)))

	require.NoError(t, buf.BufferWrite(rowBatch(2), types.SequenceNumber(2)))
	h1, ok := buf.MarkPersisting()
	require.True(t, ok)

	require.NoError(t, buf.BufferWrite(rowBatch(3), types.SequenceNumber(3)))
	h2, ok := buf.MarkPersisting()
	require.True(t, ok)

	require.NoError(t, buf.BufferWrite(rowBatch(4), types.SequenceNumber(4)))
	h3, ok := buf.MarkPersisting()
	require.True(t, ok)

	snap, ok := buf.GetQueryData(nil)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2, 3, 4}, xValues(snap))

	buf.MarkPersisted(h2)
	snap, ok = buf.GetQueryData(nil)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2, 4}, xValues(snap))

	buf.MarkPersisted(h3)
	snap, ok = buf.GetQueryData(nil)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2}, xValues(snap))

	buf.MarkPersisted(h1)
	_, ok = buf.GetQueryData(nil)
	assert.False(t, ok, "every snapshot retired and the live buffer is empty")
	assert.Equal(t, 0, counter.Count(types.NamespaceID(1)))

	assert.True(t, buf.IsEmpty())
}

func TestIsEmptyTransitions(t *testing.T) {
	counter := NewNamespaceCounter(0)
	buf := New(types.PartitionID(1), types.NamespaceID(1), counter)

	assert.True(t, buf.IsEmpty())
	assert.Equal(t, 0, counter.Count(types.NamespaceID(1)))

	require.NoError(t, buf.BufferWrite(rowBatch(1), 1))
	assert.False(t, buf.IsEmpty())
	assert.Equal(t, 1, counter.Count(types.NamespaceID(1)))

	h, ok := buf.MarkPersisting()
	require.True(t, ok)
	assert.False(t, buf.IsEmpty(), "persisting entry still outstanding")

	buf.MarkPersisted(h)
	assert.True(t, buf.IsEmpty())
	assert.Equal(t, 0, counter.Count(types.NamespaceID(1)))
}

func TestMarkPersistingOnEmptyReturnsFalse(t *testing.T) {
	buf := New(types.PartitionID(1), types.NamespaceID(1), NewNamespaceCounter(0))
	_, ok := buf.MarkPersisting()
	assert.False(t, ok)
}

func TestNamespaceCap(t *testing.T) {
	counter := NewNamespaceCounter(1)
	a := New(types.PartitionID(1), types.NamespaceID(1), counter)
	b := New(types.PartitionID(2), types.NamespaceID(1), counter)

	require.NoError(t, a.BufferWrite(rowBatch(1), 1))

	err := b.BufferWrite(rowBatch(1), 1)
	require.Error(t, err)
	assert.Equal(t, types.ErrLimitExceeded, types.KindOf(err))
}

func TestGetQueryDataEmptyReturnsFalse(t *testing.T) {
	buf := New(types.PartitionID(1), types.NamespaceID(1), NewNamespaceCounter(0))
	_, ok := buf.GetQueryData(nil)
	assert.False(t, ok)
}

func TestUpdateSortKey(t *testing.T) {
	buf := New(types.PartitionID(1), types.NamespaceID(1), NewNamespaceCounter(0))
	assert.True(t, buf.SortKey().IsDeferred)

	key := types.ProvidedSortKey([]types.ColumnID{1, 2})
	buf.UpdateSortKey(key)
	assert.True(t, buf.SortKey().Equal(key))
}
