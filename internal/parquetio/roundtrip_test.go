package parquetio

import (
	"testing"

	"github.com/beaverdb/tsdb-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	batch := types.NewColumnBatch(map[types.ColumnID][]any{
		types.TimeColumn:  {int64(1), int64(2), int64(3)},
		types.ColumnID(1): {int64(10), int64(20), int64(30)},
	})

	data, err := WriteBatch(batch)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	got, err := ReadBatch(data)
	require.NoError(t, err)
	assert.Equal(t, batch.Rows(), got.Rows())

	stats, ok := got.TimestampStats()
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.Min)
	assert.Equal(t, int64(3), stats.Max)
}
