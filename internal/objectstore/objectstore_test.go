package objectstore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/beaverdb/tsdb-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	p := Path(types.NamespaceID(1), types.TableID(2), types.PartitionID(3), types.ObjectStoreID("abc"))
	assert.Equal(t, "1/2/3/abc.parquet", p)
}

func TestMemoryPutGetDelete(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a/b.parquet", strings.NewReader("hello"), 5))
	assert.Equal(t, 1, store.Len())

	r, err := store.Get(ctx, "a/b.parquet")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Delete(ctx, "a/b.parquet"))
	assert.Equal(t, 0, store.Len())

	_, err = store.Get(ctx, "a/b.parquet")
	assert.ErrorIs(t, err, ErrNotFound)
}
