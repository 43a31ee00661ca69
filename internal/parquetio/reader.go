package parquetio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

// ReadBatch deserializes Parquet bytes written by WriteBatch back into a
// ColumnBatch.
func ReadBatch(data []byte) (types.ColumnBatch, error) {
	pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return types.ColumnBatch{}, fmt.Errorf("parquetio: open file: %w", err)
	}

	schema := pf.Schema()
	leaves := schema.Columns()
	idByLeaf := make([]types.ColumnID, len(leaves))
	for i, path := range leaves {
		id, err := columnIDFromName(path[len(path)-1])
		if err != nil {
			return types.ColumnBatch{}, err
		}
		idByLeaf[i] = id
	}

	reader := parquet.NewReader(pf, schema)
	defer reader.Close()

	columns := make(map[types.ColumnID][]any, len(leaves))
	buf := make([]parquet.Row, 128)
	for {
		n, err := reader.ReadRows(buf)
		for i := 0; i < n; i++ {
			for _, val := range buf[i] {
				id := idByLeaf[val.Column()]
				columns[id] = append(columns[id], val.Int64())
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return types.ColumnBatch{}, fmt.Errorf("parquetio: read rows: %w", err)
		}
	}

	return types.NewColumnBatch(columns), nil
}
