// Package parquetio writes persisting-snapshot rows to a single Parquet
// object per persist job and reads them back for compaction branch
// execution.
//
// Grounded on the retrieval pack's causality compaction service
// (other_examples' compaction_service.go), which uses parquet-go's
// lower-level Writer/Row API rather than struct-tag reflection — the
// natural fit here since ColumnBatch's columns are dynamic (keyed by
// ColumnID, not a fixed Go struct).
package parquetio

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

const columnNamePrefix = "col_"

func columnName(id types.ColumnID) string {
	// Zero-padded so that name order, which orders the schema's leaves,
	// equals ColumnID order.
	return fmt.Sprintf("%s%010d", columnNamePrefix, uint64(id))
}

func columnIDFromName(name string) (types.ColumnID, error) {
	raw := strings.TrimPrefix(name, columnNamePrefix)
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parquetio: unrecognized column name %q: %w", name, err)
	}
	return types.ColumnID(n), nil
}

// schemaFor builds a Parquet group schema with one optional int64 leaf
// per column, in ascending ColumnID order so repeated compaction of the
// same partition produces schema-stable files.
func schemaFor(cols []types.ColumnID) *parquet.Schema {
	group := make(parquet.Group, len(cols))
	for _, c := range cols {
		group[columnName(c)] = parquet.Optional(parquet.Leaf(parquet.Int64Type))
	}
	return parquet.NewSchema("row", group)
}

// WriteBatch serializes batch to a single Parquet object.
func WriteBatch(batch types.ColumnBatch) ([]byte, error) {
	cols := batch.Columns()
	sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })
	schema := schemaFor(cols)

	var buf bytes.Buffer
	writer := parquet.NewWriter(&buf, schema,
		parquet.Compression(&parquet.Snappy),
		parquet.CreatedBy("tsdb-core", "0.1.0", ""),
	)

	rows := make([]parquet.Row, batch.Rows())
	columnValues := make([][]any, len(cols))
	for i, c := range cols {
		columnValues[i] = batch.Column(c)
	}

	for r := 0; r < batch.Rows(); r++ {
		row := make(parquet.Row, 0, len(cols))
		for colIdx, values := range columnValues {
			v := asInt64Value(values[r])
			row = append(row, parquet.ValueOf(v).Level(0, 1, colIdx))
		}
		rows[r] = row
	}

	if _, err := writer.WriteRows(rows); err != nil {
		return nil, fmt.Errorf("parquetio: write rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("parquetio: close writer: %w", err)
	}

	return buf.Bytes(), nil
}

func asInt64Value(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	default:
		return 0
	}
}
