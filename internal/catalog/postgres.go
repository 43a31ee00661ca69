package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/beaverdb/tsdb-core/pkg/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the one concrete Catalog backend, backed by a pgx
// connection pool. Grounded on
// platform/internal/database/db.go's pgxpool.Pool-wrapping style in the
// retrieval pack (dsn assembly, pool.Ping on construction).
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a pool against dsn and verifies connectivity.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) CreateParquetFile(ctx context.Context, params CreateFileParams) (types.ParquetFileID, error) {
	id, err := createParquetFileTx(ctx, p.pool, params)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// rowQuerier is the subset of pgxpool.Pool and pgx.Tx that
// createParquetFileTx needs, so the same insert logic runs either
// against the pool directly or scoped inside an existing transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// createParquetFileTx inserts one parquet_file row through q. Called
// with p.pool for a standalone insert, or with a tx so the insert
// lands in the same transaction as a Commit's deletes and upgrades.
func createParquetFileTx(ctx context.Context, q rowQuerier, params CreateFileParams) (types.ParquetFileID, error) {
	var id types.ParquetFileID
	err := q.QueryRow(ctx, `
		INSERT INTO parquet_file
			(namespace_id, table_id, partition_id, object_store_id, min_time,
			 max_time, row_count, size_bytes, compaction_level, max_sequence,
			 to_delete)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, NULL)
		RETURNING id`,
		params.Namespace, params.Table, params.Partition, string(params.ObjectStoreID),
		params.MinTime, params.MaxTime, params.RowCount, params.SizeBytes,
		int(params.CompactionLevel), uint64(params.MaxSequence),
	).Scan(&id)
	if err != nil {
		return 0, wrapQueryErr(err)
	}
	return id, nil
}

func (p *Postgres) CASSortKey(ctx context.Context, partition types.PartitionID, oldKey, newKey types.SortKey) (CASResult, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return CASResult{}, wrapQueryErr(err)
	}
	defer tx.Rollback(ctx)

	var stored []uint32
	var deferred bool
	err = tx.QueryRow(ctx, `
		SELECT sort_key_ids, sort_key_is_deferred
		FROM partition WHERE id = $1 FOR UPDATE`, partition,
	).Scan(&stored, &deferred)
	if err != nil {
		return CASResult{}, wrapQueryErr(err)
	}

	current := columnIDsToSortKey(stored, deferred)
	if !current.Equal(oldKey) {
		return CASResult{Mismatch: true, Observed: current}, nil
	}

	ids := make([]uint32, len(newKey.Columns))
	for i, c := range newKey.Columns {
		ids[i] = uint32(c)
	}
	_, err = tx.Exec(ctx, `
		UPDATE partition SET sort_key_ids = $1, sort_key_is_deferred = false
		WHERE id = $2`, ids, partition)
	if err != nil {
		return CASResult{}, wrapQueryErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return CASResult{}, wrapQueryErr(err)
	}

	return CASResult{Installed: true, Observed: newKey}, nil
}

func (p *Postgres) Commit(ctx context.Context, params CommitParams) ([]types.ParquetFileID, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, wrapQueryErr(err)
	}
	defer tx.Rollback(ctx)

	if len(params.Delete) > 0 {
		if _, err := tx.Exec(ctx, `UPDATE parquet_file SET to_delete = now() WHERE id = ANY($1)`, params.Delete); err != nil {
			return nil, wrapQueryErr(err)
		}
	}
	if len(params.Upgrade) > 0 {
		if _, err := tx.Exec(ctx, `UPDATE parquet_file SET compaction_level = $1 WHERE id = ANY($2)`,
			int(params.TargetLevel), params.Upgrade); err != nil {
			return nil, wrapQueryErr(err)
		}
	}

	ids := make([]types.ParquetFileID, 0, len(params.Create))
	for _, c := range params.Create {
		id, err := createParquetFileTx(ctx, tx, c)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapQueryErr(err)
	}
	return ids, nil
}

func (p *Postgres) FetchFiles(ctx context.Context, partition types.PartitionID) ([]types.ParquetFile, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, namespace_id, table_id, partition_id, object_store_id,
		       min_time, max_time, row_count, size_bytes, compaction_level,
		       max_sequence, created_at
		FROM parquet_file
		WHERE partition_id = $1 AND to_delete IS NULL`, partition)
	if err != nil {
		return nil, wrapQueryErr(err)
	}
	defer rows.Close()

	var files []types.ParquetFile
	for rows.Next() {
		var f types.ParquetFile
		var objStoreID string
		var level int
		var maxSeq uint64
		if err := rows.Scan(&f.ID, &f.Namespace, &f.Table, &f.Partition, &objStoreID,
			&f.MinTime, &f.MaxTime, &f.RowCount, &f.SizeBytes, &level, &maxSeq, &f.CreatedAt); err != nil {
			return nil, wrapQueryErr(err)
		}
		f.ObjectStoreID = types.ObjectStoreID(objStoreID)
		f.CompactionLevel = types.CompactionLevel(level)
		f.MaxSequence = types.SequenceNumber(maxSeq)
		files = append(files, f)
	}
	return files, rows.Err()
}

func (p *Postgres) SortKey(ctx context.Context, partition types.PartitionID) (types.SortKey, error) {
	var stored []uint32
	var deferred bool
	err := p.pool.QueryRow(ctx, `
		SELECT sort_key_ids, sort_key_is_deferred FROM partition WHERE id = $1`, partition,
	).Scan(&stored, &deferred)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.DeferredSortKey(), nil
	}
	if err != nil {
		return types.SortKey{}, wrapQueryErr(err)
	}
	return columnIDsToSortKey(stored, deferred), nil
}

func (p *Postgres) SkipCompaction(ctx context.Context, partition types.PartitionID, reason string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO skipped_compactions (partition_id, reason, skipped_at)
		VALUES ($1, $2, now())
		ON CONFLICT (partition_id) DO UPDATE SET reason = $2, skipped_at = now()`,
		partition, reason)
	return wrapQueryErr(err)
}

func columnIDsToSortKey(ids []uint32, deferred bool) types.SortKey {
	if deferred {
		return types.DeferredSortKey()
	}
	cols := make([]types.ColumnID, len(ids))
	for i, v := range ids {
		cols[i] = types.ColumnID(v)
	}
	return types.ProvidedSortKey(cols)
}

func wrapQueryErr(err error) error {
	if err == nil {
		return nil
	}
	return types.NewError(types.ErrUnknown, "catalog query failed", err)
}
