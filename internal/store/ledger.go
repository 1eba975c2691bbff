package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/IgorDroma/reports-admin/internal/core"
)

const insertBatchQuery = `
INSERT INTO import_batches (id, dataset, source, file_name, success_count, skipped_count, total_amount, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

const selectBatchColumns = `
SELECT id, dataset, source, file_name, success_count, skipped_count, total_amount, created_at
FROM import_batches
`

// InsertBatch records a completed (or partially completed) import in the
// ledger. It is written after the record rows, so a ledger entry always
// describes rows that are actually present.
func (s *Store) InsertBatch(ctx context.Context, b core.ImportBatch) error {
	_, err := s.db.Exec(ctx, insertBatchQuery,
		pgUUID(b.ID),
		b.Dataset,
		b.Source,
		b.FileName,
		b.SuccessCount,
		b.SkippedCount,
		pgNumeric(b.TotalAmount),
		b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert batch %s: %w", b.ID, mapError(err))
	}
	return nil
}

func (s *Store) GetBatch(ctx context.Context, id uuid.UUID) (*core.ImportBatch, error) {
	row := s.db.QueryRow(ctx, selectBatchColumns+` WHERE id = $1`, pgUUID(id))
	b, err := scanBatch(row)
	if err != nil {
		return nil, mapError(err)
	}
	return b, nil
}

// ListBatches returns the ledger newest first.
func (s *Store) ListBatches(ctx context.Context) ([]core.ImportBatch, error) {
	rows, err := s.db.Query(ctx, selectBatchColumns+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var batches []core.ImportBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}

// DeleteBatchRecords removes every record row a batch wrote, across all
// record tables. Item rows hang off their act rows and go with them.
// Returns the number of top-level rows removed.
func (s *Store) DeleteBatchRecords(ctx context.Context, id uuid.UUID) (int64, error) {
	var total int64
	for _, table := range []string{"donations", "acts", "property_acts"} {
		tag, err := s.db.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE batch_id = $1`, table), pgUUID(id),
		)
		if err != nil {
			return total, fmt.Errorf("delete %s for batch %s: %w", table, id, mapError(err))
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func (s *Store) DeleteBatch(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM import_batches WHERE id = $1`, pgUUID(id))
	if err != nil {
		return fmt.Errorf("delete batch %s: %w", id, mapError(err))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*core.ImportBatch, error) {
	var (
		b     core.ImportBatch
		total pgtype.Numeric
	)
	err := row.Scan(&b.ID, &b.Dataset, &b.Source, &b.FileName,
		&b.SuccessCount, &b.SkippedCount, &total, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.TotalAmount = fromNumeric(total)
	return &b, nil
}
