package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/IgorDroma/reports-admin/internal/core"
)

var donationColumns = []string{
	"batch_id", "occurred_at", "amount", "currency", "local_amount", "note",
}

// InsertDonations bulk-loads donation rows via the COPY protocol. Every row
// carries the batch id so a batch can be removed in one statement later.
func (s *Store) InsertDonations(ctx context.Context, batchID uuid.UUID, recs []core.Record) error {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []any{
			pgUUID(batchID),
			r.OccurredAt,
			pgNumeric(r.Amount),
			r.Currency,
			pgNumeric(r.LocalAmount),
			r.Note,
		})
	}

	_, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"donations"},
		donationColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy donations: %w", mapError(err))
	}
	return nil
}
