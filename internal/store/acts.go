package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/IgorDroma/reports-admin/internal/core"
)

const upsertActQuery = `
INSERT INTO acts (batch_id, external_id, occurred_at, receiver, total_amount)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (external_id) DO UPDATE SET
	batch_id = EXCLUDED.batch_id,
	occurred_at = EXCLUDED.occurred_at,
	receiver = EXCLUDED.receiver,
	total_amount = EXCLUDED.total_amount
RETURNING id
`

var actItemColumns = []string{
	"act_id", "product_id", "product_name", "qty", "unit_price", "line_sum",
}

// ReplaceActs writes distribution acts keyed by their external id. A
// re-imported act overwrites the previous version: its header row is
// updated in place and its line items are replaced wholesale, so the
// operation is safe to repeat.
func (s *Store) ReplaceActs(ctx context.Context, batchID uuid.UUID, recs []core.Record) error {
	for i, r := range recs {
		if err := s.replaceAct(ctx, batchID, r); err != nil {
			return fmt.Errorf("act %d (%s): %w", i, r.ExternalID, err)
		}
	}
	return nil
}

func (s *Store) replaceAct(ctx context.Context, batchID uuid.UUID, r core.Record) error {
	var actID uuid.UUID
	err := s.db.QueryRow(ctx, upsertActQuery,
		pgUUID(batchID),
		r.ExternalID,
		r.OccurredAt,
		r.Receiver,
		pgNumeric(r.Amount),
	).Scan(&actID)
	if err != nil {
		return fmt.Errorf("upsert act: %w", mapError(err))
	}

	// act_items has no history: the current item set always mirrors the
	// latest import of the act.
	if _, err := s.db.Exec(ctx, `DELETE FROM act_items WHERE act_id = $1`, pgUUID(actID)); err != nil {
		return fmt.Errorf("clear act items: %w", mapError(err))
	}

	rows := make([][]any, 0, len(r.Items))
	for _, it := range r.Items {
		rows = append(rows, []any{
			pgUUID(actID),
			pgUUID(it.ProductID),
			it.ProductName,
			pgNumeric(it.Quantity),
			pgNumeric(it.UnitPrice),
			pgNumeric(it.LineSum),
		})
	}
	if _, err := s.db.CopyFrom(ctx, pgx.Identifier{"act_items"}, actItemColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy act items: %w", mapError(err))
	}
	return nil
}

const insertPropertyActQuery = `
INSERT INTO property_acts (batch_id, external_id, occurred_at, donor, receiver, total_amount)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`

var propertyItemColumns = []string{
	"act_id", "name", "qty", "unit_price", "line_sum",
}

// InsertPropertyActs writes property transfer acts. Items are descriptive
// rows without a product reference.
func (s *Store) InsertPropertyActs(ctx context.Context, batchID uuid.UUID, recs []core.Record) error {
	for i, r := range recs {
		var actID uuid.UUID
		err := s.db.QueryRow(ctx, insertPropertyActQuery,
			pgUUID(batchID),
			r.ExternalID,
			r.OccurredAt,
			r.Donor,
			r.Receiver,
			pgNumeric(r.Amount),
		).Scan(&actID)
		if err != nil {
			return fmt.Errorf("property act %d (%s): %w", i, r.ExternalID, mapError(err))
		}

		rows := make([][]any, 0, len(r.Items))
		for _, it := range r.Items {
			rows = append(rows, []any{
				pgUUID(actID),
				it.ProductName,
				pgNumeric(it.Quantity),
				pgNumeric(it.UnitPrice),
				pgNumeric(it.LineSum),
			})
		}
		if _, err := s.db.CopyFrom(ctx, pgx.Identifier{"property_act_items"}, propertyItemColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("property act %d items: %w", i, mapError(err))
		}
	}
	return nil
}
