package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Writer persists accepted records in bounded-size sequential chunks under
// an already-allocated batch id.
//
// Chunk i+1 is only attempted after chunk i succeeded. On the first chunk
// failure the writer stops and reports the error together with the rows
// written so far; it performs no cleanup. The store offers no cross-chunk
// transaction, so a failed run leaves a partially written batch for the
// ledger's compensating rollback.
//
// The written count only covers whole chunks. Act chunks are persisted one
// act at a time, so a mid-chunk failure can leave some acts of the failing
// chunk in the store; those rows still carry the batch id and are removed
// by rollback along with the rest.
type Writer struct {
	store     RecordStore
	chunkSize int
}

// DefaultChunkSize keeps a single bulk write well under request payload
// limits regardless of total row count.
const DefaultChunkSize = 500

// NewWriter creates a writer with the given chunk size.
// A non-positive size falls back to DefaultChunkSize.
func NewWriter(store RecordStore, chunkSize int) *Writer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Writer{store: store, chunkSize: chunkSize}
}

// Write persists the records for one import run. It returns the number of
// records successfully written; when that is less than len(recs) the
// returned error identifies the failing chunk.
func (w *Writer) Write(ctx context.Context, batchID uuid.UUID, kind Kind, recs []Record) (int, error) {
	written := 0

	for start := 0; start < len(recs); start += w.chunkSize {
		end := start + w.chunkSize
		if end > len(recs) {
			end = len(recs)
		}
		chunk := recs[start:end]

		if err := w.writeChunk(ctx, batchID, kind, chunk); err != nil {
			return written, fmt.Errorf("chunk %d (rows %d-%d): %w",
				start/w.chunkSize+1, start+1, end, err)
		}
		written += len(chunk)
	}

	return written, nil
}

// writeChunk dispatches one bulk write on the record kind.
func (w *Writer) writeChunk(ctx context.Context, batchID uuid.UUID, kind Kind, chunk []Record) error {
	switch kind {
	case KindDonation:
		return w.store.InsertDonations(ctx, batchID, chunk)
	case KindAct:
		return w.store.ReplaceActs(ctx, batchID, chunk)
	case KindPropertyAct:
		return w.store.InsertPropertyActs(ctx, batchID, chunk)
	default:
		return fmt.Errorf("unknown record kind: %q", kind)
	}
}
