package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/IgorDroma/reports-admin/internal/logging"
	"github.com/IgorDroma/reports-admin/internal/parser"
)

// Service drives import runs against an explicitly passed store handle.
// One run proceeds strictly sequentially: parse, classify, resolve
// references, write chunks, record the ledger row.
type Service struct {
	store       Store
	maxFileSize int64
	chunkSize   int
}

// ServiceOptions tune a Service.
type ServiceOptions struct {
	// MaxFileSize is the largest accepted source file in bytes.
	// Zero means 50MB.
	MaxFileSize int64

	// ChunkSize is the bulk-write chunk size. Zero means DefaultChunkSize.
	ChunkSize int
}

// NewService creates a Service over the given store.
func NewService(store Store, opts ServiceOptions) *Service {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 50 * 1024 * 1024
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Service{
		store:       store,
		maxFileSize: opts.MaxFileSize,
		chunkSize:   opts.ChunkSize,
	}
}

// Import executes one import run.
//
// Container-level failures (unknown dataset, unreadable file, missing
// required header) abort before anything is written and return only an
// error. Once writing has begun, the returned result always carries the
// batch id and the rows written so far, alongside a non-nil error if a
// chunk failed; the batch stays in the ledger for manual rollback.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	startTime := time.Now()

	def, ok := GetDataset(req.Dataset)
	if !ok {
		return nil, fmt.Errorf("unknown dataset: %s", req.Dataset)
	}
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("no source files supplied")
	}

	// Parse every container up front: an unreadable file fails the whole
	// run before any row is processed.
	doc := &parser.Document{}
	fileNames := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		if int64(len(f.Data)) > s.maxFileSize {
			return nil, fmt.Errorf("file %q exceeds %d byte limit", f.Name, s.maxFileSize)
		}

		// Sniff the container even when the dataset declares a format:
		// a recognizable file of the wrong kind is rejected here with a
		// clear message instead of failing deep inside the parser.
		format := def.Format
		sniffed, sniffErr := parser.Sniff(f.Name, f.Data)
		switch {
		case format == "":
			if sniffErr != nil {
				return nil, fmt.Errorf("file %q: %w", f.Name, sniffErr)
			}
			format = sniffed
		case sniffErr == nil && !parser.Compatible(format, sniffed):
			return nil, fmt.Errorf("file %q looks like %s, dataset %s expects %s",
				f.Name, sniffed, def.Key, format)
		}

		fileDoc, err := parser.Parse(format, f.Data)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", f.Name, err)
		}
		if def.ValidateDoc != nil {
			if err := def.ValidateDoc(fileDoc); err != nil {
				return nil, fmt.Errorf("file %q: %w", f.Name, err)
			}
		}

		if doc.Columns == nil {
			doc.Columns = fileDoc.Columns
		} else if !slices.Equal(fileDoc.Columns, doc.Columns) {
			return nil, fmt.Errorf("file %q columns differ from %q; files in one run must share a layout",
				f.Name, fileNames[0])
		}
		doc.Rows = append(doc.Rows, fileDoc.Rows...)
		fileNames = append(fileNames, f.Name)
	}

	records, skips := ClassifyDocument(def, doc)

	// The batch id exists before any write, so concurrent runs can never
	// collide and a failed run is already addressable for rollback.
	batchID := uuid.New()

	source := req.Source
	if source == "" {
		source = def.DefaultSource
	}

	log := logging.WithFields(ctx,
		"batch_id", batchID.String(),
		"dataset", def.Key,
	)
	log.Info("import started",
		"files", len(req.Files),
		"rows", len(doc.Rows),
		"accepted", len(records),
		"skipped", len(skips),
	)

	// Fill in foreign keys before any record is written.
	if def.Kind == KindAct {
		resolver := NewResolver(s.store)
		for ri := range records {
			for ii := range records[ri].Items {
				id, err := resolver.ResolveProduct(ctx, records[ri].Items[ii])
				if err != nil {
					return nil, fmt.Errorf("resolve references: %w", err)
				}
				records[ri].Items[ii].ProductID = id
			}
		}
	}

	writer := NewWriter(s.store, s.chunkSize)
	written, writeErr := writer.Write(ctx, batchID, def.Kind, records)

	result := &ImportResult{
		BatchID:     batchID,
		Dataset:     def.Key,
		FileName:    strings.Join(fileNames, ", "),
		Attempted:   len(doc.Rows),
		Imported:    written,
		Skipped:     len(skips),
		Skips:       skips,
		TotalAmount: totalLocalAmount(records[:written]),
		Duration:    time.Since(startTime),
	}

	// The ledger row is written for failed runs too, with the counts that
	// actually landed, so a partial batch is visible and rollbackable.
	batch := ImportBatch{
		ID:           batchID,
		Dataset:      def.Key,
		Source:       source,
		FileName:     result.FileName,
		SuccessCount: written,
		SkippedCount: len(skips),
		TotalAmount:  result.TotalAmount,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.InsertBatch(ctx, batch); err != nil {
		if writeErr != nil {
			// The write failure is the primary fault; the orphaned rows
			// still carry the batch id and can be deleted by it.
			log.Error("ledger row not written after failed run", "error", err)
		} else {
			writeErr = fmt.Errorf("record import batch: %w", err)
		}
	}

	if writeErr != nil {
		result.Error = writeErr.Error()
		log.Error("import failed", "written", written, "error", writeErr)
		return result, writeErr
	}

	log.Info("import completed",
		"imported", result.Imported,
		"skipped", result.Skipped,
		"total_amount", result.TotalAmount.String(),
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// totalLocalAmount sums the local-currency value of the given records.
func totalLocalAmount(recs []Record) decimal.Decimal {
	total := decimal.Zero
	for _, r := range recs {
		total = total.Add(r.LocalAmount)
	}
	return Round2(total)
}

// ListBatches returns the import ledger, newest first.
func (s *Service) ListBatches(ctx context.Context) ([]ImportBatch, error) {
	return s.store.ListBatches(ctx)
}

// GetBatch returns one ledger row.
func (s *Service) GetBatch(ctx context.Context, id uuid.UUID) (*ImportBatch, error) {
	return s.store.GetBatch(ctx, id)
}

// Rollback deletes every canonical record tagged with the batch id, then
// the ledger row itself. It is idempotent: rolling back an unknown or
// already-rolled-back batch id reports Found=false and deletes nothing.
func (s *Service) Rollback(ctx context.Context, id uuid.UUID) (RollbackResult, error) {
	result := RollbackResult{BatchID: id}

	_, err := s.store.GetBatch(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		// Records are only reachable through a ledger row, and the ledger
		// row is deleted last, so an unknown id means nothing remains.
		return result, nil
	case err != nil:
		return result, fmt.Errorf("look up batch: %w", err)
	}
	result.Found = true

	deleted, err := s.store.DeleteBatchRecords(ctx, id)
	if err != nil {
		return result, fmt.Errorf("delete batch records: %w", err)
	}
	result.RowsDeleted = deleted

	if err := s.store.DeleteBatch(ctx, id); err != nil {
		return result, fmt.Errorf("delete batch row: %w", err)
	}

	logging.FromContext(ctx).Info("batch rolled back",
		"batch_id", id.String(),
		"rows_deleted", deleted,
	)
	return result, nil
}
