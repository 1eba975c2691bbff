package core

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IgorDroma/reports-admin/internal/parser"
)

// fakeStore is a full in-memory Store. Records are tagged with their batch
// id the way the real tables are, so rollback behavior is observable.
type fakeStore struct {
	*fakeRefStore

	records map[uuid.UUID][]Record
	batches map[uuid.UUID]ImportBatch

	failInsertFromCall int // 1-based, 0 means never
	persistBeforeFail  int // rows of the failing call persisted anyway
	insertCalls        int
	failInsertBatch    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		fakeRefStore: newFakeRefStore(),
		records:      make(map[uuid.UUID][]Record),
		batches:      make(map[uuid.UUID]ImportBatch),
	}
}

func (f *fakeStore) insert(batchID uuid.UUID, recs []Record) error {
	f.insertCalls++
	if f.failInsertFromCall > 0 && f.insertCalls >= f.failInsertFromCall {
		if f.persistBeforeFail > 0 && f.persistBeforeFail < len(recs) {
			f.records[batchID] = append(f.records[batchID], recs[:f.persistBeforeFail]...)
		}
		return errors.New("connection reset")
	}
	f.records[batchID] = append(f.records[batchID], recs...)
	return nil
}

func (f *fakeStore) InsertDonations(_ context.Context, batchID uuid.UUID, recs []Record) error {
	return f.insert(batchID, recs)
}

func (f *fakeStore) ReplaceActs(_ context.Context, batchID uuid.UUID, recs []Record) error {
	return f.insert(batchID, recs)
}

func (f *fakeStore) InsertPropertyActs(_ context.Context, batchID uuid.UUID, recs []Record) error {
	return f.insert(batchID, recs)
}

func (f *fakeStore) InsertBatch(_ context.Context, b ImportBatch) error {
	if f.failInsertBatch {
		return errors.New("connection reset")
	}
	f.batches[b.ID] = b
	return nil
}

func (f *fakeStore) GetBatch(_ context.Context, id uuid.UUID) (*ImportBatch, error) {
	b, ok := f.batches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (f *fakeStore) ListBatches(_ context.Context) ([]ImportBatch, error) {
	out := make([]ImportBatch, 0, len(f.batches))
	for _, b := range f.batches {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeStore) DeleteBatchRecords(_ context.Context, id uuid.UUID) (int64, error) {
	n := int64(len(f.records[id]))
	delete(f.records, id)
	return n, nil
}

func (f *fakeStore) DeleteBatch(_ context.Context, id uuid.UUID) error {
	delete(f.batches, id)
	return nil
}

// registerTestDataset installs a JSON dataset whose rows carry "amount"
// and optional "bad" fields, and restores a clean registry afterwards.
func registerTestDataset(t *testing.T) {
	t.Helper()
	ClearDatasets()
	t.Cleanup(ClearDatasets)

	Register(Definition{
		Key:           "test-donations",
		Label:         "Test donations",
		Kind:          KindDonation,
		Format:        parser.FormatJSON,
		DefaultSource: "test",
		Classify: func(row parser.Row, _ []string) (*Record, *Skip) {
			if row.String("bad") != "" {
				return nil, &Skip{Class: SkipMalformed, Reasons: []string{row.String("bad")}}
			}
			amount, ok := ParseAmount(row["amount"])
			if !ok {
				return nil, &Skip{Class: SkipMalformed, Reasons: []string{"missing or invalid amount"}}
			}
			return &Record{Kind: KindDonation, Amount: amount, Currency: LocalCurrency, LocalAmount: amount}, nil
		},
	})
}

func donationFile(t *testing.T, amounts ...string) SourceFile {
	t.Helper()
	body := "["
	for i, a := range amounts {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"amount": %q}`, a)
	}
	body += "]"
	return SourceFile{Name: "donations.json", Data: []byte(body)}
}

func TestServiceImportHappyPath(t *testing.T) {
	registerTestDataset(t)
	store := newFakeStore()
	svc := NewService(store, ServiceOptions{})

	result, err := svc.Import(context.Background(), ImportRequest{
		Dataset: "test-donations",
		Files:   []SourceFile{donationFile(t, "100.50", "200", "49.50")},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, "350", result.TotalAmount.String())
	assert.Len(t, store.records[result.BatchID], 3)

	batch, ok := store.batches[result.BatchID]
	require.True(t, ok, "ledger row must exist")
	assert.Equal(t, 3, batch.SuccessCount)
	assert.Equal(t, "test", batch.Source, "dataset default source applies")
	assert.Equal(t, "donations.json", batch.FileName)
}

func TestServiceImportCountsSkips(t *testing.T) {
	registerTestDataset(t)
	store := newFakeStore()
	svc := NewService(store, ServiceOptions{})

	result, err := svc.Import(context.Background(), ImportRequest{
		Dataset: "test-donations",
		Source:  "manual",
		Files:   []SourceFile{donationFile(t, "100", "not a number", "200")},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Skips, 1)
	assert.Equal(t, []string{"missing or invalid amount"}, result.Skips[0].Reasons)
	assert.Equal(t, "manual", store.batches[result.BatchID].Source)
}

func TestServiceImportUnknownDataset(t *testing.T) {
	registerTestDataset(t)
	svc := NewService(newFakeStore(), ServiceOptions{})

	_, err := svc.Import(context.Background(), ImportRequest{
		Dataset: "nope",
		Files:   []SourceFile{donationFile(t, "1")},
	})
	require.Error(t, err)
}

func TestServiceImportContainerErrorWritesNothing(t *testing.T) {
	registerTestDataset(t)
	store := newFakeStore()
	svc := NewService(store, ServiceOptions{})

	_, err := svc.Import(context.Background(), ImportRequest{
		Dataset: "test-donations",
		Files: []SourceFile{
			donationFile(t, "100"),
			{Name: "broken.json", Data: []byte("{truncated")},
		},
	})
	require.Error(t, err)
	assert.Empty(t, store.records, "no rows may land when a container fails")
	assert.Empty(t, store.batches)
}

func TestServiceImportRejectsWrongContainer(t *testing.T) {
	registerTestDataset(t)
	store := newFakeStore()
	svc := NewService(store, ServiceOptions{})

	_, err := svc.Import(context.Background(), ImportRequest{
		Dataset: "test-donations",
		Files:   []SourceFile{{Name: "statement.zip", Data: csvZip(t, "amount\n100\n")}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "looks like zip-csv")
	assert.Empty(t, store.records)
	assert.Empty(t, store.batches)
}

// registerZipDataset installs a ZIP-CSV dataset so header discovery runs
// per file.
func registerZipDataset(t *testing.T) {
	t.Helper()
	ClearDatasets()
	t.Cleanup(ClearDatasets)

	Register(Definition{
		Key:           "test-statement",
		Label:         "Test statement",
		Kind:          KindDonation,
		Format:        parser.FormatZipCSV,
		DefaultSource: "test",
		Classify: func(row parser.Row, _ []string) (*Record, *Skip) {
			amount, ok := ParseAmount(row["amount"])
			if !ok {
				return nil, &Skip{Class: SkipMalformed, Reasons: []string{"missing or invalid amount"}}
			}
			return &Record{Kind: KindDonation, Amount: amount, Currency: LocalCurrency, LocalAmount: amount}, nil
		},
	})
}

func csvZip(t *testing.T, csv string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("statement.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestServiceImportMergesFilesWithSharedLayout(t *testing.T) {
	registerZipDataset(t)
	store := newFakeStore()
	svc := NewService(store, ServiceOptions{})

	result, err := svc.Import(context.Background(), ImportRequest{
		Dataset: "test-statement",
		Files: []SourceFile{
			{Name: "jan.zip", Data: csvZip(t, "amount,note\n100,a\n")},
			{Name: "feb.zip", Data: csvZip(t, "amount,note\n200,b\n250,c\n")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, "550", result.TotalAmount.String())
}

func TestServiceImportRejectsMismatchedFileLayouts(t *testing.T) {
	registerZipDataset(t)
	store := newFakeStore()
	svc := NewService(store, ServiceOptions{})

	_, err := svc.Import(context.Background(), ImportRequest{
		Dataset: "test-statement",
		Files: []SourceFile{
			{Name: "jan.zip", Data: csvZip(t, "amount,note\n100,a\n")},
			{Name: "feb.zip", Data: csvZip(t, "sum,comment\n200,b\n")},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must share a layout")
	assert.Empty(t, store.records, "no rows may land when file layouts clash")
	assert.Empty(t, store.batches)
}

func TestServiceImportFileSizeLimit(t *testing.T) {
	registerTestDataset(t)
	svc := NewService(newFakeStore(), ServiceOptions{MaxFileSize: 8})

	_, err := svc.Import(context.Background(), ImportRequest{
		Dataset: "test-donations",
		Files:   []SourceFile{donationFile(t, "100", "200")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "byte limit")
}

func TestServiceImportPartialFailureKeepsLedgerRow(t *testing.T) {
	registerTestDataset(t)
	store := newFakeStore()
	store.failInsertFromCall = 3
	svc := NewService(store, ServiceOptions{ChunkSize: 2})

	result, err := svc.Import(context.Background(), ImportRequest{
		Dataset: "test-donations",
		Files:   []SourceFile{donationFile(t, "1", "2", "3", "4", "5", "6")},
	})
	require.Error(t, err)
	require.NotNil(t, result, "partial accounting must come back with the error")

	assert.Equal(t, 4, result.Imported, "two chunks landed before the failure")
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, "10", result.TotalAmount.String(), "total covers written rows only")

	// The partial batch is visible in the ledger and addressable by id.
	batch, ok := store.batches[result.BatchID]
	require.True(t, ok)
	assert.Equal(t, 4, batch.SuccessCount)
	assert.Len(t, store.records[result.BatchID], 4)

	// Rolling the partial batch back removes exactly the written rows and
	// the ledger entry.
	rollback, err := svc.Rollback(context.Background(), result.BatchID)
	require.NoError(t, err)
	assert.True(t, rollback.Found)
	assert.Equal(t, int64(4), rollback.RowsDeleted)
	assert.Empty(t, store.records[result.BatchID])
	assert.NotContains(t, store.batches, result.BatchID)
}

func TestServiceImportMidChunkFailureRolledBackFully(t *testing.T) {
	ClearDatasets()
	t.Cleanup(ClearDatasets)

	// Acts persist one at a time inside a chunk, so a chunk can fail
	// after some of its acts already landed.
	Register(Definition{
		Key:    "test-acts",
		Kind:   KindAct,
		Format: parser.FormatJSON,
		Classify: func(row parser.Row, _ []string) (*Record, *Skip) {
			return &Record{Kind: KindAct, ExternalID: row.String("id"), Amount: decimal.NewFromInt(1)}, nil
		},
	})

	store := newFakeStore()
	store.failInsertFromCall = 3
	store.persistBeforeFail = 1
	svc := NewService(store, ServiceOptions{ChunkSize: 2})

	result, err := svc.Import(context.Background(), ImportRequest{
		Dataset: "test-acts",
		Files: []SourceFile{{Name: "acts.json", Data: []byte(
			`[{"id":"A-1"},{"id":"A-2"},{"id":"A-3"},{"id":"A-4"},{"id":"A-5"},{"id":"A-6"}]`)}},
	})
	require.Error(t, err)
	require.NotNil(t, result)

	// The count covers whole chunks only; the stray act of the failed
	// chunk is in the store but not in the count.
	assert.Equal(t, 4, result.Imported)
	assert.Len(t, store.records[result.BatchID], 5)

	// Rollback deletes by batch id, so the stray act goes too.
	rollback, err := svc.Rollback(context.Background(), result.BatchID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rollback.RowsDeleted)
	assert.Empty(t, store.records[result.BatchID])
}

func TestServiceImportLedgerFailureSurfaces(t *testing.T) {
	registerTestDataset(t)
	store := newFakeStore()
	store.failInsertBatch = true
	svc := NewService(store, ServiceOptions{})

	result, err := svc.Import(context.Background(), ImportRequest{
		Dataset: "test-donations",
		Files:   []SourceFile{donationFile(t, "100")},
	})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Imported, "records landed even though the ledger write failed")
}

func TestServiceRollback(t *testing.T) {
	registerTestDataset(t)
	store := newFakeStore()
	svc := NewService(store, ServiceOptions{})

	keep, err := svc.Import(context.Background(), ImportRequest{
		Dataset: "test-donations",
		Files:   []SourceFile{donationFile(t, "10", "20")},
	})
	require.NoError(t, err)

	gone, err := svc.Import(context.Background(), ImportRequest{
		Dataset: "test-donations",
		Files:   []SourceFile{donationFile(t, "30", "40", "50")},
	})
	require.NoError(t, err)

	result, err := svc.Rollback(context.Background(), gone.BatchID)
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, int64(3), result.RowsDeleted)

	// The rolled-back batch is fully gone, the other batch untouched.
	assert.Empty(t, store.records[gone.BatchID])
	assert.NotContains(t, store.batches, gone.BatchID)
	assert.Len(t, store.records[keep.BatchID], 2)
	assert.Contains(t, store.batches, keep.BatchID)
}

func TestServiceRollbackIdempotent(t *testing.T) {
	registerTestDataset(t)
	store := newFakeStore()
	svc := NewService(store, ServiceOptions{})

	imported, err := svc.Import(context.Background(), ImportRequest{
		Dataset: "test-donations",
		Files:   []SourceFile{donationFile(t, "10")},
	})
	require.NoError(t, err)

	first, err := svc.Rollback(context.Background(), imported.BatchID)
	require.NoError(t, err)
	assert.True(t, first.Found)

	second, err := svc.Rollback(context.Background(), imported.BatchID)
	require.NoError(t, err)
	assert.False(t, second.Found)
	assert.Zero(t, second.RowsDeleted)
}

func TestServiceRollbackUnknownBatch(t *testing.T) {
	registerTestDataset(t)
	svc := NewService(newFakeStore(), ServiceOptions{})

	result, err := svc.Rollback(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestServiceImportResolvesActReferences(t *testing.T) {
	ClearDatasets()
	t.Cleanup(ClearDatasets)

	Register(Definition{
		Key:    "test-acts",
		Kind:   KindAct,
		Format: parser.FormatJSON,
		Classify: func(row parser.Row, _ []string) (*Record, *Skip) {
			return &Record{
				Kind:       KindAct,
				ExternalID: row.String("id"),
				Amount:     decimal.NewFromInt(10),
				Items: []LineItem{
					{ProductKey: "P-1", ProductName: "Аптечка", Quantity: decimal.NewFromInt(1), LineSum: decimal.NewFromInt(10)},
				},
			}, nil
		},
	})

	store := newFakeStore()
	svc := NewService(store, ServiceOptions{})

	result, err := svc.Import(context.Background(), ImportRequest{
		Dataset: "test-acts",
		Files:   []SourceFile{{Name: "acts.json", Data: []byte(`[{"id": "A-1"}, {"id": "A-2"}]`)}},
	})
	require.NoError(t, err)

	recs := store.records[result.BatchID]
	require.Len(t, recs, 2)

	// Both acts name the same product: one stored row, same id on both.
	require.Contains(t, store.products, "P-1")
	want := store.products["P-1"]
	for _, r := range recs {
		require.Len(t, r.Items, 1)
		assert.Equal(t, want, r.Items[0].ProductID)
	}
	assert.Equal(t, 1, store.productCreates)
}
