// Package core implements the batch import engine: normalization,
// classification, reference resolution, chunked writing, and the import
// ledger with compensating rollback. It has no HTTP dependencies and is
// driven through an explicitly passed store handle.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/IgorDroma/reports-admin/internal/parser"
)

// Sentinel errors surfaced by Store implementations.
var (
	// ErrNotFound signals a point lookup that matched no row.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate signals an insert rejected by a uniqueness constraint.
	// The resolver treats it as "someone else just created it".
	ErrDuplicate = errors.New("duplicate key")
)

// Kind discriminates the canonical record variants.
type Kind string

const (
	KindDonation    Kind = "donation"
	KindAct         Kind = "act"
	KindPropertyAct Kind = "property-act"
)

// Record is one canonical, store-ready record. It is a tagged variant:
// the shared fields are always set, the act fields only for KindAct and
// KindPropertyAct. Writers dispatch on Kind.
type Record struct {
	Kind       Kind
	OccurredAt time.Time
	Amount     decimal.Decimal // reportable amount in Currency
	Currency   string          // 3-letter code
	Note       string          // free-text purpose or comment

	// LocalAmount is the local-currency (UAH) reference value. For rows
	// where a foreign-currency pair took precedence it retains the original
	// hryvnia amount; otherwise it equals Amount.
	LocalAmount decimal.Decimal

	// Act fields.
	ExternalID string // external act id or number from the source system
	Receiver   string // mapped receiver label (KindAct)
	Donor      string // donor name (KindPropertyAct)
	Items      []LineItem
}

// LineItem is one nomenclature position of an act.
type LineItem struct {
	ProductKey   string // natural key from the source system
	ProductName  string
	CategoryName string
	ProductID    uuid.UUID // filled in by the resolver
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	LineSum      decimal.Decimal
}

// SkipClass separates data errors from business-rule exclusions.
type SkipClass string

const (
	SkipMalformed SkipClass = "malformed"
	SkipExcluded  SkipClass = "excluded"
)

// Skip is one row that was not imported, with the reasons why.
type Skip struct {
	Class   SkipClass  `json:"class"`
	Reasons []string   `json:"reasons"`
	Row     parser.Row `json:"row"`
}

// ImportBatch is the ledger row summarizing one import run.
type ImportBatch struct {
	ID           uuid.UUID       `json:"id"`
	Dataset      string          `json:"dataset"`
	Source       string          `json:"source"`
	FileName     string          `json:"fileName"`
	SuccessCount int             `json:"successCount"`
	SkippedCount int             `json:"skippedCount"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// SourceFile is one uploaded source file.
type SourceFile struct {
	Name string
	Data []byte
}

// ImportRequest describes one import run.
type ImportRequest struct {
	Dataset string
	Source  string // optional source label; dataset default applies when empty
	Files   []SourceFile
}

// ImportResult is the final accounting of one run.
// Attempted == Imported + Skipped holds for every run, including failed
// ones: rows never reached by a failed write stay out of Attempted's
// imported share and are reported through Error instead.
type ImportResult struct {
	BatchID     uuid.UUID       `json:"batchId"`
	Dataset     string          `json:"dataset"`
	FileName    string          `json:"fileName"`
	Attempted   int             `json:"attempted"`
	Imported    int             `json:"imported"`
	Skipped     int             `json:"skipped"`
	Skips       []Skip          `json:"skips,omitempty"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Duration    time.Duration   `json:"-"`
	Error       string          `json:"error,omitempty"` // non-empty if the run failed
}

// RollbackResult contains the result of a rollback operation.
type RollbackResult struct {
	BatchID     uuid.UUID `json:"batchId"`
	Found       bool      `json:"found"`
	RowsDeleted int64     `json:"rowsDeleted"`
}

// RecordStore persists chunks of canonical records.
// Each call is one bulk write; the writer sizes the slices.
type RecordStore interface {
	InsertDonations(ctx context.Context, batchID uuid.UUID, recs []Record) error
	ReplaceActs(ctx context.Context, batchID uuid.UUID, recs []Record) error
	InsertPropertyActs(ctx context.Context, batchID uuid.UUID, recs []Record) error
}

// Product is a reference entity created lazily during import.
type Product struct {
	ID         uuid.UUID
	Key        string // natural key: external product id
	Name       string
	CategoryID uuid.UUID // zero when uncategorized
}

// Category is the optional parent of a Product, keyed by name.
type Category struct {
	ID   uuid.UUID
	Name string
}

// ReferenceStore resolves and creates reference entities.
// Create methods return ErrDuplicate when a concurrent import won the race.
type ReferenceStore interface {
	GetProductID(ctx context.Context, key string) (uuid.UUID, error)
	CreateProduct(ctx context.Context, p Product) error
	GetCategoryID(ctx context.Context, name string) (uuid.UUID, error)
	CreateCategory(ctx context.Context, c Category) error
}

// LedgerStore persists import batch summaries and supports rollback.
type LedgerStore interface {
	InsertBatch(ctx context.Context, b ImportBatch) error
	GetBatch(ctx context.Context, id uuid.UUID) (*ImportBatch, error)
	ListBatches(ctx context.Context) ([]ImportBatch, error)
	DeleteBatchRecords(ctx context.Context, id uuid.UUID) (int64, error)
	DeleteBatch(ctx context.Context, id uuid.UUID) error
}

// Store is the full relational-store contract the engine is threaded with.
type Store interface {
	RecordStore
	ReferenceStore
	LedgerStore
}
