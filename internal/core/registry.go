package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/IgorDroma/reports-admin/internal/parser"
)

// Definition describes one importable dataset: its container format, the
// record kind it produces, and the per-row classification function.
type Definition struct {
	// Key uniquely identifies the dataset: "donations", "acts".
	Key string

	// Label is the human-readable name.
	Label string

	// Kind is the canonical record kind this dataset produces.
	Kind Kind

	// Format is the expected container format of source files.
	Format parser.Format

	// DefaultSource is the source label recorded on the batch when the
	// caller does not supply one.
	DefaultSource string

	// ValidateDoc optionally rejects a whole parsed document before any
	// row is classified (missing required header columns, wrong shape).
	// A non-nil error is a container error: nothing is written.
	ValidateDoc func(doc *parser.Document) error

	// Classify reduces one raw row to either a canonical record or a skip.
	// Exactly one of the results is non-nil. cols carries the document's
	// header order for tabular sources, nil for JSON.
	Classify func(row parser.Row, cols []string) (*Record, *Skip)
}

var (
	registry   = make(map[string]Definition)
	registryMu sync.RWMutex
)

// Register adds a dataset definition to the registry.
// Panics if a dataset with the same key is already registered.
func Register(def Definition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Key]; exists {
		panic(fmt.Sprintf("dataset already registered: %s", def.Key))
	}
	if def.Classify == nil {
		panic(fmt.Sprintf("dataset %s has no classifier", def.Key))
	}

	registry[def.Key] = def
}

// GetDataset returns a dataset definition by key.
// Returns false if not found.
func GetDataset(key string) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// Datasets returns all registered dataset definitions, sorted by key.
func Datasets() []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Definition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// DatasetCount returns the number of registered datasets.
func DatasetCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// ClearDatasets removes all registered datasets.
// Primarily useful for testing.
func ClearDatasets() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Definition)
}
