package datasets

import (
	"fmt"
	"slices"

	"github.com/IgorDroma/reports-admin/internal/core"
	"github.com/IgorDroma/reports-admin/internal/parser"
)

// Mono personal-account export: a ZIP of CSV statements with fixed Ukrainian
// headers and separate date and time columns. Everything is hryvnia.
const (
	monoDateColumn   = "Дата платежу"
	monoTimeColumn   = "Час платежу"
	monoAmountColumn = "Сума платежу"
)

func init() {
	core.Register(core.Definition{
		Key:           "donations-mono",
		Label:         "Donations (Mono CSV archive)",
		Kind:          core.KindDonation,
		Format:        parser.FormatZipCSV,
		DefaultSource: "mono",
		ValidateDoc:   validateMonoDoc,
		Classify:      classifyMonoRow,
	})
}

func validateMonoDoc(doc *parser.Document) error {
	for _, required := range []string{monoDateColumn, monoTimeColumn, monoAmountColumn} {
		if !slices.Contains(doc.Columns, required) {
			return fmt.Errorf("required column %q not found", required)
		}
	}
	return nil
}

func classifyMonoRow(row parser.Row, _ []string) (*core.Record, *core.Skip) {
	occurredAt, ok := core.ParseDateTime(row.String(monoDateColumn), row.String(monoTimeColumn))
	if !ok {
		return nil, &core.Skip{
			Class:   core.SkipMalformed,
			Reasons: []string{"missing or invalid date/time"},
		}
	}

	amount, ok := core.ParseAmount(row[monoAmountColumn])
	if !ok {
		return nil, &core.Skip{
			Class:   core.SkipMalformed,
			Reasons: []string{"missing or invalid amount"},
		}
	}
	if amount.IsNegative() {
		return nil, &core.Skip{
			Class:   core.SkipMalformed,
			Reasons: []string{"negative amount"},
		}
	}

	return &core.Record{
		Kind:        core.KindDonation,
		OccurredAt:  occurredAt,
		Amount:      core.Round2(amount),
		Currency:    core.LocalCurrency,
		LocalAmount: core.Round2(amount),
	}, nil
}
