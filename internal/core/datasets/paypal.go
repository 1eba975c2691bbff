package datasets

import (
	"fmt"

	"github.com/IgorDroma/reports-admin/internal/core"
	"github.com/IgorDroma/reports-admin/internal/parser"
)

// PayPal activity export: an XLSX sheet without a header row. Cells are
// positional, in the fixed order date, time, amount, currency. Amounts are
// in the payment currency, usually foreign.
func init() {
	core.Register(core.Definition{
		Key:           "donations-paypal",
		Label:         "Donations (PayPal XLSX)",
		Kind:          core.KindDonation,
		Format:        parser.FormatXLSXRows,
		DefaultSource: "paypal",
		ValidateDoc:   validatePaypalDoc,
		Classify:      classifyPaypalRow,
	})
}

func validatePaypalDoc(doc *parser.Document) error {
	if len(doc.Columns) < 4 {
		return fmt.Errorf("expected at least 4 columns: date, time, amount, currency")
	}
	return nil
}

func classifyPaypalRow(row parser.Row, cols []string) (*core.Record, *core.Skip) {
	occurredAt, ok := core.ParseDateTime(row.String(cols[0]), row.String(cols[1]))
	if !ok {
		return nil, &core.Skip{
			Class:   core.SkipMalformed,
			Reasons: []string{"missing or invalid date/time"},
		}
	}

	amount, ok := core.ParseAmount(row[cols[2]])
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
		Currency:    core.NormalizeCurrency(row.String(cols[3])),
		LocalAmount: core.Round2(amount),
	}, nil
}
