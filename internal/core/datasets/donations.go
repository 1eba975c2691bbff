package datasets

import (
	"fmt"
	"strings"

	"github.com/IgorDroma/reports-admin/internal/core"
	"github.com/IgorDroma/reports-admin/internal/parser"
)

// Bank-statement XLSX export. Header labels vary between banks, so columns
// are located by prefix: "дата" for the payment instant, one or two
// "сума..." amount columns (local currency first, original currency
// second), matching "валют..." currency columns, and a "призн..." payment
// purpose column.
func init() {
	core.Register(core.Definition{
		Key:           "donations",
		Label:         "Donations (bank statement)",
		Kind:          core.KindDonation,
		Format:        parser.FormatXLSX,
		DefaultSource: "bank",
		ValidateDoc:   validateDonationsDoc,
		Classify:      classifyDonationRow,
	})
}

func donationColumns(cols []string) (dateCol string, amountCols, currencyCols []string, purposeCol string) {
	dateCol = findColumn(cols, func(h string) bool { return strings.Contains(h, "дата") })
	amountCols = findColumns(cols, func(h string) bool { return strings.HasPrefix(h, "сума") })
	currencyCols = findColumns(cols, func(h string) bool { return strings.HasPrefix(h, "валют") })
	purposeCol = findColumn(cols, func(h string) bool { return strings.Contains(h, "призн") })
	return
}

// validateDonationsDoc rejects the whole file when the required header
// columns are absent; an export without them is the wrong document, not a
// set of bad rows.
func validateDonationsDoc(doc *parser.Document) error {
	dateCol, amountCols, currencyCols, _ := donationColumns(doc.Columns)
	if dateCol == "" || len(amountCols) == 0 || len(currencyCols) == 0 {
		return fmt.Errorf("required columns not found: дата / сума / валюта")
	}
	return nil
}

func classifyDonationRow(row parser.Row, cols []string) (*core.Record, *core.Skip) {
	dateCol, amountCols, currencyCols, purposeCol := donationColumns(cols)

	occurredAt, ok := core.ParseDateTime(row.String(dateCol), "")
	if !ok {
		return nil, &core.Skip{
			Class:   core.SkipMalformed,
			Reasons: []string{"missing or invalid date/time"},
		}
	}

	amount, ok := core.ParseAmount(row[amountCols[0]])
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

	purpose := ""
	if purposeCol != "" {
		purpose = row.String(purposeCol)
	}
	if core.IsInternalTransfer(purpose) {
		return nil, &core.Skip{
			Class:   core.SkipExcluded,
			Reasons: []string{"excluded by purpose pattern: internal transfer"},
		}
	}

	currency := core.NormalizeCurrency(row.String(currencyCols[0]))

	rec := core.Record{
		Kind:        core.KindDonation,
		OccurredAt:  occurredAt,
		Amount:      core.Round2(amount),
		Currency:    currency,
		LocalAmount: core.Round2(amount),
		Note:        purpose,
	}

	// When a second amount/currency pair is present and its currency is
	// foreign, that pair is the reportable value; the first amount stays
	// as the local-currency reference.
	if len(amountCols) > 1 && len(currencyCols) > 1 {
		secondAmount, ok := core.ParseAmount(row[amountCols[1]])
		secondCurrency := core.NormalizeCurrency(row.String(currencyCols[1]))
		if ok && secondCurrency != core.LocalCurrency {
			rec.Amount = core.Round2(secondAmount)
			rec.Currency = secondCurrency
		}
	}

	return &rec, nil
}
