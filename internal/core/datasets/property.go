package datasets

import (
	"github.com/shopspring/decimal"

	"github.com/IgorDroma/reports-admin/internal/core"
	"github.com/IgorDroma/reports-admin/internal/parser"
)

// Property transfer acts: another JSON export. Unlike distribution acts the
// items stay descriptive, there is no product catalog behind them, so they
// are stored as plain line items without reference resolution.
func init() {
	core.Register(core.Definition{
		Key:           "property-acts",
		Label:         "Property transfer acts (JSON)",
		Kind:          core.KindPropertyAct,
		Format:        parser.FormatJSON,
		DefaultSource: "BAS",
		Classify:      classifyPropertyActRow,
	})
}

// classifyPropertyActRow collects every missing field into the skip reasons
// so a rejected act can be fixed in one round trip.
func classifyPropertyActRow(row parser.Row, _ []string) (*core.Record, *core.Skip) {
	var reasons []string

	externalID := pick(row, "act_id", "act_number", "id", "number")
	if externalID == "" {
		reasons = append(reasons, "missing act number")
	}

	occurredAt, dateOK := core.ParseDateTime(pick(row, "date", "act_date"), "")
	if !dateOK {
		reasons = append(reasons, "missing or invalid act date")
	}

	donor := pick(row, "donor", "donor_name", "giver")
	if donor == "" {
		reasons = append(reasons, "missing donor")
	}

	items := classifyPropertyItems(row.Rows("items"))
	if len(items) == 0 {
		reasons = append(reasons, "empty item list")
	}

	if len(reasons) > 0 {
		return nil, &core.Skip{Class: core.SkipMalformed, Reasons: reasons}
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineSum)
	}

	return &core.Record{
		Kind:        core.KindPropertyAct,
		OccurredAt:  occurredAt,
		Amount:      core.Round2(total),
		Currency:    core.LocalCurrency,
		LocalAmount: core.Round2(total),
		ExternalID:  externalID,
		Receiver:    pick(row, "receiver", "receiver_name"),
		Donor:       donor,
		Items:       items,
	}, nil
}

func classifyPropertyItems(rows []parser.Row) []core.LineItem {
	items := make([]core.LineItem, 0, len(rows))

	for _, r := range rows {
		name := pick(r, "name", "product_name", "description")
		if name == "" {
			continue
		}

		qty, ok := core.ParseAmount(pickRaw(r, "qty", "quantity"))
		if !ok || qty.IsZero() || qty.IsNegative() {
			continue
		}

		sum, sumOK := core.ParseAmount(pickRaw(r, "sum", "amount"))
		price, priceOK := core.ParseAmount(pickRaw(r, "price", "unit_price"))

		switch {
		case sumOK:
			price = sum.Div(qty)
		case priceOK:
			sum = core.Round2(qty.Mul(price))
		default:
			continue
		}
		if sum.IsNegative() {
			continue
		}

		items = append(items, core.LineItem{
			ProductName: name,
			Quantity:    qty,
			UnitPrice:   price,
			LineSum:     core.Round2(sum),
		})
	}

	return items
}
