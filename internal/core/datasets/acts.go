package datasets

import (
	"github.com/shopspring/decimal"

	"github.com/IgorDroma/reports-admin/internal/core"
	"github.com/IgorDroma/reports-admin/internal/parser"
)

// Distribution acts: a JSON dump from the accounting system. Each element
// carries the external act id, the receiver and its group, an optional
// total, and the nomenclature items with external product ids.
//
// Re-importing an act under the same external id replaces its line items;
// the writer owns that contract.
func init() {
	core.Register(core.Definition{
		Key:           "acts",
		Label:         "Distribution acts (JSON)",
		Kind:          core.KindAct,
		Format:        parser.FormatJSON,
		DefaultSource: "accounting",
		Classify:      classifyActRow,
	})
}

func classifyActRow(row parser.Row, _ []string) (*core.Record, *core.Skip) {
	receiver, allowed := mapReceiver(row.String("receiver"), row.String("receiver_group"))
	if !allowed {
		return nil, &core.Skip{
			Class:   core.SkipExcluded,
			Reasons: []string{"excluded by receiver classification rule"},
		}
	}

	var reasons []string

	externalID := pick(row, "id", "act_id", "act_number", "number")
	if externalID == "" {
		reasons = append(reasons, "missing act id")
	}

	occurredAt, ok := core.ParseDateTime(pick(row, "date", "act_date"), "")
	if !ok {
		reasons = append(reasons, "missing or invalid act date")
	}

	items := classifyLineItems(row.Rows("items"))
	if len(items) == 0 {
		reasons = append(reasons, "no importable line items")
	}

	if len(reasons) > 0 {
		return nil, &core.Skip{Class: core.SkipMalformed, Reasons: reasons}
	}

	// The supplied total is authoritative; otherwise it is the item sum.
	total, ok := core.ParseAmount(pickRaw(row, "total_sum", "total_amount"))
	if !ok {
		total = decimal.Zero
		for _, it := range items {
			total = total.Add(it.LineSum)
		}
	}

	return &core.Record{
		Kind:        core.KindAct,
		OccurredAt:  occurredAt,
		Amount:      core.Round2(total),
		Currency:    core.LocalCurrency,
		LocalAmount: core.Round2(total),
		ExternalID:  externalID,
		Receiver:    receiver,
		Items:       items,
	}, nil
}

// classifyLineItems validates each nomenclature item individually.
// Non-importable items are dropped rather than voiding the whole act.
func classifyLineItems(rows []parser.Row) []core.LineItem {
	items := make([]core.LineItem, 0, len(rows))

	for _, r := range rows {
		key := pick(r, "product_id", "id")
		name := pick(r, "product_name", "name")
		if key == "" || name == "" {
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
			// An explicit sum is authoritative; unit price is back-computed.
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
			ProductKey:   key,
			ProductName:  name,
			CategoryName: pick(r, "product_cat", "category"),
			Quantity:     qty,
			UnitPrice:    price,
			LineSum:      core.Round2(sum),
		})
	}

	return items
}
