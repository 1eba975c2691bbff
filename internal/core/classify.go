package core

import "github.com/IgorDroma/reports-admin/internal/parser"

// ClassifyDocument runs the dataset's per-row classifier over a parsed
// document and splits the rows into accepted records and skips.
//
// Every skip carries at least one reason; a classifier that returns neither
// a record nor a skip is treated as a malformed-row defect so the
// attempted == imported + skipped invariant never silently breaks.
func ClassifyDocument(def Definition, doc *parser.Document) ([]Record, []Skip) {
	records := make([]Record, 0, len(doc.Rows))
	var skips []Skip

	for _, row := range doc.Rows {
		rec, skip := def.Classify(row, doc.Columns)

		switch {
		case rec != nil:
			records = append(records, *rec)
		case skip != nil:
			if len(skip.Reasons) == 0 {
				skip.Reasons = []string{"rejected without reason"}
			}
			if skip.Row == nil {
				skip.Row = row
			}
			skips = append(skips, *skip)
		default:
			skips = append(skips, Skip{
				Class:   SkipMalformed,
				Reasons: []string{"classifier returned no result"},
				Row:     row,
			})
		}
	}

	return records, skips
}
