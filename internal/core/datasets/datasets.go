// Package datasets registers the importable dataset definitions with the
// core engine. Each file defines one dataset: its container format, header
// contract, and row classification. Importing the package (usually blank,
// from main) performs the registration.
package datasets

import (
	"strings"

	"github.com/IgorDroma/reports-admin/internal/parser"
)

// pick returns the first non-empty string value among the given keys.
// Source systems disagree on field names ("date" vs "act_date"), so most
// JSON fields are read through an alias list.
func pick(row parser.Row, keys ...string) string {
	for _, k := range keys {
		if v := row.String(k); v != "" {
			return v
		}
	}
	return ""
}

// pickRaw returns the first non-nil raw value among the given keys.
func pickRaw(row parser.Row, keys ...string) any {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

// findColumn returns the first header label matching the predicate, or "".
func findColumn(cols []string, match func(string) bool) string {
	for _, c := range cols {
		if match(strings.ToLower(strings.TrimSpace(c))) {
			return c
		}
	}
	return ""
}

// findColumns returns every header label matching the predicate, in header
// order. Statement exports repeat "amount"-style labels (local plus
// original currency); position decides which is which.
func findColumns(cols []string, match func(string) bool) []string {
	var out []string
	for _, c := range cols {
		if match(strings.ToLower(strings.TrimSpace(c))) {
			out = append(out, c)
		}
	}
	return out
}
