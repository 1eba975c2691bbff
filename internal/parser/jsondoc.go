package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseJSON reads a JSON document holding either a single object or an array
// of objects. Array elements map 1:1 to rows. Nested arrays of objects
// inside a row (an "items" field, say) are preserved as []Row sub-data
// rather than flattened; numbers are kept as json.Number so the amount
// normalizer sees the source text unchanged.
func ParseJSON(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(trimBOM(data)))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	switch v := doc.(type) {
	case map[string]any:
		return &Document{Rows: []Row{toRow(v)}}, nil
	case []any:
		rows := make([]Row, 0, len(v))
		for i, el := range v {
			obj, ok := el.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("element %d is not an object", i)
			}
			rows = append(rows, toRow(obj))
		}
		return &Document{Rows: rows}, nil
	default:
		return nil, fmt.Errorf("document must be an object or an array of objects")
	}
}

// toRow converts a decoded JSON object, turning arrays of objects into
// nested []Row and leaving scalars as-is.
func toRow(obj map[string]any) Row {
	row := make(Row, len(obj))
	for k, v := range obj {
		row[k] = convertValue(v)
	}
	return row
}

func convertValue(v any) any {
	arr, ok := v.([]any)
	if !ok {
		return v
	}

	rows := make([]Row, 0, len(arr))
	for _, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			// Mixed or scalar arrays stay untouched.
			return arr
		}
		rows = append(rows, toRow(obj))
	}
	return rows
}
