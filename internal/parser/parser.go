// Package parser converts raw source files (XLSX workbooks, ZIP archives of
// delimited text, JSON documents) into loosely typed rows for the import
// engine. A parser either yields every structurally readable row or fails
// the whole container; per-row validation is the classifier's job.
package parser

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Format identifies the container format of a source file.
type Format string

const (
	FormatXLSX Format = "xlsx"

	// FormatXLSXRows is a workbook without a header row; cells are
	// addressed by position.
	FormatXLSXRows Format = "xlsx-rows"

	FormatZipCSV Format = "zip-csv"
	FormatJSON   Format = "json"
)

// Row is one loosely typed source record: column label (or JSON key) mapped
// to an untyped scalar. Tabular sources produce string values; JSON sources
// may carry json.Number, bool, nil, and nested []Row under keys like "items".
type Row map[string]any

// String returns the value for key as a trimmed string.
// Missing keys, nil values, and non-scalar values yield "".
func (r Row) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return strings.TrimSpace(s.String())
	case bool:
		if s {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Rows returns the nested rows stored under key, or nil.
func (r Row) Rows(key string) []Row {
	if v, ok := r[key].([]Row); ok {
		return v
	}
	return nil
}

// Document is the parsed content of one source file. Columns preserves the
// header order for tabular sources (several sources carry repeated labels
// like a second amount column, distinguished only by position); it is nil
// for JSON documents.
type Document struct {
	Columns []string
	Rows    []Row
}

// Parse dispatches on format.
// An unreadable or non-conforming container fails as a whole: no rows are
// returned alongside an error.
func Parse(format Format, data []byte) (*Document, error) {
	switch format {
	case FormatXLSX:
		return ParseXLSX(data)
	case FormatXLSXRows:
		return ParseXLSXRows(data)
	case FormatZipCSV:
		return ParseZipCSV(data)
	case FormatJSON:
		return ParseJSON(data)
	default:
		return nil, fmt.Errorf("unsupported format: %q", format)
	}
}

// Compatible reports whether a sniffed container format can satisfy the
// declared one. Header and headerless workbooks share the same container,
// so a sniff can never tell them apart.
func Compatible(declared, sniffed Format) bool {
	if declared == sniffed {
		return true
	}
	return declared == FormatXLSXRows && sniffed == FormatXLSX
}

// zipMagic is the local-file-header signature shared by ZIP and XLSX files.
var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// Sniff guesses the container format from the file name and leading bytes.
// Callers use it to pick a format when none is declared, and to reject a
// file whose container contradicts the declared format.
func Sniff(name string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls":
		return FormatXLSX, nil
	case ".zip":
		return FormatZipCSV, nil
	case ".json":
		return FormatJSON, nil
	}

	trimmed := bytes.TrimLeft(trimBOM(data), " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON, nil
	}
	if bytes.HasPrefix(data, zipMagic) {
		// XLSX is a ZIP container; its package manifest tells them apart.
		if bytes.Contains(data, []byte("[Content_Types].xml")) {
			return FormatXLSX, nil
		}
		return FormatZipCSV, nil
	}

	return "", fmt.Errorf("cannot determine format of %q", name)
}

// trimBOM strips a leading UTF-8 byte order mark.
func trimBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement rune so
// downstream string handling never sees broken UTF-8.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
