package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX reads the first sheet of a workbook. The first row is the
// header; each subsequent row becomes one Row keyed by header label.
//
// Cells are read raw (unformatted), so date cells arrive as their numeric
// serial representation and are left for the date normalizer to interpret.
func ParseXLSX(data []byte) (*Document, error) {
	records, err := readFirstSheet(data)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("sheet has no data rows")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	return &Document{Columns: header, Rows: keyRows(header, records[1:])}, nil
}

// ParseXLSXRows reads the first sheet of a workbook that carries no header
// row. Every row is data; columns are labeled positionally ("col1",
// "col2", ...) up to the widest row, and Document.Columns lists the labels
// in sheet order so classifiers address cells by position.
func ParseXLSXRows(data []byte) (*Document, error) {
	records, err := readFirstSheet(data)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("sheet has no rows")
	}

	width := 0
	for _, rec := range records {
		if len(rec) > width {
			width = len(rec)
		}
	}

	columns := make([]string, width)
	for i := range columns {
		columns[i] = "col" + strconv.Itoa(i+1)
	}

	return &Document{Columns: columns, Rows: keyRows(columns, records)}, nil
}

func readFirstSheet(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	records, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return records, nil
}

// keyRows maps raw records onto the given labels, dropping blank rows and
// padding short ones with "".
func keyRows(labels []string, records [][]string) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		if isBlank(rec) {
			continue
		}
		row := make(Row, len(labels))
		for i, label := range labels {
			if label == "" {
				continue
			}
			if i < len(rec) {
				row[label] = rec[i]
			} else {
				row[label] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
