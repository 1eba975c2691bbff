package parser

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strings"
)

// textExtensions are the member extensions parsed out of an archive.
var textExtensions = map[string]bool{
	".csv": true,
	".txt": true,
}

// ParseZipCSV extracts every delimited-text member of a ZIP archive and
// parses each independently with header-based CSV parsing. Rows from all
// members are concatenated into one sequence, in archive order.
//
// A corrupt archive or an unparseable member fails the whole container.
func ParseZipCSV(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	doc := &Document{}

	for _, member := range zr.File {
		if member.FileInfo().IsDir() {
			continue
		}
		if !textExtensions[strings.ToLower(path.Ext(member.Name))] {
			continue
		}

		rc, err := member.Open()
		if err != nil {
			return nil, fmt.Errorf("open member %q: %w", member.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read member %q: %w", member.Name, err)
		}

		memberDoc, err := parseDelimited(content)
		if err != nil {
			return nil, fmt.Errorf("parse member %q: %w", member.Name, err)
		}
		if doc.Columns == nil {
			doc.Columns = memberDoc.Columns
		}
		doc.Rows = append(doc.Rows, memberDoc.Rows...)
	}

	if doc.Columns == nil {
		return nil, fmt.Errorf("archive contains no text files")
	}

	return doc, nil
}

// parseDelimited parses one CSV document whose first record is the header.
func parseDelimited(data []byte) (*Document, error) {
	data = sanitizeUTF8(trimBOM(data))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make(Row, len(header))
		for i, label := range header {
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

	return &Document{Columns: header, Rows: rows}, nil
}
