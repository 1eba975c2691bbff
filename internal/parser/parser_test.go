package parser

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildZip(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range members {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func buildXLSX(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestParseZipCSV(t *testing.T) {
	data := buildZip(t, map[string]string{
		"statement.csv": "Дата платежу,Сума платежу\n01.02.2024,100.50\n02.02.2024,200\n",
	})

	doc, err := ParseZipCSV(data)
	if err != nil {
		t.Fatalf("ParseZipCSV: %v", err)
	}
	if len(doc.Columns) != 2 || doc.Columns[0] != "Дата платежу" {
		t.Fatalf("columns = %v", doc.Columns)
	}
	if len(doc.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(doc.Rows))
	}
	if got := doc.Rows[0].String("Сума платежу"); got != "100.50" {
		t.Errorf("first amount = %q", got)
	}
}

func TestParseZipCSVMultipleMembers(t *testing.T) {
	data := buildZip(t, map[string]string{
		"a.csv": "Дата,Сума\n01.01.2024,1\n",
		"b.csv": "Дата,Сума\n02.01.2024,2\n",
	})

	doc, err := ParseZipCSV(data)
	if err != nil {
		t.Fatalf("ParseZipCSV: %v", err)
	}
	if len(doc.Rows) != 2 {
		t.Errorf("rows = %d, want rows from both members", len(doc.Rows))
	}
}

func TestParseZipCSVSkipsNonTextMembers(t *testing.T) {
	data := buildZip(t, map[string]string{
		"readme.pdf": "%PDF-1.4 not a table",
		"data.csv":   "Дата,Сума\n01.01.2024,5\n",
	})

	doc, err := ParseZipCSV(data)
	if err != nil {
		t.Fatalf("ParseZipCSV: %v", err)
	}
	if len(doc.Rows) != 1 {
		t.Errorf("rows = %d, want 1", len(doc.Rows))
	}
}

func TestParseZipCSVNoTextMembers(t *testing.T) {
	data := buildZip(t, map[string]string{"img.png": "\x89PNG"})
	if _, err := ParseZipCSV(data); err == nil {
		t.Error("expected error for archive without delimited members")
	}
}

func TestParseZipCSVWithBOM(t *testing.T) {
	data := buildZip(t, map[string]string{
		"data.csv": "\xEF\xBB\xBFДата,Сума\n01.01.2024,5\n",
	})

	doc, err := ParseZipCSV(data)
	if err != nil {
		t.Fatalf("ParseZipCSV: %v", err)
	}
	if doc.Columns[0] != "Дата" {
		t.Errorf("BOM not stripped from first header: %q", doc.Columns[0])
	}
}

func TestParseXLSX(t *testing.T) {
	data := buildXLSX(t, [][]any{
		{"Дата", "Сума", "Валюта"},
		{"01.02.2024", "150,25", "UAH"},
		{"02.02.2024", "300", "USD"},
	})

	doc, err := ParseXLSX(data)
	if err != nil {
		t.Fatalf("ParseXLSX: %v", err)
	}
	if len(doc.Columns) != 3 {
		t.Fatalf("columns = %v", doc.Columns)
	}
	if len(doc.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(doc.Rows))
	}
	if got := doc.Rows[0].String("Сума"); got != "150,25" {
		t.Errorf("amount = %q, want raw cell text", got)
	}
}

func TestParseXLSXHeaderOnly(t *testing.T) {
	data := buildXLSX(t, [][]any{{"Дата", "Сума"}})
	if _, err := ParseXLSX(data); err == nil {
		t.Error("expected error for sheet without data rows")
	}
}

func TestParseXLSXShortRowsPadded(t *testing.T) {
	data := buildXLSX(t, [][]any{
		{"Дата", "Сума", "Валюта"},
		{"01.02.2024", "10"},
	})

	doc, err := ParseXLSX(data)
	if err != nil {
		t.Fatalf("ParseXLSX: %v", err)
	}
	if got := doc.Rows[0].String("Валюта"); got != "" {
		t.Errorf("missing trailing cell = %q, want empty", got)
	}
}

func TestParseXLSXRows(t *testing.T) {
	data := buildXLSX(t, [][]any{
		{"01.02.2024", "14:05:30", "25,50", "EUR"},
		{"02.02.2024", "09:00:00", "100", "USD"},
	})

	doc, err := ParseXLSXRows(data)
	if err != nil {
		t.Fatalf("ParseXLSXRows: %v", err)
	}
	want := []string{"col1", "col2", "col3", "col4"}
	if len(doc.Columns) != len(want) {
		t.Fatalf("columns = %v", doc.Columns)
	}
	for i, label := range want {
		if doc.Columns[i] != label {
			t.Fatalf("columns = %v, want %v", doc.Columns, want)
		}
	}
	// Every sheet row is data; nothing is consumed as a header.
	if len(doc.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(doc.Rows))
	}
	if got := doc.Rows[0].String("col3"); got != "25,50" {
		t.Errorf("amount = %q, want raw cell text", got)
	}
	if got := doc.Rows[1].String("col4"); got != "USD" {
		t.Errorf("currency = %q", got)
	}
}

func TestParseXLSXRowsRaggedWidth(t *testing.T) {
	data := buildXLSX(t, [][]any{
		{"01.02.2024", "14:05:30", "25,50", "EUR"},
		{"02.02.2024", "09:00:00"},
	})

	doc, err := ParseXLSXRows(data)
	if err != nil {
		t.Fatalf("ParseXLSXRows: %v", err)
	}
	if len(doc.Columns) != 4 {
		t.Fatalf("columns = %v, want width of widest row", doc.Columns)
	}
	if got := doc.Rows[1].String("col3"); got != "" {
		t.Errorf("padded cell = %q, want empty", got)
	}
}

func TestParseXLSXRowsEmptySheet(t *testing.T) {
	data := buildXLSX(t, nil)
	if _, err := ParseXLSXRows(data); err == nil {
		t.Error("expected error for empty sheet")
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		declared, sniffed Format
		want              bool
	}{
		{FormatXLSX, FormatXLSX, true},
		{FormatXLSXRows, FormatXLSX, true},
		{FormatXLSXRows, FormatXLSXRows, true},
		{FormatXLSX, FormatXLSXRows, false},
		{FormatJSON, FormatXLSX, false},
		{FormatZipCSV, FormatJSON, false},
	}
	for _, tt := range tests {
		if got := Compatible(tt.declared, tt.sniffed); got != tt.want {
			t.Errorf("Compatible(%s, %s) = %v, want %v", tt.declared, tt.sniffed, got, tt.want)
		}
	}
}

func TestParseXLSXCorrupt(t *testing.T) {
	if _, err := ParseXLSX([]byte("not a workbook")); err == nil {
		t.Error("expected error for corrupt workbook")
	}
}

func TestParseJSONArray(t *testing.T) {
	data := []byte(`[
		{"id": "A-1", "date": "2024-02-01", "total_sum": 120.5,
		 "items": [{"product_id": "p1", "qty": 2, "sum": 120.5}]},
		{"id": "A-2", "date": "2024-02-02", "total_sum": 80}
	]`)

	doc, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if len(doc.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(doc.Rows))
	}

	items := doc.Rows[0].Rows("items")
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if got := items[0].String("product_id"); got != "p1" {
		t.Errorf("product_id = %q", got)
	}
}

func TestParseJSONSingleObject(t *testing.T) {
	doc, err := ParseJSON([]byte(`{"id": "A-1"}`))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if len(doc.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(doc.Rows))
	}
}

func TestParseJSONRejectsScalars(t *testing.T) {
	for _, bad := range []string{`"text"`, `42`, `[1, 2]`, `not json`} {
		if _, err := ParseJSON([]byte(bad)); err == nil {
			t.Errorf("ParseJSON(%s) succeeded, want error", bad)
		}
	}
}

func TestParseJSONNumbersKeepPrecision(t *testing.T) {
	doc, err := ParseJSON([]byte(`[{"sum": 0.1}]`))
	if err != nil {
		t.Fatal(err)
	}
	// json.Number preserves the source text for the amount normalizer.
	if got := doc.Rows[0].String("sum"); got != "0.1" {
		t.Errorf("sum = %q, want source text", got)
	}
}

func TestSniff(t *testing.T) {
	xlsxData := buildXLSX(t, [][]any{{"a"}, {"b"}})
	zipData := buildZip(t, map[string]string{"d.csv": "a\n1\n"})

	tests := []struct {
		name     string
		fileName string
		data     []byte
		want     Format
		wantErr  bool
	}{
		{name: "xlsx by extension", fileName: "report.xlsx", data: xlsxData, want: FormatXLSX},
		{name: "zip by extension", fileName: "export.zip", data: zipData, want: FormatZipCSV},
		{name: "json by extension", fileName: "acts.json", data: []byte(`[]`), want: FormatJSON},
		{name: "json by content", fileName: "payload", data: []byte(`  {"a": 1}`), want: FormatJSON},
		{name: "xlsx by content", fileName: "blob", data: xlsxData, want: FormatXLSX},
		{name: "zip by content", fileName: "blob", data: zipData, want: FormatZipCSV},
		{name: "unknown rejected", fileName: "data.bin", data: []byte{0x00, 0x01}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sniff(tt.fileName, tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Sniff(%q) = %q, want %q", tt.fileName, got, tt.want)
			}
		})
	}
}

func TestRowString(t *testing.T) {
	row := Row{"s": "text", "b": true, "n": nil}
	if got := row.String("s"); got != "text" {
		t.Errorf("string field = %q", got)
	}
	if got := row.String("b"); got != "true" {
		t.Errorf("bool field = %q", got)
	}
	if got := row.String("n"); got != "" {
		t.Errorf("nil field = %q", got)
	}
	if got := row.String("missing"); got != "" {
		t.Errorf("missing field = %q", got)
	}
}
