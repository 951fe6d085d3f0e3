package extract

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"docforge/internal/apperror"
	"docforge/internal/testutil"
)

var grid3x3 = [][]string{
	{"Name", "City", "Age"},
	{"Alice", "Paris", "30"},
	{"Bob", "Rome", "41"},
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("output is not csv: %v", err)
	}
	return rows
}

func TestRuledTableToCSV(t *testing.T) {
	file, err := Extract(testutil.RuledTablePDF(grid3x3), ModeTablesOnly, FormatCSV)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if file.Name != "TablesOnly.csv" || file.ContentType != CSVMimeType {
		t.Errorf("file = %s (%s)", file.Name, file.ContentType)
	}
	rows := readCSV(t, file.Data)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3: %v", len(rows), rows)
	}
	if rows[1][0] != "Alice" || rows[2][1] != "Rome" || rows[0][2] != "Age" {
		t.Errorf("cells = %v", rows)
	}
}

func TestTablesOnlyDropsProse(t *testing.T) {
	sheets, err := Analyze(testutil.RuledTablePDF(grid3x3, "Quarterly report"), ModeTablesOnly)
	if err != nil {
		t.Fatal(err)
	}
	if len(sheets) != 1 || sheets[0].Name != "Table_1" || len(sheets[0].Rows) != 3 {
		t.Fatalf("sheets = %+v", sheets)
	}
}

func TestAllTextKeepsProseAboveTable(t *testing.T) {
	sheets, err := Analyze(testutil.RuledTablePDF(grid3x3, "Quarterly report"), ModeAllText)
	if err != nil {
		t.Fatal(err)
	}
	if len(sheets) != 1 || sheets[0].Name != "Page_1" {
		t.Fatalf("sheets = %+v", sheets)
	}
	rows := sheets[0].Rows
	if len(rows) != 4 || rows[0][0] != "Quarterly report" || rows[1][0] != "Name" {
		t.Errorf("rows = %v", rows)
	}
}

func TestWhitespaceAlignedTable(t *testing.T) {
	sheets, err := Analyze(testutil.AlignedTextPDF([][]string{
		{"Item", "Price"},
		{"Tea", "3"},
		{"Cake", "5"},
	}), ModeTablesOnly)
	if err != nil {
		t.Fatal(err)
	}
	if len(sheets) != 1 {
		t.Fatalf("sheets = %+v", sheets)
	}
	rows := sheets[0].Rows
	if len(rows) != 3 || len(rows[0]) != 2 || rows[2][1] != "5" {
		t.Errorf("rows = %v", rows)
	}
}

func TestNoContentIsNotAnError(t *testing.T) {
	file, err := Extract(testutil.PDF(""), ModeTablesOnly, FormatCSV)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(readCSV(t, file.Data)) != 0 {
		t.Errorf("expected an empty csv, got %q", file.Data)
	}

	file, err = Extract(testutil.PDF(""), ModeTablesOnly, FormatExcel)
	if err != nil {
		t.Fatalf("Extract excel: %v", err)
	}
	if _, err := excelize.OpenReader(bytes.NewReader(file.Data)); err != nil {
		t.Errorf("empty workbook unreadable: %v", err)
	}
}

func TestUnreadablePDF(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("%PDF-1.4 garbage"), []byte("plain text")} {
		if _, err := Extract(data, ModeAllText, FormatCSV); !errors.Is(err, apperror.ErrExtraction) {
			t.Errorf("Extract(%q) err = %v, want ExtractionError", data, err)
		}
	}
}

func TestWorkbookStyling(t *testing.T) {
	long := "a value that is certainly longer than fifty characters in total width"
	sheets := []Sheet{
		{Name: "Table_1", Rows: [][]string{{"Name", "Note"}, {"x", long}}},
		{Name: "Table_2", Rows: [][]string{{"Only"}}},
	}
	file, err := Write(sheets, ModeTablesOnly, FormatExcel)
	if err != nil {
		t.Fatal(err)
	}
	if file.Name != "TablesOnly.xlsx" {
		t.Errorf("name = %s", file.Name)
	}

	f, err := excelize.OpenReader(bytes.NewReader(file.Data))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 2 || got[0] != "Table_1" || got[1] != "Table_2" {
		t.Fatalf("sheets = %v", got)
	}
	if v, _ := f.GetCellValue("Table_1", "B2"); v != long {
		t.Errorf("B2 = %q", v)
	}
	widths := map[string]float64{"A": minColumnWidth, "B": maxColumnWidth}
	for col, want := range widths {
		if w, _ := f.GetColWidth("Table_1", col); w != want {
			t.Errorf("width %s = %v, want %v", col, w, want)
		}
	}
	header, _ := f.GetCellStyle("Table_1", "A1")
	body, _ := f.GetCellStyle("Table_1", "A2")
	if header == 0 || body == 0 || header == body {
		t.Errorf("header style %d, body style %d", header, body)
	}
	if second, _ := f.GetCellStyle("Table_2", "A1"); second != header {
		t.Errorf("Table_2 header style = %d, want %d", second, header)
	}
}

func TestCSVZipForSeveralSheets(t *testing.T) {
	sheets := []Sheet{
		{Name: "Page_1", Rows: [][]string{{"a"}}},
		{Name: "Page_2", Rows: [][]string{{"b"}}},
	}
	file, err := Write(sheets, ModeAllText, FormatCSV)
	if err != nil {
		t.Fatal(err)
	}
	if file.Name != "output_csv.zip" || file.ContentType != ZipMimeType {
		t.Errorf("file = %s (%s)", file.Name, file.ContentType)
	}
	zr, err := zip.NewReader(bytes.NewReader(file.Data), int64(len(file.Data)))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "page_1.csv" || zr.File[1].Name != "page_2.csv" {
		t.Errorf("entries = %v", zr.File)
	}
}

func TestMergeContinuations(t *testing.T) {
	tables := []Table{
		{Page: 1, Rows: [][]string{{"H1", "H2"}, {"a", "b"}}},
		{Page: 2, Rows: [][]string{{"H1", "H2"}, {"c", "d"}}},
		{Page: 2, Rows: [][]string{{"X", "Y", "Z"}}},
	}
	got := mergeContinuations(tables)
	if len(got) != 2 || len(got[0].Rows) != 3 || got[0].Rows[2][0] != "c" {
		t.Errorf("merged = %+v", got)
	}
}

func TestParseOptions(t *testing.T) {
	if m, err := ParseMode("tablesOnly"); err != nil || m != ModeTablesOnly {
		t.Errorf("ParseMode = %v, %v", m, err)
	}
	if _, err := ParseMode("everything"); !errors.Is(err, apperror.ErrBadRequest) {
		t.Errorf("ParseMode err = %v", err)
	}
	if f, err := ParseFormat("CSV"); err != nil || f != FormatCSV {
		t.Errorf("ParseFormat = %v, %v", f, err)
	}
	if _, err := ParseFormat("pdf"); !errors.Is(err, apperror.ErrBadRequest) {
		t.Errorf("ParseFormat err = %v", err)
	}
}
