package dataset

import (
	"errors"
	"slices"
	"testing"

	"github.com/xuri/excelize/v2"

	"docforge/internal/apperror"
	"docforge/internal/mapping"
)

func TestParseCSV(t *testing.T) {
	data := "\xef\xbb\xbfFirst Name, Amount ,,Amount\n" +
		"  Alice ,10,x,dup\n" +
		",,,\n" +
		"Bob\n"
	ds, err := Parse("people.csv", []byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	wantHeaders := []string{"FirstName", "Amount", "Column3", "Amount_2"}
	if !slices.Equal(ds.Headers, wantHeaders) {
		t.Fatalf("headers = %v, want %v", ds.Headers, wantHeaders)
	}
	if ds.Len() != 2 {
		t.Fatalf("rows = %d, want 2 (blank row skipped)", ds.Len())
	}
	if ds.Rows[0]["FirstName"] != "Alice" || ds.Rows[0]["Amount_2"] != "dup" {
		t.Errorf("row 0 = %v", ds.Rows[0])
	}
	if v, ok := ds.Rows[1]["Amount"]; !ok || v != "" {
		t.Errorf("short row not padded: %v", ds.Rows[1])
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Name", "Amount"},
		{"Alice", 10},
		{nil, nil},
		{"Bob", ""},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	ds, err := Parse("data.XLSX", buf.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !slices.Equal(ds.Headers, []string{"Name", "Amount"}) {
		t.Fatalf("headers = %v", ds.Headers)
	}
	if ds.Len() != 2 || ds.Rows[0]["Amount"] != "10" || ds.Rows[1]["Name"] != "Bob" {
		t.Errorf("rows = %v", ds.Rows)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
	}{
		{"empty csv", "a.csv", ""},
		{"only blanks", "a.csv", ",,\n  ,\n"},
		{"bad workbook", "a.xlsx", "not a zip"},
		{"unsupported", "a.pdf", "%PDF-1.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.file, []byte(tt.data))
			if !errors.Is(err, apperror.ErrDataValidation) {
				t.Errorf("err = %v, want DataValidationError", err)
			}
		})
	}
}

func TestNew(t *testing.T) {
	rows := []mapping.Row{{"A": "1", "Extra": "kept"}}
	ds, err := New([]string{"A", "B"}, rows)
	if err != nil {
		t.Fatal(err)
	}
	rows[0]["A"] = "changed"
	if ds.Rows[0]["A"] != "1" || ds.Rows[0]["Extra"] != "kept" {
		t.Errorf("rows not copied: %v", ds.Rows)
	}

	for _, headers := range [][]string{nil, {"A", "A"}, {"A", " "}} {
		if _, err := New(headers, nil); !errors.Is(err, apperror.ErrDataValidation) {
			t.Errorf("New(%q) err = %v", headers, err)
		}
	}
}

func TestFindReplace(t *testing.T) {
	fresh := func() *DataSet {
		ds, _ := New([]string{"Name", "City"}, []mapping.Row{
			{"Name": "Ann Smith", "City": "smithville"},
			{"Name": "Bob", "City": "Paris"},
			{"Name": "SMITH", "City": "Rome"},
		})
		return ds
	}

	tests := []struct {
		name      string
		column    string
		matchCase bool
		want      int
	}{
		{"all columns, any case", "", false, 3},
		{"all columns, exact case", "", true, 1},
		{"one column", "Name", false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := fresh()
			n, err := ds.FindReplace("Smith", "J$1", tt.column, tt.matchCase)
			if err != nil {
				t.Fatal(err)
			}
			if n != tt.want {
				t.Errorf("changed = %d, want %d", n, tt.want)
			}
		})
	}

	ds := fresh()
	if _, err := ds.FindReplace("smith", "Jones", "", true); err != nil {
		t.Fatal(err)
	}
	if ds.Rows[0]["City"] != "Jonesville" || ds.Rows[0]["Name"] != "Ann Smith" {
		t.Errorf("rows = %v", ds.Rows[0])
	}

	ds = fresh()
	if _, err := ds.FindReplace("Bob", "$0 & co", "Name", true); err != nil {
		t.Fatal(err)
	}
	if ds.Rows[1]["Name"] != "$0 & co" {
		t.Errorf("replacement not literal: %q", ds.Rows[1]["Name"])
	}

	if _, err := ds.FindReplace("", "x", "", false); !errors.Is(err, apperror.ErrBadRequest) {
		t.Errorf("empty find err = %v", err)
	}
	if _, err := ds.FindReplace("x", "y", "Nope", false); !errors.Is(err, apperror.ErrBadRequest) {
		t.Errorf("unknown column err = %v", err)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	ds, _ := New([]string{"A", "B"}, []mapping.Row{{"A": "x, y", "B": "line\nbreak"}})
	data, err := ds.CSV()
	if err != nil {
		t.Fatal(err)
	}
	back, err := Parse("data.csv", data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Rows[0]["A"] != "x, y" || back.Rows[0]["B"] != "line\nbreak" {
		t.Errorf("round trip = %v", back.Rows[0])
	}
}

func TestLoadKeepsEditedDataVerbatim(t *testing.T) {
	headers := []string{"First Name", "Amount"}
	rows := []mapping.Row{
		{"First Name": " Alice ", "Amount": "10"},
		{"First Name": "", "Amount": ""},
		{"First Name": "Bob", "Amount": "20", "Note": "extra"},
	}
	ds, err := New(headers, rows)
	if err != nil {
		t.Fatal(err)
	}
	data, err := ds.JSON()
	if err != nil {
		t.Fatal(err)
	}

	back, err := Load("sessions/s1/edited.json", data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !slices.Equal(back.Headers, headers) {
		t.Errorf("headers = %v", back.Headers)
	}
	if back.Len() != 3 {
		t.Fatalf("rows = %d, want 3", back.Len())
	}
	if back.Rows[0]["First Name"] != " Alice " {
		t.Errorf("value trimmed: %q", back.Rows[0]["First Name"])
	}
	if back.Rows[2]["Note"] != "extra" {
		t.Errorf("extra key lost: %v", back.Rows[2])
	}

	empty, _ := New([]string{"A"}, nil)
	data, _ = empty.JSON()
	if back, err := Load("edited.json", data); err != nil || back.Len() != 0 {
		t.Errorf("empty dataset: %v, %v", back, err)
	}

	if _, err := Load("edited.json", []byte("{")); !errors.Is(err, apperror.ErrDataValidation) {
		t.Errorf("corrupt json err = %v", err)
	}
	if _, err := Load("edited.json", []byte(`{"headers":[],"rows":[]}`)); !errors.Is(err, apperror.ErrDataValidation) {
		t.Errorf("no headers err = %v", err)
	}
}

func TestLoadParsesUploads(t *testing.T) {
	ds, err := Load("sessions/s1/data.csv", []byte("First Name\n Alice \n"))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(ds.Headers, []string{"FirstName"}) || ds.Rows[0]["FirstName"] != "Alice" {
		t.Errorf("upload not normalised: %v %v", ds.Headers, ds.Rows)
	}
}

func TestPreview(t *testing.T) {
	ds, _ := New([]string{"A"}, []mapping.Row{{"A": "1"}, {"A": "2"}, {"A": "3"}})
	if got := len(ds.Preview(2)); got != 2 {
		t.Errorf("Preview(2) = %d rows", got)
	}
	if got := len(ds.Preview(10)); got != 3 {
		t.Errorf("Preview(10) = %d rows", got)
	}
	if got := len(ds.Preview(-1)); got != 0 {
		t.Errorf("Preview(-1) = %d rows", got)
	}
}
