// Package extract recovers tables and text from PDF files and writes them
// out as spreadsheets.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"docforge/internal/apperror"
)

type Mode string

const (
	// ModeAllText keeps every page's prose and tables, one sheet per page.
	ModeAllText Mode = "allText"
	// ModeTablesOnly keeps ruled or whitespace-aligned grids, one sheet per table.
	ModeTablesOnly Mode = "tablesOnly"
)

type Format string

const (
	FormatExcel Format = "excel"
	FormatCSV   Format = "csv"
)

const (
	XLSXMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	CSVMimeType  = "text/csv"
	ZipMimeType  = "application/zip"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAllText, ModeTablesOnly:
		return m, nil
	case "":
		return ModeAllText, nil
	}
	return "", apperror.New(apperror.KindBadRequest, fmt.Sprintf("Unknown processing option %q", s))
}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatExcel, FormatCSV:
		return f, nil
	case "", "xlsx":
		return FormatExcel, nil
	}
	return "", apperror.New(apperror.KindBadRequest, fmt.Sprintf("Unknown output format %q", s))
}

// Sheet is one unit of output: a table in tables-only mode, a page otherwise.
type Sheet struct {
	Name string
	Rows [][]string
}

// File is a finished extraction result.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Extract analyses a PDF and serialises the result.
func Extract(data []byte, mode Mode, format Format) (*File, error) {
	sheets, err := Analyze(data, mode)
	if err != nil {
		return nil, err
	}
	return Write(sheets, mode, format)
}

// Analyze returns the sheets found in a PDF. A document with no tables or
// text yields no sheets and no error.
func Analyze(data []byte, mode Mode) ([]Sheet, error) {
	pages, err := readPages(data)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindExtraction, "Could not read the PDF file", err)
	}

	var sheets []Sheet
	var tables []Table
	for _, p := range pages {
		ruled, rest := ruledTables(p)
		blocks := append(ruled, layoutBlocks(p.number, textLines(rest))...)
		slices.SortStableFunc(blocks, func(a, b placed) int {
			switch {
			case a.top > b.top:
				return -1
			case a.top < b.top:
				return 1
			}
			return 0
		})

		if mode == ModeTablesOnly {
			for _, b := range blocks {
				if !b.text {
					tables = append(tables, b.table)
				}
			}
			continue
		}
		sheet := Sheet{Name: fmt.Sprintf("Page_%d", p.number)}
		for _, b := range blocks {
			sheet.Rows = append(sheet.Rows, b.table.Rows...)
		}
		sheets = append(sheets, sheet)
	}

	if mode == ModeTablesOnly {
		for i, t := range mergeContinuations(tables) {
			sheets = append(sheets, Sheet{Name: fmt.Sprintf("Table_%d", i+1), Rows: t.Rows})
		}
	}
	return sheets, nil
}

func baseName(mode Mode) string {
	if mode == ModeTablesOnly {
		return "TablesOnly"
	}
	return "output"
}

// Write serialises sheets as one workbook, one CSV, or a zip of CSVs when
// there is more than one sheet.
func Write(sheets []Sheet, mode Mode, format Format) (*File, error) {
	base := baseName(mode)
	if format == FormatExcel {
		data, err := writeWorkbook(sheets, mode == ModeTablesOnly)
		if err != nil {
			return nil, err
		}
		return &File{Name: base + ".xlsx", ContentType: XLSXMimeType, Data: data}, nil
	}

	if len(sheets) <= 1 {
		var rows [][]string
		if len(sheets) == 1 {
			rows = sheets[0].Rows
		}
		data, err := writeCSV(rows)
		if err != nil {
			return nil, err
		}
		return &File{Name: base + ".csv", ContentType: CSVMimeType, Data: data}, nil
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	now := time.Now()
	for _, s := range sheets {
		data, err := writeCSV(s.Rows)
		if err != nil {
			return nil, err
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: strings.ToLower(s.Name) + ".csv", Method: zip.Deflate, Modified: now})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return &File{Name: base + "_csv.zip", ContentType: ZipMimeType, Data: buf.Bytes()}, nil
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

const (
	minColumnWidth = 10
	maxColumnWidth = 50
)

func writeWorkbook(sheets []Sheet, header bool) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFF2CC"}},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}
	bodyStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return nil, err
		}
		if err := fillSheet(f, s, header, headerStyle, bodyStyle); err != nil {
			return nil, fmt.Errorf("failed to write sheet %s: %w", s.Name, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func fillSheet(f *excelize.File, s Sheet, header bool, headerStyle, bodyStyle int) error {
	var widths []int
	for r, row := range s.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for c, v := range row {
			values[c] = v
			for len(widths) <= c {
				widths = append(widths, 0)
			}
			widths[c] = max(widths[c], utf8.RuneCountInString(v))
		}
		if err := f.SetSheetRow(s.Name, cell, &values); err != nil {
			return err
		}
		if len(row) == 0 {
			continue
		}
		last, err := excelize.CoordinatesToCellName(len(row), r+1)
		if err != nil {
			return err
		}
		style := bodyStyle
		if header && r == 0 {
			style = headerStyle
		}
		if err := f.SetCellStyle(s.Name, cell, last, style); err != nil {
			return err
		}
	}

	for c, w := range widths {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		width := max(min(w+2, maxColumnWidth), minColumnWidth)
		if err := f.SetColWidth(s.Name, col, col, float64(width)); err != nil {
			return err
		}
	}
	return nil
}
