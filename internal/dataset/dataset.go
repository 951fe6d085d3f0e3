// Package dataset loads and edits the tabular data that drives generation.
package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"maps"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"docforge/internal/apperror"
	"docforge/internal/mapping"
)

// DataSet is an ordered list of rows plus the ordered column names.
// Row order decides document order and batch membership.
type DataSet struct {
	Headers []string      `json:"headers"`
	Rows    []mapping.Row `json:"rows"`
}

// Parse reads a CSV or Excel upload. The first non-blank row is the header.
func Parse(filename string, data []byte) (*DataSet, error) {
	var records [][]string
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		records, err = readXLSX(data)
	case ".csv", ".txt", "":
		records, err = readCSV(data)
	default:
		return nil, apperror.New(apperror.KindDataValidation,
			fmt.Sprintf("Unsupported data file type %q: upload a .csv or .xlsx file", filepath.Ext(filename)))
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindDataValidation, "Could not read data file", err)
	}
	return fromRecords(records)
}

// Load reads a stored dataset. JSON written by (*DataSet).JSON comes back
// verbatim; anything else is parsed as an upload.
func Load(name string, data []byte) (*DataSet, error) {
	if !strings.EqualFold(filepath.Ext(name), ".json") {
		return Parse(name, data)
	}
	var ds DataSet
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, apperror.Wrap(apperror.KindDataValidation, "Could not read stored dataset", err)
	}
	if ds.Rows == nil {
		ds.Rows = []mapping.Row{}
	}
	return New(ds.Headers, ds.Rows)
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func fromRecords(records [][]string) (*DataSet, error) {
	start := slices.IndexFunc(records, func(r []string) bool { return !blank(r) })
	if start < 0 {
		return nil, apperror.New(apperror.KindDataValidation, "Data file has no header row")
	}

	ds := &DataSet{Headers: NormalizeHeaders(records[start])}
	for _, rec := range records[start+1:] {
		if blank(rec) {
			continue
		}
		row := make(mapping.Row, len(ds.Headers))
		for i, h := range ds.Headers {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			} else {
				row[h] = ""
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// NormalizeHeaders strips all whitespace from column names, names empty
// columns Column<N> (1-based) and suffixes duplicates with _2, _3, ...
func NormalizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)
	for i, h := range raw {
		h = strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, h)
		if h == "" {
			h = "Column" + strconv.Itoa(i+1)
		}
		base := h
		for seen[h] > 0 {
			seen[base]++
			h = base + "_" + strconv.Itoa(seen[base])
		}
		seen[h]++
		headers[i] = h
	}
	return headers
}

// New builds a dataset from edited rows. Headers must be non-empty and unique;
// rows may carry keys outside the header list.
func New(headers []string, rows []mapping.Row) (*DataSet, error) {
	if len(headers) == 0 {
		return nil, apperror.New(apperror.KindDataValidation, "Headers must not be empty")
	}
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		if strings.TrimSpace(h) == "" {
			return nil, apperror.New(apperror.KindDataValidation, "Header names must not be blank")
		}
		if seen[h] {
			return nil, apperror.New(apperror.KindDataValidation, fmt.Sprintf("Duplicate header %q", h))
		}
		seen[h] = true
	}

	ds := &DataSet{Headers: headers, Rows: rows}
	return ds.Clone(), nil
}

func (d *DataSet) Len() int { return len(d.Rows) }

func (d *DataSet) Clone() *DataSet {
	c := &DataSet{Headers: slices.Clone(d.Headers), Rows: make([]mapping.Row, len(d.Rows))}
	for i, r := range d.Rows {
		c.Rows[i] = maps.Clone(r)
	}
	return c
}

// Preview returns up to n leading rows.
func (d *DataSet) Preview(n int) []mapping.Row {
	return d.Rows[:min(max(n, 0), len(d.Rows))]
}

// FindReplace replaces find with replace in every cell, or only in column
// when it is non-empty, and returns the number of cells changed.
func (d *DataSet) FindReplace(find, replace, column string, matchCase bool) (int, error) {
	if find == "" {
		return 0, apperror.New(apperror.KindBadRequest, "Search text must not be empty")
	}
	if column != "" && !slices.Contains(d.Headers, column) {
		return 0, apperror.New(apperror.KindBadRequest, fmt.Sprintf("Unknown column %q", column))
	}

	pattern := regexp.QuoteMeta(find)
	if !matchCase {
		pattern = "(?i)" + pattern
	}
	re := regexp.MustCompile(pattern)
	literal := strings.ReplaceAll(replace, "$", "$$")

	changed := 0
	for _, row := range d.Rows {
		for _, h := range d.Headers {
			if column != "" && h != column {
				continue
			}
			v, ok := row[h]
			if !ok || !re.MatchString(v) {
				continue
			}
			if nv := re.ReplaceAllString(v, literal); nv != v {
				row[h] = nv
				changed++
			}
		}
	}
	return changed, nil
}

// JSON serialises the dataset as held, including blank rows, untrimmed
// values and keys outside the header list.
func (d *DataSet) JSON() ([]byte, error) { return json.Marshal(d) }

// CSV serialises the dataset with a header row.
func (d *DataSet) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(d.Headers); err != nil {
		return nil, err
	}
	record := make([]string, len(d.Headers))
	for _, row := range d.Rows {
		for i, h := range d.Headers {
			record[i] = row[h]
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
