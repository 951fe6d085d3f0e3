package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"docforge/internal/dataset"
	"docforge/internal/mapping"
	"docforge/internal/processor"
	"docforge/internal/testutil"
)

var letterTemplate = testutil.Docx{
	Body: testutil.Paragraph("Dear #NAME,") + testutil.Paragraph("You owe #AMOUNT."),
}

func loadTemplate(t *testing.T, d testutil.Docx) *processor.Template {
	t.Helper()
	tmpl, err := processor.LoadTemplate(d.Bytes(), nil)
	if err != nil {
		t.Fatalf("LoadTemplate: %v", err)
	}
	return tmpl
}

func newDataSet(t *testing.T, names ...string) *dataset.DataSet {
	t.Helper()
	rows := make([]mapping.Row, len(names))
	for i, n := range names {
		rows[i] = mapping.Row{"Name": n, "Amount": "10"}
	}
	ds, err := dataset.New([]string{"Name", "Amount"}, rows)
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

// zipEntries returns the entry names and contents of an archive.
func zipEntries(t *testing.T, data []byte) ([]string, map[string][]byte) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("archive is not a zip: %v", err)
	}
	var names []string
	contents := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		var buf bytes.Buffer
		buf.ReadFrom(rc)
		rc.Close()
		names = append(names, f.Name)
		contents[f.Name] = buf.Bytes()
	}
	return names, contents
}

func documentText(t *testing.T, docx []byte) string {
	t.Helper()
	doc, err := processor.ReadText(docx)
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	var sb strings.Builder
	for _, b := range doc.Blocks {
		sb.WriteString(b.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// stubConverter returns a one-page PDF unless fail reports true for the
// document text.
type stubConverter struct {
	fail  func(text string) bool
	calls atomic.Int64
}

var errStubConversion = errors.New("stub conversion failure")

func (c *stubConverter) Convert(_ context.Context, docx []byte, _ processor.DocumentLayout) ([]byte, error) {
	c.calls.Add(1)
	doc, err := processor.ReadText(docx)
	if err != nil {
		return nil, err
	}
	var text []string
	for _, b := range doc.Blocks {
		text = append(text, b.Text)
	}
	joined := strings.Join(text, " ")
	if c.fail != nil && c.fail(joined) {
		return nil, errStubConversion
	}
	return testutil.PDF(joined), nil
}

func sortedNames(names []string) []string {
	out := slices.Clone(names)
	slices.Sort(out)
	return out
}
