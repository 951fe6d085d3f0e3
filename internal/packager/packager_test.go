package packager

import (
	"archive/zip"
	"bytes"
	"slices"
	"testing"

	"docforge/internal/processor"
	"docforge/internal/testutil"
)

func entries(t *testing.T, archive []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		t.Fatalf("archive is not a zip: %v", err)
	}
	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		var b bytes.Buffer
		if _, err := b.ReadFrom(rc); err != nil {
			t.Fatal(err)
		}
		rc.Close()
		out[f.Name] = b.Bytes()
	}
	return out
}

func names(m map[string][]byte) []string {
	var n []string
	for k := range m {
		n = append(n, k)
	}
	slices.Sort(n)
	return n
}

func TestArchiveSeparate(t *testing.T) {
	docA := testutil.Docx{Body: testutil.Paragraph("A")}.Bytes()
	docC := testutil.Docx{Body: testutil.Paragraph("C")}.Bytes()
	out := Output{
		DOCX: [][]byte{docA, nil, docC},
		PDF:  [][]byte{testutil.PDF("a"), testutil.PDF("b"), testutil.PDF("c")},
	}

	archive, err := Archive(out, false)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	got := entries(t, archive)
	want := []string{"doc_0001.docx", "doc_0001.pdf", "doc_0002.pdf", "doc_0003.docx", "doc_0003.pdf"}
	if !slices.Equal(names(got), want) {
		t.Fatalf("entries = %v, want %v", names(got), want)
	}
	if !bytes.Equal(got["doc_0003.docx"], docC) {
		t.Error("doc_0003.docx does not hold the third batch")
	}
}

func TestArchiveMerged(t *testing.T) {
	var docx [][]byte
	for _, name := range []string{"one", "two", "three"} {
		docx = append(docx, testutil.Docx{Body: testutil.Paragraph(name)}.Bytes())
	}
	out := Output{
		DOCX: docx,
		PDF:  [][]byte{testutil.PDF("a"), testutil.PDF("b", "c")},
	}

	archive, err := Archive(out, true)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	got := entries(t, archive)
	if !slices.Equal(names(got), []string{"merged.docx", "merged.pdf"}) {
		t.Fatalf("entries = %v", names(got))
	}

	pages, err := processor.CountPages(got["merged.docx"])
	if err != nil {
		t.Fatal(err)
	}
	if pages != 3 {
		t.Errorf("merged.docx pages = %d, want 3", pages)
	}
	n, err := PDFPageCount(got["merged.pdf"])
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("merged.pdf pages = %d, want 3", n)
	}
}

func TestArchiveEmpty(t *testing.T) {
	archive, err := Archive(Output{}, true)
	if err != nil {
		t.Fatal(err)
	}
	if got := entries(t, archive); len(got) != 0 {
		t.Errorf("entries = %v, want none", names(got))
	}
}

func TestMergePDF(t *testing.T) {
	if _, err := MergePDF(nil); err == nil {
		t.Error("expected an error for no documents")
	}
	single := testutil.PDF("x")
	got, err := MergePDF([][]byte{single})
	if err != nil || !bytes.Equal(got, single) {
		t.Errorf("single document should pass through, err = %v", err)
	}
	if _, err := MergePDF([][]byte{single, []byte("not a pdf")}); err == nil {
		t.Error("expected an error for a corrupt document")
	}
}
