// Package packager assembles rendered documents into the archive returned
// to the caller.
package packager

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"docforge/internal/processor"
)

const (
	ExtDOCX = "docx"
	ExtPDF  = "pdf"

	ZipMimeType = "application/zip"
	PDFMimeType = "application/pdf"
)

// Output holds artifacts indexed by batch. A nil entry is a batch that
// produced nothing in that format and is left out of the archive.
type Output struct {
	DOCX [][]byte
	PDF  [][]byte
}

// ArtifactName is the archive entry for batch index i (zero based).
func ArtifactName(i int, ext string) string {
	return fmt.Sprintf("doc_%04d.%s", i+1, ext)
}

// Archive zips the output. With merge set, each format is concatenated
// into merged.<ext> in batch order before packaging.
func Archive(out Output, merge bool) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	now := time.Now()

	add := func(name string, data []byte) error {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: now})
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		return nil
	}

	formats := []struct {
		ext   string
		docs  [][]byte
		merge func([][]byte) ([]byte, error)
	}{
		{ExtDOCX, out.DOCX, processor.MergeDocuments},
		{ExtPDF, out.PDF, MergePDF},
	}
	for _, f := range formats {
		present := compact(f.docs)
		if len(present) == 0 {
			continue
		}
		if merge {
			merged, err := f.merge(present)
			if err != nil {
				return nil, fmt.Errorf("failed to merge %s documents: %w", f.ext, err)
			}
			if err := add("merged."+f.ext, merged); err != nil {
				return nil, err
			}
			continue
		}
		for i, data := range f.docs {
			if data == nil {
				continue
			}
			if err := add(ArtifactName(i, f.ext), data); err != nil {
				return nil, err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

func compact(docs [][]byte) [][]byte {
	var out [][]byte
	for _, d := range docs {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

func pdfConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// MergePDF concatenates PDFs in order.
func MergePDF(docs [][]byte) ([]byte, error) {
	switch len(docs) {
	case 0:
		return nil, fmt.Errorf("no documents to merge")
	case 1:
		return docs[0], nil
	}
	readers := make([]io.ReadSeeker, len(docs))
	for i, d := range docs {
		readers[i] = bytes.NewReader(d)
	}
	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, pdfConfig()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PDFPageCount returns the number of pages in a PDF.
func PDFPageCount(data []byte) (int, error) {
	return api.PageCount(bytes.NewReader(data), pdfConfig())
}
