package testutil

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

func output(pdf *gofpdf.Fpdf) []byte {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		panic(fmt.Sprintf("testutil: write pdf: %v", err))
	}
	return buf.Bytes()
}

// PDF builds a document with one page per argument, each carrying one line
// of text.
func PDF(pages ...string) []byte {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		pdf.AddPage()
		pdf.Text(20, 30, text)
	}
	return output(pdf)
}

// RuledTablePDF draws rows as a grid of bordered cells on a single page,
// with optional text lines above it.
func RuledTablePDF(rows [][]string, above ...string) []byte {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 11)

	y := 20.0
	for _, line := range above {
		pdf.Text(20, y, line)
		y += 8
	}
	y += 4

	const cellW, cellH = 40.0, 10.0
	for r, row := range rows {
		for c, text := range row {
			x := 20 + float64(c)*cellW
			top := y + float64(r)*cellH
			pdf.Rect(x, top, cellW, cellH, "D")
			pdf.Text(x+2, top+7, text)
		}
	}
	return output(pdf)
}

// AlignedTextPDF writes rows as text columns without any ruling.
func AlignedTextPDF(rows [][]string) []byte {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 11)
	for r, row := range rows {
		for c, text := range row {
			pdf.Text(20+float64(c)*50, 30+float64(r)*8, text)
		}
	}
	return output(pdf)
}
