package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docforge/internal/processor"

	"github.com/jung-kurt/gofpdf"
)

// TextPDFConverter lays out a document's paragraphs and tables with gofpdf.
// It keeps page geometry, font size and page breaks, not styling. The core
// fonts only cover Windows-1252; other characters print as '.' and are
// reported through Logger.
type TextPDFConverter struct {
	Logger *slog.Logger
}

// cp1252Text wraps gofpdf's translator and counts what it cannot map.
type cp1252Text struct {
	tr      func(string) string
	dropped int
}

func (c *cp1252Text) translate(s string) string {
	for _, r := range s {
		if r >= 0x80 && c.tr(string(r)) == "." {
			c.dropped++
		}
	}
	return c.tr(s)
}

func coreFont(name string) string {
	switch n := strings.ToLower(name); {
	case strings.Contains(n, "times") || strings.Contains(n, "georgia") || strings.Contains(n, "cambria") || strings.Contains(n, "garamond"):
		return "Times"
	case strings.Contains(n, "courier") || strings.Contains(n, "mono") || strings.Contains(n, "consolas"):
		return "Courier"
	}
	return "Helvetica"
}

func (c *TextPDFConverter) Convert(ctx context.Context, docx []byte, layout processor.DocumentLayout) ([]byte, error) {
	doc, err := processor.ReadText(docx)
	if err != nil {
		return nil, err
	}
	if layout.PageWidth == 0 {
		layout = doc.Layout
	}

	orientation := "P"
	if layout.PageWidth > layout.PageHeight {
		orientation = "L"
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: min(layout.PageWidth, layout.PageHeight), Ht: max(layout.PageWidth, layout.PageHeight)},
	})
	pdf.SetMargins(layout.LeftMargin, layout.TopMargin, layout.RightMargin)
	pdf.SetAutoPageBreak(true, layout.BottomMargin)
	text := &cp1252Text{tr: pdf.UnicodeTranslatorFromDescriptor("")}
	tr := text.translate
	family := coreFont(doc.FontName)
	pdf.AddPage()

	width := layout.ContentWidth()
	bottom := layout.PageHeight - layout.BottomMargin
	for _, b := range doc.Blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		size := doc.FontSize
		if b.FontSize > 0 {
			size = b.FontSize
		}
		pdf.SetFont(family, "", size)
		lh := size * 1.15

		switch b.Kind {
		case processor.BlockPageBreak:
			pdf.AddPage()
		case processor.BlockParagraph:
			if strings.TrimSpace(b.Text) == "" {
				pdf.Ln(lh)
				continue
			}
			pdf.MultiCell(width, lh, tr(b.Text), "", "L", false)
		case processor.BlockTable:
			drawTable(pdf, tr, b.Rows, width, lh, bottom)
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to lay out PDF: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	if text.dropped > 0 {
		logger := c.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("text layout cannot show characters outside Windows-1252, printed as '.'",
			"characters", text.dropped)
	}
	return buf.Bytes(), nil
}

func drawTable(pdf *gofpdf.Fpdf, tr func(string) string, rows [][]string, width, lh, bottom float64) {
	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	if cols == 0 {
		return
	}
	colW := width / float64(cols)
	left, _, _, _ := pdf.GetMargins()
	const pad = 2.0

	for _, row := range rows {
		lines := 1
		texts := make([]string, len(row))
		for i, cell := range row {
			texts[i] = tr(cell)
			lines = max(lines, len(pdf.SplitLines([]byte(texts[i]), colW-2*pad)))
		}
		rowH := float64(lines)*lh + 2*pad
		if pdf.GetY()+rowH > bottom {
			pdf.AddPage()
		}
		y := pdf.GetY()
		for i := range cols {
			x := left + float64(i)*colW
			pdf.Rect(x, y, colW, rowH, "D")
			if i < len(texts) {
				pdf.SetXY(x+pad, y+pad)
				pdf.MultiCell(colW-2*pad, lh, texts[i], "", "L", false)
			}
		}
		pdf.SetXY(left, y+rowH)
	}
	pdf.Ln(lh / 2)
}
