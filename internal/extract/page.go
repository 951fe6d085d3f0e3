package extract

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/ledongthuc/pdf"
)

// glyph is one positioned piece of text in PDF user space (origin bottom left).
type glyph struct {
	x, y, w, size float64
	s            string
}

func (g glyph) width() float64 {
	if g.w > 0 {
		return g.w
	}
	return g.size * 0.5 * float64(len([]rune(g.s)))
}

type rect struct {
	x0, y0, x1, y1 float64
}

type page struct {
	number int
	glyphs []glyph
	rects  []rect
}

// readPages parses every page of the document. The parser panics on some
// malformed input, which is reported as an error.
func readPages(data []byte) (pages []page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		pg := page{number: i}
		if p.V.IsNull() {
			pages = append(pages, pg)
			continue
		}
		content := p.Content()
		for _, t := range content.Text {
			if t.S == "" {
				continue
			}
			pg.glyphs = append(pg.glyphs, glyph{x: t.X, y: t.Y, w: t.W, size: max(t.FontSize, 1), s: t.S})
		}
		for _, rc := range content.Rect {
			pg.rects = append(pg.rects, rect{
				x0: math.Min(rc.Min.X, rc.Max.X), y0: math.Min(rc.Min.Y, rc.Max.Y),
				x1: math.Max(rc.Min.X, rc.Max.X), y1: math.Max(rc.Min.Y, rc.Max.Y),
			})
		}
		pages = append(pages, pg)
	}
	return pages, nil
}

// textLine is a run of glyphs sharing a baseline, split into cells wherever
// the horizontal gap exceeds one em.
type textLine struct {
	y     float64
	cells []string
	xs    []float64
}

// groupLines clusters glyphs into lines from top to bottom.
func groupLines(glyphs []glyph) [][]glyph {
	sorted := slices.Clone(glyphs)
	slices.SortStableFunc(sorted, func(a, b glyph) int {
		switch {
		case a.y > b.y:
			return -1
		case a.y < b.y:
			return 1
		}
		return 0
	})

	var lines [][]glyph
	for _, g := range sorted {
		if n := len(lines); n > 0 {
			ref := lines[n-1][0]
			if math.Abs(ref.y-g.y) <= math.Max(ref.size, g.size)*0.3 {
				lines[n-1] = append(lines[n-1], g)
				continue
			}
		}
		lines = append(lines, []glyph{g})
	}
	for _, l := range lines {
		slices.SortStableFunc(l, func(a, b glyph) int {
			switch {
			case a.x < b.x:
				return -1
			case a.x > b.x:
				return 1
			}
			return 0
		})
	}
	return lines
}

// joinGlyphs concatenates a sorted line, inserting a space where glyphs are
// visibly apart and no space glyph was drawn.
func joinGlyphs(line []glyph) string {
	var b strings.Builder
	end := math.Inf(-1)
	for _, g := range line {
		if b.Len() > 0 && g.x-end > g.size*0.25 && !strings.HasSuffix(b.String(), " ") && !strings.HasPrefix(g.s, " ") {
			b.WriteByte(' ')
		}
		b.WriteString(g.s)
		end = math.Max(end, g.x+g.width())
	}
	return strings.TrimSpace(b.String())
}

func splitLine(line []glyph) textLine {
	tl := textLine{y: line[0].y}
	var cur []glyph
	end := math.Inf(-1)
	flush := func() {
		if text := joinGlyphs(cur); text != "" {
			tl.cells = append(tl.cells, text)
			tl.xs = append(tl.xs, cur[0].x)
		}
		cur = nil
	}
	for _, g := range line {
		if len(cur) > 0 && g.x-end > g.size {
			flush()
		}
		if len(cur) == 0 && strings.TrimSpace(g.s) == "" {
			continue
		}
		cur = append(cur, g)
		end = math.Max(end, g.x+g.width())
	}
	flush()
	return tl
}

func textLines(glyphs []glyph) []textLine {
	var out []textLine
	for _, l := range groupLines(glyphs) {
		if tl := splitLine(l); len(tl.cells) > 0 {
			out = append(out, tl)
		}
	}
	return out
}
