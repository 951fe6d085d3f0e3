package extract

import (
	"math"
	"slices"
	"strings"
)

const (
	// rulingThickness is the widest a filled rectangle can be and still be
	// read as a line rather than a box.
	rulingThickness = 2.0
	snapTolerance   = 3.0
)

// Table is a detected grid of cell text. Page is 1-based.
type Table struct {
	Page int
	Rows [][]string
}

func (t Table) Columns() int {
	if len(t.Rows) == 0 {
		return 0
	}
	return len(t.Rows[0])
}

type ruling struct {
	horizontal bool
	pos        float64 // y for horizontal, x for vertical
	from, to   float64
}

func rulings(rects []rect) []ruling {
	var out []ruling
	for _, r := range rects {
		w, h := r.x1-r.x0, r.y1-r.y0
		switch {
		case w <= rulingThickness && h <= rulingThickness:
		case h <= rulingThickness:
			out = append(out, ruling{true, (r.y0 + r.y1) / 2, r.x0, r.x1})
		case w <= rulingThickness:
			out = append(out, ruling{false, (r.x0 + r.x1) / 2, r.y0, r.y1})
		default:
			out = append(out,
				ruling{true, r.y0, r.x0, r.x1},
				ruling{true, r.y1, r.x0, r.x1},
				ruling{false, r.x0, r.y0, r.y1},
				ruling{false, r.x1, r.y0, r.y1},
			)
		}
	}
	return out
}

func touches(a, b ruling) bool {
	if a.horizontal == b.horizontal {
		return math.Abs(a.pos-b.pos) <= snapTolerance &&
			a.from <= b.to+snapTolerance && b.from <= a.to+snapTolerance
	}
	h, v := a, b
	if !h.horizontal {
		h, v = b, a
	}
	return v.pos >= h.from-snapTolerance && v.pos <= h.to+snapTolerance &&
		h.pos >= v.from-snapTolerance && h.pos <= v.to+snapTolerance
}

// components groups rulings that touch, directly or through others.
func components(rs []ruling) [][]ruling {
	parent := make([]int, len(rs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for i := range rs {
		for j := i + 1; j < len(rs); j++ {
			if touches(rs[i], rs[j]) {
				parent[find(i)] = find(j)
			}
		}
	}

	groups := make(map[int][]ruling)
	var order []int
	for i, r := range rs {
		root := find(i)
		if _, ok := groups[root]; !ok {
			order = append(order, root)
		}
		groups[root] = append(groups[root], r)
	}
	out := make([][]ruling, 0, len(order))
	for _, root := range order {
		out = append(out, groups[root])
	}
	return out
}

// distinct returns sorted positions with values closer than the snap
// tolerance collapsed into one.
func distinct(values []float64) []float64 {
	slices.Sort(values)
	var out []float64
	for _, v := range values {
		if n := len(out); n > 0 && v-out[n-1] <= snapTolerance {
			continue
		}
		out = append(out, v)
	}
	return out
}

type grid struct {
	xs []float64 // column edges, left to right
	ys []float64 // row edges, top to bottom
}

func (g grid) top() float64 { return g.ys[0] }

func (g grid) contains(x, y float64) bool {
	return x >= g.xs[0] && x <= g.xs[len(g.xs)-1] && y <= g.ys[0] && y >= g.ys[len(g.ys)-1]
}

func (g grid) cell(x, y float64) (row, col int) {
	col = max(0, min(len(g.xs)-2, edgesUpTo(g.xs, x)-1))
	row = 0
	for row < len(g.ys)-2 && y < g.ys[row+1] {
		row++
	}
	return row, col
}

// edgesUpTo returns the number of edges at or left of v.
func edgesUpTo(edges []float64, v float64) int {
	n := 0
	for _, e := range edges {
		if e <= v {
			n++
		}
	}
	return n
}

func grids(rects []rect) []grid {
	var out []grid
	for _, comp := range components(rulings(rects)) {
		var hs, vs []float64
		for _, r := range comp {
			if r.horizontal {
				hs = append(hs, r.pos)
			} else {
				vs = append(vs, r.pos)
			}
		}
		hs, vs = distinct(hs), distinct(vs)
		if len(hs) < 2 || len(vs) < 2 {
			continue
		}
		slices.Reverse(hs)
		out = append(out, grid{xs: vs, ys: hs})
	}
	return out
}

// ruledTables fills each grid with the glyphs inside it and returns the
// glyphs left over.
func ruledTables(p page) ([]placed, []glyph) {
	gs := grids(p.rects)
	if len(gs) == 0 {
		return nil, p.glyphs
	}

	cells := make([][][][]glyph, len(gs))
	for i, g := range gs {
		cells[i] = make([][][]glyph, len(g.ys)-1)
		for r := range cells[i] {
			cells[i][r] = make([][]glyph, len(g.xs)-1)
		}
	}

	var rest []glyph
	for _, gl := range p.glyphs {
		x := gl.x + math.Min(gl.width(), gl.size)/2
		idx := slices.IndexFunc(gs, func(g grid) bool { return g.contains(x, gl.y) })
		if idx < 0 {
			rest = append(rest, gl)
			continue
		}
		r, c := gs[idx].cell(x, gl.y)
		cells[idx][r][c] = append(cells[idx][r][c], gl)
	}

	var out []placed
	for i, g := range gs {
		var rows [][]string
		for _, row := range cells[i] {
			texts := make([]string, len(row))
			empty := true
			for c, glyphs := range row {
				var lines []string
				for _, l := range groupLines(glyphs) {
					if s := joinGlyphs(l); s != "" {
						lines = append(lines, s)
					}
				}
				texts[c] = strings.Join(lines, " ")
				if texts[c] != "" {
					empty = false
				}
			}
			if !empty {
				rows = append(rows, texts)
			}
		}
		if len(rows) > 0 {
			out = append(out, placed{top: g.top(), table: Table{Page: p.number, Rows: rows}})
		}
	}
	return out, rest
}

// placed is a block of rows with the y coordinate of its top edge.
type placed struct {
	top   float64
	table Table
	text  bool
}

// layoutBlocks splits text lines into whitespace-aligned tables (runs of at
// least two lines with the same number of cells, two or more) and loose
// lines, each loose line becoming a one-row block.
func layoutBlocks(pageNum int, lines []textLine) []placed {
	var out []placed
	for i := 0; i < len(lines); {
		j := i + 1
		n := len(lines[i].cells)
		for n >= 2 && j < len(lines) && len(lines[j].cells) == n {
			j++
		}
		if n >= 2 && j-i >= 2 {
			var rows [][]string
			for _, l := range lines[i:j] {
				rows = append(rows, l.cells)
			}
			out = append(out, placed{top: lines[i].y, table: Table{Page: pageNum, Rows: rows}})
			i = j
			continue
		}
		out = append(out, placed{top: lines[i].y, table: Table{Page: pageNum, Rows: [][]string{lines[i].cells}}, text: true})
		i++
	}
	return out
}

// mergeContinuations joins a table into its predecessor when it has the same
// column count and repeats the predecessor's header row.
func mergeContinuations(tables []Table) []Table {
	var out []Table
	for _, t := range tables {
		if n := len(out); n > 0 {
			prev := &out[n-1]
			if prev.Columns() == t.Columns() && len(t.Rows) > 0 && slices.Equal(prev.Rows[0], t.Rows[0]) {
				prev.Rows = append(prev.Rows, t.Rows[1:]...)
				continue
			}
		}
		out = append(out, t)
	}
	return out
}
