package processor

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Page estimation constants. Body text averages half an em per character.
const (
	lineSpacing  = 1.15
	avgCharWidth = 0.5
	emuPerPoint  = 12700
)

type boundaryKind int

const (
	boundaryFirst boundaryKind = iota
	boundaryOverflow
	boundaryPageBreak
	boundaryBreakBefore
	boundarySection
)

// boundary is what starts a page. del is the markup that produces it.
type boundary struct {
	kind boundaryKind
	del  span
}

func (b boundary) removable() bool {
	return b.kind == boundaryPageBreak || b.kind == boundaryBreakBefore
}

type bodyBlock struct {
	el        element
	paragraph bool
	section   bool
}

type pageInfo struct {
	start   boundary
	blocks  []int
	content bool
}

// pageModel is an estimate of how the body flows onto pages.
type pageModel struct {
	blocks []bodyBlock
	pages  []*pageInfo
}

// segment is the part of a paragraph between explicit page breaks.
type segment struct {
	text          strings.Builder
	content       bool
	graphicHeight float64
	pageBreak     *span
}

type paragraphInfo struct {
	segments    []*segment
	breakBefore *span
	sectPr      string
	fontSize    float64
	spaceBefore float64
	spaceAfter  float64
}

var (
	extentPattern  = regexp.MustCompile(`<wp:extent\b[^>]*\bcy="(\d+)"`)
	vmlHeightStyle = regexp.MustCompile(`height:\s*([\d.]+)pt`)
)

func scanParagraph(s string, p element) *paragraphInfo {
	info := &paragraphInfo{}
	pos := p.innerStart

	if pPr, ok := firstChild(s, p, "w:pPr"); ok {
		pos = pPr.end
		for _, c := range children(s, pPr.innerStart, pPr.innerEnd) {
			tag := startTag(s, c)
			switch c.name {
			case "w:pageBreakBefore":
				if on(tag) {
					info.breakBefore = &span{c.start, c.end}
				}
			case "w:sectPr":
				info.sectPr = c.outer(s)
			case "w:spacing":
				info.spaceBefore = twipsAttr(tag, "w:before")
				info.spaceAfter = twipsAttr(tag, "w:after")
			case "w:rPr":
				if m := szValPattern.FindStringSubmatch(c.outer(s)); m != nil {
					info.fontSize = halfPoints(m[1])
				}
			}
		}
	}

	seg := &segment{}
	for pos < p.innerEnd {
		t, ok := nextTag(s, pos)
		if !ok || t.start >= p.innerEnd {
			break
		}
		pos = t.end
		if t.closing {
			continue
		}
		switch t.name {
		case "w:t":
			if t.selfClosing {
				continue
			}
			el, ok := elementAt(s, t)
			if !ok {
				continue
			}
			text := unescapeText(el.inner(s))
			seg.text.WriteString(text)
			if strings.TrimSpace(text) != "" {
				seg.content = true
			}
			pos = el.end
		case "w:tab":
			seg.text.WriteByte('\t')
		case "w:br", "w:cr":
			typ, _ := attr(s[t.start:t.end], "w:type")
			if t.name == "w:br" && typ == "page" {
				el, ok := elementAt(s, t)
				if !ok {
					continue
				}
				seg.pageBreak = &span{el.start, el.end}
				info.segments = append(info.segments, seg)
				seg = &segment{}
				pos = el.end
				continue
			}
			seg.text.WriteByte('\n')
		case "w:drawing", "w:pict", "w:object":
			el, ok := elementAt(s, t)
			if !ok {
				continue
			}
			seg.content = true
			seg.graphicHeight = math.Max(seg.graphicHeight, graphicHeight(el.outer(s)))
			pos = el.end
		case "m:oMath", "m:oMathPara", "w:sym":
			seg.content = true
			if el, ok := elementAt(s, t); ok {
				seg.text.WriteString(strings.Repeat(" ", max(1, len(stripTags(el.inner(s))))))
				pos = el.end
			}
		case "w:sz":
			if info.fontSize == 0 {
				if v, ok := attr(s[t.start:t.end], "w:val"); ok {
					info.fontSize = halfPoints(v)
				}
			}
		}
	}
	info.segments = append(info.segments, seg)
	return info
}

// on reports whether a toggle property such as <w:pageBreakBefore/> is set.
func on(tag string) bool {
	v, ok := attr(tag, "w:val")
	if !ok {
		return true
	}
	switch strings.ToLower(v) {
	case "0", "false", "off":
		return false
	}
	return true
}

func startTag(s string, el element) string {
	return s[el.start:el.innerStart]
}

func halfPoints(v string) float64 {
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || n <= 0 {
		return 0
	}
	return n / 2
}

func graphicHeight(xml string) float64 {
	h := 0.0
	for _, m := range extentPattern.FindAllStringSubmatch(xml, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			h = math.Max(h, v/emuPerPoint)
		}
	}
	for _, m := range vmlHeightStyle.FindAllStringSubmatch(xml, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			h = math.Max(h, v)
		}
	}
	return h
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string { return tagPattern.ReplaceAllString(s, "") }

var sectTypePattern = regexp.MustCompile(`<w:type\b[^>]*/>`)

// sectionBreaks reports whether a section starts its successor on a new page.
func sectionBreaks(sectPr string) bool {
	m := sectTypePattern.FindString(sectPr)
	if m == "" {
		return true
	}
	v, _ := attr(m, "w:val")
	return v != "continuous"
}

// paginator flows body blocks onto estimated pages.
type paginator struct {
	model    *pageModel
	fontSize float64
	layout   DocumentLayout
	used     float64
}

func (p *paginator) current() *pageInfo { return p.model.pages[len(p.model.pages)-1] }

func (p *paginator) newPage(b boundary) {
	p.model.pages = append(p.model.pages, &pageInfo{start: b})
	p.used = 0
}

func (p *paginator) touch(block int, content bool) {
	pg := p.current()
	if n := len(pg.blocks); n == 0 || pg.blocks[n-1] != block {
		pg.blocks = append(pg.blocks, block)
	}
	if content {
		pg.content = true
	}
}

func (p *paginator) place(block int, h float64, content bool) {
	limit := p.layout.ContentHeight()
	if p.used > 0 && p.used+h > limit {
		p.newPage(boundary{kind: boundaryOverflow})
	}
	p.touch(block, content)
	p.used += h
	for p.used > limit {
		rest := p.used - limit
		p.newPage(boundary{kind: boundaryOverflow})
		p.touch(block, content)
		p.used = rest
	}
}

func (p *paginator) segmentHeight(info *paragraphInfo, seg *segment, width float64) float64 {
	fs := info.fontSize
	if fs == 0 {
		fs = p.fontSize
	}
	perLine := max(1, int(width/(fs*avgCharWidth)))
	lines := 0
	for line := range strings.SplitSeq(seg.text.String(), "\n") {
		chars := utf8.RuneCountInString(line) + 3*strings.Count(line, "\t")
		lines += max(1, (chars+perLine-1)/perLine)
	}
	return math.Max(float64(lines)*fs*lineSpacing, seg.graphicHeight)
}

func (p *paginator) paragraphHeight(s string, el element, width float64) float64 {
	info := scanParagraph(s, el)
	h := info.spaceBefore + info.spaceAfter
	for _, seg := range info.segments {
		h += p.segmentHeight(info, seg, width)
	}
	return h
}

// containerHeight sums the paragraphs and tables inside a cell or content control.
func (p *paginator) containerHeight(s string, el element, width float64) float64 {
	h := 0.0
	for _, c := range children(s, el.innerStart, el.innerEnd) {
		switch c.name {
		case "w:p":
			h += p.paragraphHeight(s, c, width)
		case "w:tbl":
			h += p.tableHeight(s, c, width)
		case "w:sdt", "w:sdtContent", "w:customXml":
			h += p.containerHeight(s, c, width)
		}
	}
	return h
}

func (p *paginator) tableHeight(s string, tbl element, width float64) float64 {
	total := 0.0
	for _, tr := range children(s, tbl.innerStart, tbl.innerEnd) {
		if tr.name != "w:tr" {
			continue
		}
		var cells []element
		rowH := p.fontSize * lineSpacing
		for _, c := range children(s, tr.innerStart, tr.innerEnd) {
			switch c.name {
			case "w:tc":
				cells = append(cells, c)
			case "w:trPr":
				if hEl, ok := firstChild(s, c, "w:trHeight"); ok {
					rowH = math.Max(rowH, twipsAttr(startTag(s, hEl), "w:val"))
				}
			}
		}
		cellWidth := width / float64(max(1, len(cells)))
		for _, c := range cells {
			rowH = math.Max(rowH, p.containerHeight(s, c, cellWidth))
		}
		total += rowH
	}
	return total
}

// buildPageModel estimates pagination of the main document part.
func buildPageModel(content string, fontSize float64) (*pageModel, bool) {
	body, ok := findElement(content, "w:body", 0)
	if !ok {
		return nil, false
	}
	kids := children(content, body.innerStart, body.innerEnd)
	if n := len(kids); n > 0 && kids[n-1].name == "w:sectPr" {
		kids = kids[:n-1]
	}

	m := &pageModel{}
	infos := make([]*paragraphInfo, len(kids))
	for i, k := range kids {
		b := bodyBlock{el: k, paragraph: k.name == "w:p"}
		if b.paragraph {
			infos[i] = scanParagraph(content, k)
			b.section = infos[i].sectPr != ""
		}
		m.blocks = append(m.blocks, b)
	}

	layouts := make([]DocumentLayout, len(kids))
	layout := parseDocumentLayout(content)
	for i := len(kids) - 1; i >= 0; i-- {
		if m.blocks[i].section {
			layout = parseSectLayout(infos[i].sectPr)
		}
		layouts[i] = layout
	}

	p := &paginator{model: m, fontSize: fontSize, layout: layout}
	p.newPage(boundary{kind: boundaryFirst})

	for i, b := range m.blocks {
		p.layout = layouts[i]
		width := p.layout.ContentWidth()

		switch {
		case b.paragraph:
			info := infos[i]
			if info.breakBefore != nil && p.used > 0 {
				p.newPage(boundary{kind: boundaryBreakBefore, del: *info.breakBefore})
			}
			for si, seg := range info.segments {
				h := p.segmentHeight(info, seg, width)
				if si == 0 {
					h += info.spaceBefore
				}
				if si == len(info.segments)-1 {
					h += info.spaceAfter
				}
				p.place(i, h, seg.content)
				if seg.pageBreak != nil {
					p.newPage(boundary{kind: boundaryPageBreak, del: *seg.pageBreak})
				}
			}
			if b.section && sectionBreaks(info.sectPr) && i < len(m.blocks)-1 {
				p.newPage(boundary{kind: boundarySection})
			}
		case b.el.name == "w:tbl":
			p.place(i, p.tableHeight(content, b.el, width), true)
		default:
			p.place(i, p.containerHeight(content, b.el, width), hasVisibleContent(b.el.outer(content)))
		}
	}
	return m, true
}

// hasVisibleContent reports non-whitespace text or embedded objects.
func hasVisibleContent(xml string) bool {
	pos := 0
	for {
		t, ok := nextTag(xml, pos)
		if !ok {
			return false
		}
		pos = t.end
		if t.closing {
			continue
		}
		switch t.name {
		case "w:drawing", "w:pict", "w:object", "w:tbl", "m:oMath", "w:sym":
			return true
		case "w:t":
			if t.selfClosing {
				continue
			}
			if el, ok := elementAt(xml, t); ok && strings.TrimSpace(unescapeText(el.inner(xml))) != "" {
				return true
			}
		}
	}
}

// removals returns the markup to delete so that empty pages disappear, and
// the number of pages removed. A page is empty when it holds no visible text
// and no drawing, picture, object or table. Its paragraphs are removed along
// with the break that starts it, or the break that ends it when the start is
// not an explicit break. Paragraphs carrying section properties are kept.
func (m *pageModel) removals() ([]span, int) {
	allEmpty := true
	for _, pg := range m.pages {
		if pg.content {
			allEmpty = false
			break
		}
	}

	first := make(map[int]int)
	last := make(map[int]int)
	for pi, pg := range m.pages {
		for _, bi := range pg.blocks {
			if _, ok := first[bi]; !ok {
				first[bi] = pi
			}
			last[bi] = pi
		}
	}

	// A page deletes its own starting break, or the next page's when its own
	// is not removable or was already taken by the page before it.
	var dels []span
	taken := make(map[int]bool)
	emptied := make(map[int]bool)
	for pi, pg := range m.pages {
		if pg.content || (allEmpty && pi == 0) {
			continue
		}
		for _, bp := range []int{pi, pi + 1} {
			if bp < len(m.pages) && !taken[bp] && m.pages[bp].start.removable() {
				taken[bp] = true
				emptied[pi] = true
				dels = append(dels, m.pages[bp].start.del)
				break
			}
		}
	}

	removed := make(map[int]bool)
	for bi, blk := range m.blocks {
		if _, placed := first[bi]; !placed || !blk.paragraph || blk.section {
			continue
		}
		gone := true
		for pi := first[bi]; pi <= last[bi]; pi++ {
			if !emptied[pi] {
				gone = false
				break
			}
		}
		if gone {
			removed[bi] = true
		}
	}

	// The body must still end with a paragraph.
	if n := len(m.blocks); n > 0 && removed[n-1] {
		kept := -1
		for i := n - 1; i >= 0; i-- {
			if !removed[i] {
				kept = i
				break
			}
		}
		if kept < 0 || !m.blocks[kept].paragraph {
			delete(removed, n-1)
		}
	}

	for bi := range removed {
		dels = append(dels, span{m.blocks[bi].el.start, m.blocks[bi].el.end})
	}
	return dels, len(emptied)
}

// RemoveEmptyPages deletes pages left without visible content and returns
// how many were removed.
func (dp *DocxProcessor) RemoveEmptyPages() int {
	content, _ := dp.Part(documentPart)
	_, fontSize := dp.detectFont()
	m, ok := buildPageModel(content, fontSize)
	if !ok {
		return 0
	}
	dels, n := m.removals()
	if n == 0 {
		return 0
	}
	dp.SetPart(documentPart, applyDeletions(content, dels))
	return n
}

// PageCount estimates the number of pages in the document body.
func (dp *DocxProcessor) PageCount() int {
	content, _ := dp.Part(documentPart)
	_, fontSize := dp.detectFont()
	m, ok := buildPageModel(content, fontSize)
	if !ok {
		return 0
	}
	return len(m.pages)
}

// CountPages estimates the page count of a DOCX package.
func CountPages(docx []byte) (int, error) {
	dp, err := NewDocxProcessor(docx)
	if err != nil {
		return 0, err
	}
	return dp.PageCount(), nil
}
