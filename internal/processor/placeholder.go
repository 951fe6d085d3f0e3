package processor

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
)

// DefaultPlaceholderPattern matches tags such as #NAME or #P_ADDRESS.
// The repetition is greedy, so #TOSW is one tag and never #TOS followed by "W".
var DefaultPlaceholderPattern = regexp.MustCompile(`#[\p{L}\p{N}_]+`)

// textRun is one <w:t> element, or a break or tab between text elements.
// Separators take part in matching but are never rewritten.
type textRun struct {
	start, end int // span of <w:t ...>...</w:t>
	text       string
	separator  bool
}

func separatorText(name string) (string, bool) {
	switch name {
	case "w:br", "w:cr":
		return "\n", true
	case "w:tab", "w:ptab":
		return "\t", true
	}
	return "", false
}

// textGroup is the text of one paragraph flattened across its runs. owner
// maps each byte of flat back to the run it came from.
type textGroup struct {
	runs  []textRun
	flat  string
	owner []int
}

type tagMatch struct {
	name       string
	group      int
	start, end int // byte offsets into the group's flat text
	pos        int // absolute offset of the run holding the first byte
}

type partText struct {
	xml     string
	groups  []*textGroup
	matches []tagMatch
}

// scanPartText collects paragraph text from a part and finds placeholder
// matches. A placeholder whose characters are spread over several runs is
// found because matching happens on the flattened paragraph text.
func scanPartText(content string, pattern *regexp.Regexp) *partText {
	pt := &partText{xml: content}

	var stack []*textGroup
	var loose *textGroup
	inPPr := false
	pos := 0
	for {
		t, ok := nextTag(content, pos)
		if !ok {
			break
		}
		pos = t.end
		switch {
		case t.name == "w:p" && !t.closing && !t.selfClosing:
			g := &textGroup{}
			pt.groups = append(pt.groups, g)
			stack = append(stack, g)
		case t.name == "w:p" && t.closing:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case t.name == "w:pPr" && !t.selfClosing:
			inPPr = !t.closing
		case t.name == "w:t" && !t.closing && !t.selfClosing:
			closeAt := strings.Index(content[t.end:], "</w:t>")
			if closeAt < 0 {
				continue
			}
			closeAt += t.end
			run := textRun{
				start: t.start,
				end:   closeAt + len("</w:t>"),
				text:  unescapeText(content[t.end:closeAt]),
			}
			g := loose
			if len(stack) > 0 {
				g = stack[len(stack)-1]
			} else if g == nil {
				g = &textGroup{}
				loose = g
				pt.groups = append(pt.groups, g)
			}
			g.runs = append(g.runs, run)
			pos = run.end
		case !t.closing && !inPPr && len(stack) > 0:
			// w:tab inside w:pPr is a tab stop, not text
			if text, ok := separatorText(t.name); ok {
				g := stack[len(stack)-1]
				g.runs = append(g.runs, textRun{start: t.start, end: t.end, text: text, separator: true})
			}
		}
	}

	for gi, g := range pt.groups {
		var b strings.Builder
		for ri, r := range g.runs {
			b.WriteString(r.text)
			for range len(r.text) {
				g.owner = append(g.owner, ri)
			}
		}
		g.flat = b.String()
		if g.flat == "" {
			continue
		}
		for _, loc := range pattern.FindAllStringIndex(g.flat, -1) {
			pt.matches = append(pt.matches, tagMatch{
				name:  g.flat[loc[0]:loc[1]],
				group: gi,
				start: loc[0],
				end:   loc[1],
				pos:   g.runs[g.owner[loc[0]]].start,
			})
		}
	}

	slices.SortStableFunc(pt.matches, func(a, b tagMatch) int {
		if c := cmp.Compare(a.pos, b.pos); c != 0 {
			return c
		}
		return cmp.Compare(a.start, b.start)
	})
	return pt
}

// rewrite returns the part with matches replaced. replacements is aligned
// with pt.matches; a nil entry keeps the original tag text. Replacement text
// lands in the run holding the tag's first character, so it inherits that
// run's formatting; the tag's remaining characters are removed from later runs.
func (pt *partText) rewrite(replacements []*string) string {
	byGroup := make(map[int]map[int]int)
	for i, m := range pt.matches {
		if replacements[i] == nil {
			continue
		}
		if byGroup[m.group] == nil {
			byGroup[m.group] = make(map[int]int)
		}
		byGroup[m.group][m.start] = i
	}

	var edits []edit
	for gi, starts := range byGroup {
		g := pt.groups[gi]
		bufs := make([]strings.Builder, len(g.runs))
		for i := 0; i < len(g.flat); {
			if mi, ok := starts[i]; ok {
				bufs[g.owner[i]].WriteString(*replacements[mi])
				i = pt.matches[mi].end
				continue
			}
			bufs[g.owner[i]].WriteByte(g.flat[i])
			i++
		}
		for ri, r := range g.runs {
			text := bufs[ri].String()
			if r.separator || text == r.text {
				continue
			}
			edits = append(edits, edit{start: r.start, end: r.end, text: runTextXML(text)})
		}
	}
	return applyEdits(pt.xml, edits)
}

// runTextXML renders text as run content. Newlines become <w:br/> and tabs
// <w:tab/> so multi-line values keep their shape.
func runTextXML(text string) string {
	var b strings.Builder
	lines := strings.Split(text, "\n")
	for li, line := range lines {
		if li > 0 {
			b.WriteString("<w:br/>")
		}
		cells := strings.Split(strings.TrimSuffix(line, "\r"), "\t")
		for ci, cell := range cells {
			if ci > 0 {
				b.WriteString("<w:tab/>")
			}
			if cell == "" && (len(lines) > 1 || len(cells) > 1) {
				continue
			}
			b.WriteString(`<w:t xml:space="preserve">`)
			b.WriteString(escapeText(cell))
			b.WriteString("</w:t>")
		}
	}
	return b.String()
}
