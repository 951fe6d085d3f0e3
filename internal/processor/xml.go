package processor

import (
	"cmp"
	"html"
	"regexp"
	"slices"
	"strings"
)

// xmlTag is one markup tag located in a part's raw XML.
type xmlTag struct {
	name        string // qualified name without '<' or '/', e.g. "w:p"
	start, end  int    // byte span of the whole tag, end exclusive
	closing     bool
	selfClosing bool
}

// nextTag returns the first element tag at or after from. Processing
// instructions, comments and CDATA sections are skipped.
func nextTag(s string, from int) (xmlTag, bool) {
	for {
		i := strings.IndexByte(s[from:], '<')
		if i < 0 {
			return xmlTag{}, false
		}
		i += from
		rest := s[i:]
		switch {
		case strings.HasPrefix(rest, "<!--"):
			j := strings.Index(rest, "-->")
			if j < 0 {
				return xmlTag{}, false
			}
			from = i + j + 3
			continue
		case strings.HasPrefix(rest, "<![CDATA["):
			j := strings.Index(rest, "]]>")
			if j < 0 {
				return xmlTag{}, false
			}
			from = i + j + 3
			continue
		case strings.HasPrefix(rest, "<?"), strings.HasPrefix(rest, "<!"):
			j := strings.IndexByte(rest, '>')
			if j < 0 {
				return xmlTag{}, false
			}
			from = i + j + 1
			continue
		}

		end := tagEnd(s, i)
		if end < 0 {
			return xmlTag{}, false
		}
		t := xmlTag{start: i, end: end}
		body := s[i+1 : end-1]
		if strings.HasPrefix(body, "/") {
			t.closing = true
			body = body[1:]
		}
		if strings.HasSuffix(body, "/") {
			t.selfClosing = true
			body = body[:len(body)-1]
		}
		if k := strings.IndexAny(body, " \t\r\n/"); k >= 0 {
			body = body[:k]
		}
		t.name = body
		return t, true
	}
}

// tagEnd returns the index just past the '>' closing the tag opened at i,
// ignoring '>' inside quoted attribute values.
func tagEnd(s string, i int) int {
	var quote byte
	for j := i + 1; j < len(s); j++ {
		c := s[j]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return j + 1
		}
	}
	return -1
}

// element is a complete element span in a part.
type element struct {
	name       string
	start, end int // whole element including its end tag
	innerStart int // just past the start tag
	innerEnd   int // start of the end tag (== innerStart for self-closing)
}

func (e element) outer(s string) string { return s[e.start:e.end] }
func (e element) inner(s string) string { return s[e.innerStart:e.innerEnd] }

// elementAt completes the element whose start tag is t.
func elementAt(s string, t xmlTag) (element, bool) {
	el := element{name: t.name, start: t.start, innerStart: t.end}
	if t.selfClosing {
		el.end, el.innerEnd = t.end, t.end
		return el, true
	}
	depth := 1
	pos := t.end
	for {
		nt, ok := nextTag(s, pos)
		if !ok {
			return element{}, false
		}
		pos = nt.end
		switch {
		case nt.selfClosing:
		case nt.closing:
			depth--
			if depth == 0 {
				el.innerEnd = nt.start
				el.end = nt.end
				return el, true
			}
		default:
			depth++
		}
	}
}

// children lists the direct child elements within [from, to).
func children(s string, from, to int) []element {
	var out []element
	pos := from
	for pos < to {
		t, ok := nextTag(s, pos)
		if !ok || t.start >= to {
			break
		}
		if t.closing {
			pos = t.end
			continue
		}
		el, ok := elementAt(s, t)
		if !ok || el.end > to {
			break
		}
		out = append(out, el)
		pos = el.end
	}
	return out
}

// findElement returns the first element named name at or after from.
func findElement(s, name string, from int) (element, bool) {
	pos := from
	for {
		t, ok := nextTag(s, pos)
		if !ok {
			return element{}, false
		}
		if !t.closing && t.name == name {
			return elementAt(s, t)
		}
		pos = t.end
	}
}

func firstChild(s string, parent element, name string) (element, bool) {
	for _, c := range children(s, parent.innerStart, parent.innerEnd) {
		if c.name == name {
			return c, true
		}
	}
	return element{}, false
}

// insertChild places child inside container before the first direct child
// whose name is not listed in precede. WordprocessingML property elements
// are order-sensitive, so precede lists the siblings that must come first.
func insertChild(container, child string, precede map[string]bool) string {
	t, ok := nextTag(container, 0)
	if !ok {
		return container
	}
	if t.selfClosing {
		open := container[:t.end-2]
		open = strings.TrimRight(open, " ")
		return open + ">" + child + "</" + t.name + ">" + container[t.end:]
	}
	el, ok := elementAt(container, t)
	if !ok {
		return container
	}
	at := el.innerEnd
	for _, c := range children(container, el.innerStart, el.innerEnd) {
		if !precede[c.name] {
			at = c.start
			break
		}
	}
	return container[:at] + child + container[at:]
}

var attrPattern = regexp.MustCompile(`([\w:]+)\s*=\s*("[^"]*"|'[^']*')`)

// attr returns the unescaped value of attribute name in a start tag.
func attr(tag, name string) (string, bool) {
	for _, m := range attrPattern.FindAllStringSubmatch(tag, -1) {
		if m[1] == name {
			return html.UnescapeString(m[2][1 : len(m[2])-1]), true
		}
	}
	return "", false
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escapeText(s string) string { return xmlEscaper.Replace(s) }

func unescapeText(s string) string { return html.UnescapeString(s) }

type span struct{ start, end int }

// applyDeletions removes the given spans from s. Overlapping or nested spans are merged.
func applyDeletions(s string, spans []span) string {
	if len(spans) == 0 {
		return s
	}
	slices.SortFunc(spans, func(a, b span) int { return cmp.Compare(a.start, b.start) })
	var b strings.Builder
	pos := 0
	for _, sp := range spans {
		if sp.start < pos {
			if sp.end > pos {
				pos = sp.end
			}
			continue
		}
		b.WriteString(s[pos:sp.start])
		pos = sp.end
	}
	b.WriteString(s[pos:])
	return b.String()
}

type edit struct {
	start, end int
	text       string
}

// applyEdits replaces non-overlapping spans with new text.
func applyEdits(s string, edits []edit) string {
	if len(edits) == 0 {
		return s
	}
	slices.SortFunc(edits, func(a, b edit) int { return cmp.Compare(a.start, b.start) })
	var b strings.Builder
	pos := 0
	for _, e := range edits {
		if e.start < pos {
			continue
		}
		b.WriteString(s[pos:e.start])
		b.WriteString(e.text)
		pos = e.end
	}
	b.WriteString(s[pos:])
	return b.String()
}
