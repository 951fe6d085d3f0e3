package processor

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Word's built-in defaults when styles.xml says nothing.
const (
	fallbackFontName = "Calibri"
	fallbackFontSize = 11.0
)

// detectFont reports the template's base font: document defaults, then the
// default paragraph style, with theme font references resolved.
func (dp *DocxProcessor) detectFont() (string, float64) {
	name, size := "", 0.0

	styles, ok := dp.Part(stylesPart)
	if !ok {
		return fallbackFontName, fallbackFontSize
	}

	apply := func(rPr string) {
		if tag := rFontsPattern.FindString(rPr); tag != "" {
			if n := dp.fontFromRFonts(tag); n != "" {
				name = n
			}
		}
		if m := szValPattern.FindStringSubmatch(rPr); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
				size = v / 2
			}
		}
	}

	if defaults, ok := findElement(styles, "w:docDefaults", 0); ok {
		if rPr, ok := findElement(styles[defaults.start:defaults.end], "w:rPr", 0); ok {
			apply(rPr.outer(styles[defaults.start:defaults.end]))
		}
	}
	if normal, ok := defaultParagraphStyle(styles); ok {
		if rPr, ok := firstChild(styles, normal, "w:rPr"); ok {
			apply(rPr.outer(styles))
		}
	}

	if name == "" {
		name = fallbackFontName
	}
	if size == 0 {
		size = fallbackFontSize
	}
	return name, size
}

var (
	rFontsPattern = regexp.MustCompile(`<w:rFonts\b[^>]*/>`)
	szValPattern  = regexp.MustCompile(`<w:sz\s+w:val="(\d+(?:\.\d+)?)"`)
	sizeTags      = regexp.MustCompile(`<w:szCs?\b[^>]*/>`)
	runStartTag   = regexp.MustCompile(`<w:r(?:\s[^>]*)?>`)
)

func defaultParagraphStyle(styles string) (element, bool) {
	pos := 0
	for {
		el, ok := findElement(styles, "w:style", pos)
		if !ok {
			return element{}, false
		}
		t, _ := nextTag(styles, el.start)
		tag := styles[t.start:t.end]
		typ, _ := attr(tag, "w:type")
		def, _ := attr(tag, "w:default")
		if typ == "paragraph" && (def == "1" || def == "true") {
			return el, true
		}
		pos = el.end
	}
}

func (dp *DocxProcessor) fontFromRFonts(tag string) string {
	if v, ok := attr(tag, "w:ascii"); ok && v != "" {
		return v
	}
	if v, ok := attr(tag, "w:hAnsi"); ok && v != "" {
		return v
	}
	theme, ok := attr(tag, "w:asciiTheme")
	if !ok {
		return ""
	}
	block := "a:minorFont"
	if strings.HasPrefix(theme, "major") {
		block = "a:majorFont"
	}
	themeXML, ok := dp.Part(themePart)
	if !ok {
		return ""
	}
	fonts, ok := findElement(themeXML, block, 0)
	if !ok {
		return ""
	}
	latin, ok := firstChild(themeXML, fonts, "a:latin")
	if !ok {
		return ""
	}
	t, _ := nextTag(themeXML, latin.start)
	v, _ := attr(themeXML[t.start:t.end], "typeface")
	return v
}

// rPr children that must precede w:rFonts, and w:sz, in CT_RPr order.
var (
	rPrBeforeRFonts = map[string]bool{"w:rStyle": true}
	rPrBeforeSz     = map[string]bool{
		"w:rStyle": true, "w:rFonts": true, "w:b": true, "w:bCs": true,
		"w:i": true, "w:iCs": true, "w:caps": true, "w:smallCaps": true,
		"w:strike": true, "w:dstrike": true, "w:outline": true, "w:shadow": true,
		"w:emboss": true, "w:imprint": true, "w:noProof": true, "w:snapToGrid": true,
		"w:vanish": true, "w:webHidden": true, "w:color": true, "w:spacing": true,
		"w:w": true, "w:kern": true, "w:position": true,
	}
	rPrBeforeSzCs = func() map[string]bool {
		m := map[string]bool{"w:sz": true}
		for k := range rPrBeforeSz {
			m[k] = true
		}
		return m
	}()
)

type runProp struct {
	xml     string
	precede map[string]bool
}

// applyFont forces one font name and/or size on every run. Explicit font
// properties are removed from content parts and styles, the document
// defaults are rewritten, and each run gets direct formatting so renderers
// that ignore defaults still agree.
func (dp *DocxProcessor) applyFont(name string, size float64) {
	if name == "" && size <= 0 {
		return
	}

	var props []runProp
	if name != "" {
		n := escapeText(name)
		props = append(props, runProp{fmt.Sprintf(`<w:rFonts w:ascii="%s" w:hAnsi="%s" w:eastAsia="%s" w:cs="%s"/>`, n, n, n, n), rPrBeforeRFonts})
	}
	if size > 0 {
		half := int(math.Round(size * 2))
		props = append(props,
			runProp{fmt.Sprintf(`<w:sz w:val="%d"/>`, half), rPrBeforeSz},
			runProp{fmt.Sprintf(`<w:szCs w:val="%d"/>`, half), rPrBeforeSzCs},
		)
	}

	strip := func(content string) string {
		if name != "" {
			content = rFontsPattern.ReplaceAllString(content, "")
		}
		if size > 0 {
			content = sizeTags.ReplaceAllString(content, "")
		}
		return content
	}
	withProps := func(rPr string) string {
		for _, p := range props {
			rPr = insertChild(rPr, p.xml, p.precede)
		}
		return rPr
	}

	for _, part := range dp.ContentParts() {
		content, _ := dp.Part(part)
		content = strip(content)

		var edits []edit
		for _, loc := range runStartTag.FindAllStringIndex(content, -1) {
			t, ok := nextTag(content, loc[0])
			if !ok || t.start != loc[0] {
				continue
			}
			run, ok := elementAt(content, t)
			if !ok {
				continue
			}
			if rPr, ok := firstChild(content, run, "w:rPr"); ok {
				edits = append(edits, edit{start: rPr.start, end: rPr.end, text: withProps(rPr.outer(content))})
			} else {
				edits = append(edits, edit{start: run.innerStart, end: run.innerStart, text: withProps("<w:rPr/>")})
			}
		}
		dp.SetPart(part, applyEdits(content, edits))
	}

	styles, ok := dp.Part(stylesPart)
	if !ok {
		return
	}
	styles = strip(styles)
	dp.SetPart(stylesPart, setDefaultRunProps(styles, withProps))
}

// setDefaultRunProps rewrites w:docDefaults/w:rPrDefault/w:rPr, creating
// missing containers.
func setDefaultRunProps(styles string, withProps func(string) string) string {
	defaults, ok := findElement(styles, "w:docDefaults", 0)
	if !ok {
		root, ok := findElement(styles, "w:styles", 0)
		if !ok {
			return styles
		}
		block := "<w:docDefaults><w:rPrDefault>" + withProps("<w:rPr/>") + "</w:rPrDefault></w:docDefaults>"
		return styles[:root.innerStart] + block + styles[root.innerStart:]
	}
	rPrDefault, ok := firstChild(styles, defaults, "w:rPrDefault")
	if !ok {
		block := "<w:rPrDefault>" + withProps("<w:rPr/>") + "</w:rPrDefault>"
		return styles[:defaults.innerStart] + block + styles[defaults.innerStart:]
	}
	rPr, ok := firstChild(styles, rPrDefault, "w:rPr")
	if !ok {
		if rPrDefault.innerStart == rPrDefault.innerEnd {
			return styles[:rPrDefault.start] + "<w:rPrDefault>" + withProps("<w:rPr/>") + "</w:rPrDefault>" + styles[rPrDefault.end:]
		}
		return styles[:rPrDefault.innerStart] + withProps("<w:rPr/>") + styles[rPrDefault.innerStart:]
	}
	return styles[:rPr.start] + withProps(rPr.outer(styles)) + styles[rPr.end:]
}
