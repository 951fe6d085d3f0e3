package processor

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DocumentLayout is the page geometry of the body's final section, in points.
type DocumentLayout struct {
	PageWidth    float64
	PageHeight   float64
	LeftMargin   float64
	RightMargin  float64
	TopMargin    float64
	BottomMargin float64
	Landscape    bool
}

func (l DocumentLayout) WidthMM() float64  { return pointsToMM(l.PageWidth) }
func (l DocumentLayout) HeightMM() float64 { return pointsToMM(l.PageHeight) }

// ContentWidth and ContentHeight are the printable area inside the margins.
func (l DocumentLayout) ContentWidth() float64 {
	return math.Max(l.PageWidth-l.LeftMargin-l.RightMargin, 72)
}

func (l DocumentLayout) ContentHeight() float64 {
	return math.Max(l.PageHeight-l.TopMargin-l.BottomMargin, 72)
}

// SizeName reports the standard paper size matching the page, or "custom".
func (l DocumentLayout) SizeName() string {
	w, h := l.WidthMM(), l.HeightMM()
	short, long := math.Min(w, h), math.Max(w, h)
	for _, ps := range StandardPageSizes {
		if math.Abs(short-ps.WidthMM) <= 2 && math.Abs(long-ps.HeightMM) <= 2 {
			return ps.Name
		}
	}
	return PageSizeCustom
}

// Word's defaults when a section omits its geometry: US Letter, 1 inch margins.
func defaultLayout() DocumentLayout {
	return DocumentLayout{
		PageWidth:    612,
		PageHeight:   792,
		LeftMargin:   72,
		RightMargin:  72,
		TopMargin:    72,
		BottomMargin: 72,
	}
}

// parseDocumentLayout reads w:pgSz and w:pgMar from the body's final w:sectPr.
func parseDocumentLayout(content string) DocumentLayout {
	sect, ok := bodySectPr(content)
	if !ok {
		return defaultLayout()
	}
	return parseSectLayout(sect.outer(content))
}

// parseSectLayout reads the geometry of one w:sectPr element.
func parseSectLayout(sectContent string) DocumentLayout {
	layout := defaultLayout()

	explicitOrient := false
	if tag := pgSzPattern.FindString(sectContent); tag != "" {
		if w := twipsAttr(tag, "w:w"); w > 0 {
			layout.PageWidth = w
		}
		if h := twipsAttr(tag, "w:h"); h > 0 {
			layout.PageHeight = h
		}
		if orient, ok := attr(tag, "w:orient"); ok {
			explicitOrient = true
			layout.Landscape = orient == "landscape"
		}
	}

	if tag := pgMarPattern.FindString(sectContent); tag != "" {
		margins := map[string]*float64{
			"w:left":   &layout.LeftMargin,
			"w:right":  &layout.RightMargin,
			"w:top":    &layout.TopMargin,
			"w:bottom": &layout.BottomMargin,
		}
		for name, ptr := range margins {
			if v := twipsAttr(tag, name); v > 0 {
				*ptr = v
			}
		}
	}

	if !explicitOrient {
		layout.Landscape = layout.PageWidth > layout.PageHeight
	}
	return layout
}

// bodySectPr returns the section properties that close w:body.
func bodySectPr(content string) (element, bool) {
	body, ok := findElement(content, "w:body", 0)
	if !ok {
		return element{}, false
	}
	kids := children(content, body.innerStart, body.innerEnd)
	if n := len(kids); n > 0 && kids[n-1].name == "w:sectPr" {
		return kids[n-1], true
	}
	return findElement(content, "w:sectPr", body.innerStart)
}

var (
	pgSzPattern  = regexp.MustCompile(`<w:pgSz\b[^>]*/>`)
	pgMarPattern = regexp.MustCompile(`<w:pgMar\b[^>]*/>`)
)

// twipsAttr parses a twentieths-of-a-point attribute and returns points.
func twipsAttr(tag, name string) float64 {
	v, ok := attr(tag, name)
	if !ok {
		return 0
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return n / 20
}

func pointsToMM(pt float64) float64 { return pt / 72 * 25.4 }

func mmToTwips(mm float64) int { return int(math.Round(mm * 1440 / 25.4)) }

const (
	PageSizeDefault = "default"
	PageSizeCustom  = "custom"
)

type PageSize struct {
	Name     string
	WidthMM  float64
	HeightMM float64
}

// StandardPageSizes are portrait dimensions.
var StandardPageSizes = []PageSize{
	{Name: "A3", WidthMM: 297, HeightMM: 420},
	{Name: "A4", WidthMM: 210, HeightMM: 297},
	{Name: "A5", WidthMM: 148, HeightMM: 210},
	{Name: "Letter", WidthMM: 215.9, HeightMM: 279.4},
	{Name: "Legal", WidthMM: 215.9, HeightMM: 355.6},
}

func LookupPageSize(name string) (PageSize, bool) {
	for _, ps := range StandardPageSizes {
		if strings.EqualFold(ps.Name, name) {
			return ps, true
		}
	}
	return PageSize{}, false
}

// DocSettings overrides template geometry and typography. Zero values keep
// the template's own settings. Custom dimensions are in millimetres.
type DocSettings struct {
	PageSize   string  `json:"page_size"`
	PageWidth  float64 `json:"page_width,omitempty"`
	PageHeight float64 `json:"page_height,omitempty"`
	FontName   string  `json:"font_name,omitempty"`
	FontSize   float64 `json:"font_size,omitempty"`
}

func (s DocSettings) Validate() error {
	switch {
	case s.PageSize == "" || strings.EqualFold(s.PageSize, PageSizeDefault):
	case strings.EqualFold(s.PageSize, PageSizeCustom):
		if s.PageWidth <= 0 || s.PageHeight <= 0 {
			return fmt.Errorf("custom page size needs positive page_width and page_height")
		}
	default:
		if _, ok := LookupPageSize(s.PageSize); !ok {
			return fmt.Errorf("unknown page size %q", s.PageSize)
		}
	}
	if s.FontSize < 0 || s.FontSize > 400 {
		return fmt.Errorf("font size %.1f out of range", s.FontSize)
	}
	return nil
}

// applyPageSize rewrites every w:pgSz in the main document part. Named sizes
// keep each section's orientation; custom sizes are used exactly as given.
func applyPageSize(content string, s DocSettings) string {
	if s.PageSize == "" || strings.EqualFold(s.PageSize, PageSizeDefault) {
		return content
	}

	target := func(landscape bool) (int, int) {
		if strings.EqualFold(s.PageSize, PageSizeCustom) {
			return mmToTwips(s.PageWidth), mmToTwips(s.PageHeight)
		}
		ps, _ := LookupPageSize(s.PageSize)
		w, h := mmToTwips(ps.WidthMM), mmToTwips(ps.HeightMM)
		if landscape {
			w, h = h, w
		}
		return w, h
	}

	if pgSzPattern.MatchString(content) {
		return pgSzPattern.ReplaceAllStringFunc(content, func(tag string) string {
			landscape := false
			if orient, ok := attr(tag, "w:orient"); ok {
				landscape = orient == "landscape"
			} else {
				landscape = twipsAttr(tag, "w:w") > twipsAttr(tag, "w:h")
			}
			return pgSzTag(target(landscape))
		})
	}

	tag := pgSzTag(target(false))
	sect, ok := bodySectPr(content)
	if !ok {
		if i := strings.LastIndex(content, "</w:body>"); i >= 0 {
			return content[:i] + "<w:sectPr>" + tag + "</w:sectPr>" + content[i:]
		}
		return content
	}
	updated := insertChild(sect.outer(content), tag, sectPrBeforePgSz)
	return content[:sect.start] + updated + content[sect.end:]
}

var sectPrBeforePgSz = map[string]bool{
	"w:headerReference": true,
	"w:footerReference": true,
	"w:footnotePr":      true,
	"w:endnotePr":       true,
	"w:type":            true,
}

func pgSzTag(w, h int) string {
	if w > h {
		return fmt.Sprintf(`<w:pgSz w:w="%d" w:h="%d" w:orient="landscape"/>`, w, h)
	}
	return fmt.Sprintf(`<w:pgSz w:w="%d" w:h="%d"/>`, w, h)
}
