package processor

import (
	"bytes"
	"fmt"
	"maps"
	"regexp"
	"slices"

	"docforge/internal/apperror"
)

const NoPlaceholdersWarning = "No placeholders found in template"

// TemplateInfo is what the mapping editor needs to know about a template.
type TemplateInfo struct {
	Placeholders        []string
	Counts              map[string]int
	Layout              DocumentLayout
	PageSize            string
	FontName            string
	FontSize            float64
	SuggestedRowsPerDoc int
	Warnings            []string
}

// Template is an uploaded Word template. It is never modified after
// LoadTemplate; every render works on a fresh copy of its parts.
type Template struct {
	data    []byte
	pattern *regexp.Regexp
	info    TemplateInfo
}

// LoadTemplate parses and introspects a template. A nil pattern selects
// DefaultPlaceholderPattern.
func LoadTemplate(data []byte, pattern *regexp.Regexp) (*Template, error) {
	if pattern == nil {
		pattern = DefaultPlaceholderPattern
	}
	dp, err := NewDocxProcessor(data)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTemplateParse, "Template is not a valid Word document", err)
	}
	content, _ := dp.Part(documentPart)
	if _, ok := findElement(content, "w:body", 0); !ok {
		return nil, apperror.Wrap(apperror.KindTemplateParse, "Template is not a valid Word document",
			fmt.Errorf("%s has no w:body", documentPart))
	}

	return &Template{
		data:    bytes.Clone(data),
		pattern: pattern,
		info:    introspect(dp, pattern),
	}, nil
}

func (t *Template) Info() TemplateInfo {
	info := t.info
	info.Placeholders = slices.Clone(t.info.Placeholders)
	info.Counts = maps.Clone(t.info.Counts)
	info.Warnings = slices.Clone(t.info.Warnings)
	return info
}

func (t *Template) Bytes() []byte { return t.data }

func (t *Template) Pattern() *regexp.Regexp { return t.pattern }

func introspect(dp *DocxProcessor, pattern *regexp.Regexp) TemplateInfo {
	names, counts := dp.PlaceholderCounts(pattern)
	content, _ := dp.Part(documentPart)
	layout := parseDocumentLayout(content)
	fontName, fontSize := dp.detectFont()

	info := TemplateInfo{
		Placeholders:        names,
		Counts:              counts,
		Layout:              layout,
		PageSize:            layout.SizeName(),
		FontName:            fontName,
		FontSize:            fontSize,
		SuggestedRowsPerDoc: suggestRowsPerDoc(counts),
	}
	if len(names) == 0 {
		info.Warnings = append(info.Warnings, NoPlaceholdersWarning)
	}
	return info
}

// PlaceholderCounts returns placeholder names in first-seen order and how
// often each one occurs across body, headers and footers.
func (dp *DocxProcessor) PlaceholderCounts(pattern *regexp.Regexp) ([]string, map[string]int) {
	var names []string
	counts := make(map[string]int)
	for _, part := range dp.ContentParts() {
		content, _ := dp.Part(part)
		for _, m := range scanPartText(content, pattern).matches {
			if counts[m.name] == 0 {
				names = append(names, m.name)
			}
			counts[m.name]++
		}
	}
	return names, counts
}

// suggestRowsPerDoc picks the most common occurrence count, preferring the
// smaller count on ties. A template repeating its tags three times is laid
// out for three rows per document.
func suggestRowsPerDoc(counts map[string]int) int {
	freq := make(map[int]int)
	for _, c := range counts {
		freq[c]++
	}
	best, bestFreq := 1, 0
	for c, f := range freq {
		if f > bestFreq || (f == bestFreq && c < best) {
			best, bestFreq = c, f
		}
	}
	return max(best, 1)
}
