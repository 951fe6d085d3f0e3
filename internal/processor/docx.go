package processor

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

const (
	documentPart = "word/document.xml"
	stylesPart   = "word/styles.xml"
	themePart    = "word/theme/theme1.xml"

	DocxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var headerFooterPart = regexp.MustCompile(`^word/(header|footer)\d*\.xml$`)

// DocxProcessor holds the parts of one Word package in memory. Every
// render works on its own processor, so the template bytes are never mutated.
type DocxProcessor struct {
	order []string
	parts map[string][]byte
	modes map[string]zip.FileHeader
}

// NewDocxProcessor reads a DOCX package.
func NewDocxProcessor(data []byte) (*DocxProcessor, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx package: %w", err)
	}

	dp := &DocxProcessor{
		parts: make(map[string][]byte, len(reader.File)),
		modes: make(map[string]zip.FileHeader, len(reader.File)),
	}
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		content, err := readZipFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to extract file %s: %w", file.Name, err)
		}
		dp.order = append(dp.order, file.Name)
		dp.parts[file.Name] = content
		dp.modes[file.Name] = file.FileHeader
	}

	if _, ok := dp.parts[documentPart]; !ok {
		return nil, fmt.Errorf("not a word document: missing %s", documentPart)
	}
	return dp, nil
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (dp *DocxProcessor) Part(name string) (string, bool) {
	content, ok := dp.parts[name]
	return string(content), ok
}

func (dp *DocxProcessor) SetPart(name, content string) {
	if _, ok := dp.parts[name]; !ok {
		dp.order = append(dp.order, name)
	}
	dp.parts[name] = []byte(content)
}

// ContentParts lists the parts that carry document text: the main body
// first, then headers and footers ordered by part name.
func (dp *DocxProcessor) ContentParts() []string {
	var extra []string
	for name := range dp.parts {
		if headerFooterPart.MatchString(name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append([]string{documentPart}, extra...)
}

// Bytes re-zips the package, keeping the original part order so that
// [Content_Types].xml stays first.
func (dp *DocxProcessor) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)

	for _, name := range dp.order {
		header := dp.modes[name]
		fh := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: header.Modified,
		}
		if header.Method == zip.Store && !strings.HasSuffix(name, ".xml") && !strings.HasSuffix(name, ".rels") {
			fh.Method = zip.Store
		}
		w, err := zipWriter.CreateHeader(fh)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", name, err)
		}
		if _, err := w.Write(dp.parts[name]); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize docx package: %w", err)
	}
	return buf.Bytes(), nil
}

// ExtractPlaceholders returns unique placeholder names in first-seen order.
func (dp *DocxProcessor) ExtractPlaceholders(pattern *regexp.Regexp) []string {
	names, _ := dp.PlaceholderCounts(pattern)
	return names
}

// fill rewrites placeholders in document order. value receives the
// placeholder name and its zero-based occurrence index across all content
// parts; returning false leaves that occurrence untouched.
func (dp *DocxProcessor) fill(pattern *regexp.Regexp, value func(name string, occurrence int) (string, bool)) {
	occurrences := make(map[string]int)
	for _, name := range dp.ContentParts() {
		content, _ := dp.Part(name)
		pt := scanPartText(content, pattern)
		if len(pt.matches) == 0 {
			continue
		}
		replacements := make([]*string, len(pt.matches))
		for i, m := range pt.matches {
			k := occurrences[m.name]
			occurrences[m.name]++
			if v, ok := value(m.name, k); ok {
				replacements[i] = &v
			}
		}
		dp.SetPart(name, pt.rewrite(replacements))
	}
}
