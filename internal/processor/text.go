package processor

import "strings"

type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockTable
	BlockPageBreak
)

// TextBlock is a body block reduced to its text.
type TextBlock struct {
	Kind     BlockKind
	Text     string
	FontSize float64
	Rows     [][]string
}

// TextDocument is a plain view of a rendered document, used when a PDF must
// be produced without a layout engine.
type TextDocument struct {
	Layout   DocumentLayout
	FontName string
	FontSize float64
	Blocks   []TextBlock
}

// ReadText flattens the body into paragraphs, tables and page breaks.
func ReadText(docx []byte) (*TextDocument, error) {
	dp, err := NewDocxProcessor(docx)
	if err != nil {
		return nil, err
	}
	content, _ := dp.Part(documentPart)
	doc := &TextDocument{Layout: parseDocumentLayout(content)}
	doc.FontName, doc.FontSize = dp.detectFont()

	body, ok := findElement(content, "w:body", 0)
	if !ok {
		return doc, nil
	}
	kids := children(content, body.innerStart, body.innerEnd)
	for i, k := range kids {
		switch k.name {
		case "w:p":
			info := scanParagraph(content, k)
			if info.breakBefore != nil && len(doc.Blocks) > 0 {
				doc.Blocks = append(doc.Blocks, TextBlock{Kind: BlockPageBreak})
			}
			for _, seg := range info.segments {
				doc.Blocks = append(doc.Blocks, TextBlock{
					Kind:     BlockParagraph,
					Text:     seg.text.String(),
					FontSize: info.fontSize,
				})
				if seg.pageBreak != nil {
					doc.Blocks = append(doc.Blocks, TextBlock{Kind: BlockPageBreak})
				}
			}
			if info.sectPr != "" && sectionBreaks(info.sectPr) && i < len(kids)-1 {
				doc.Blocks = append(doc.Blocks, TextBlock{Kind: BlockPageBreak})
			}
		case "w:tbl":
			doc.Blocks = append(doc.Blocks, TextBlock{Kind: BlockTable, Rows: tableText(content, k)})
		case "w:sdt", "w:customXml":
			if text := strings.TrimSpace(containerText(content, k)); text != "" {
				doc.Blocks = append(doc.Blocks, TextBlock{Kind: BlockParagraph, Text: text})
			}
		}
	}
	return doc, nil
}

func tableText(s string, tbl element) [][]string {
	var rows [][]string
	for _, tr := range children(s, tbl.innerStart, tbl.innerEnd) {
		if tr.name != "w:tr" {
			continue
		}
		var row []string
		for _, tc := range children(s, tr.innerStart, tr.innerEnd) {
			if tc.name == "w:tc" {
				row = append(row, strings.TrimSpace(containerText(s, tc)))
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func containerText(s string, el element) string {
	var lines []string
	for _, c := range children(s, el.innerStart, el.innerEnd) {
		switch c.name {
		case "w:p":
			var b strings.Builder
			for _, seg := range scanParagraph(s, c).segments {
				b.WriteString(seg.text.String())
			}
			lines = append(lines, b.String())
		case "w:tbl":
			for _, row := range tableText(s, c) {
				lines = append(lines, strings.Join(row, "\t"))
			}
		case "w:sdtContent", "w:sdt", "w:customXml":
			lines = append(lines, containerText(s, c))
		}
	}
	return strings.Join(lines, "\n")
}
