package processor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	paraIDAttr  = regexp.MustCompile(`\sw14:(?:paraId|textId)="[^"]*"`)
	docPrIDAttr = regexp.MustCompile(`(<wp:docPr\b[^>]*\bid=")(\d+)(")`)
)

// pPr children that precede w:pageBreakBefore.
var pPrBeforeBreak = map[string]bool{"w:pStyle": true, "w:keepNext": true, "w:keepLines": true}

// MergeDocuments concatenates DOCX packages rendered from the same template.
// Each later document starts on a new page; the first document supplies
// styles, headers, footers and the final section properties.
func MergeDocuments(docs [][]byte) ([]byte, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents to merge")
	}
	base, err := NewDocxProcessor(docs[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open document 1: %w", err)
	}
	if len(docs) == 1 {
		return base.Bytes()
	}

	content, _ := base.Part(documentPart)
	insertAt, ok := bodyInsertPoint(content)
	if !ok {
		return nil, fmt.Errorf("document 1 has no body")
	}

	var appended strings.Builder
	for i, data := range docs[1:] {
		dp, err := NewDocxProcessor(data)
		if err != nil {
			return nil, fmt.Errorf("failed to open document %d: %w", i+2, err)
		}
		part, _ := dp.Part(documentPart)
		blocks, ok := bodyBlocks(part)
		if !ok {
			return nil, fmt.Errorf("document %d has no body", i+2)
		}
		appended.WriteString(startOnNewPage(blocks))
	}

	merged := content[:insertAt] + paraIDAttr.ReplaceAllString(appended.String(), "") + content[insertAt:]
	base.SetPart(documentPart, renumberDrawings(merged))
	return base.Bytes()
}

// bodyInsertPoint is where appended blocks go: before the final w:sectPr,
// or before </w:body> when there is none.
func bodyInsertPoint(content string) (int, bool) {
	body, ok := findElement(content, "w:body", 0)
	if !ok {
		return 0, false
	}
	kids := children(content, body.innerStart, body.innerEnd)
	if n := len(kids); n > 0 && kids[n-1].name == "w:sectPr" {
		return kids[n-1].start, true
	}
	return body.innerEnd, true
}

// bodyBlocks returns the body content without its final w:sectPr.
func bodyBlocks(content string) (string, bool) {
	body, ok := findElement(content, "w:body", 0)
	if !ok {
		return "", false
	}
	end, _ := bodyInsertPoint(content)
	return content[body.innerStart:end], true
}

func startOnNewPage(blocks string) string {
	first, ok := nextTag(blocks, 0)
	if !ok {
		return blocks
	}
	if first.name != "w:p" || first.closing {
		return `<w:p><w:pPr><w:pageBreakBefore/></w:pPr></w:p>` + blocks
	}
	p, ok := elementAt(blocks, first)
	if !ok {
		return blocks
	}
	if p.innerStart == p.innerEnd {
		return `<w:p><w:pPr><w:pageBreakBefore/></w:pPr></w:p>` + blocks[p.end:]
	}
	if pPr, ok := firstChild(blocks, p, "w:pPr"); ok {
		if _, has := firstChild(blocks, pPr, "w:pageBreakBefore"); has {
			return blocks
		}
		updated := insertChild(pPr.outer(blocks), "<w:pageBreakBefore/>", pPrBeforeBreak)
		return blocks[:pPr.start] + updated + blocks[pPr.end:]
	}
	return blocks[:p.innerStart] + "<w:pPr><w:pageBreakBefore/></w:pPr>" + blocks[p.innerStart:]
}

// renumberDrawings gives every drawing a unique docPr id; Word refuses
// to open documents with duplicates.
func renumberDrawings(content string) string {
	next := 1
	return docPrIDAttr.ReplaceAllStringFunc(content, func(m string) string {
		parts := docPrIDAttr.FindStringSubmatch(m)
		id := strconv.Itoa(next)
		next++
		return parts[1] + id + parts[3]
	})
}
