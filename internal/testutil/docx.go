// Package testutil builds in-memory fixtures shared by package tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"
)

const Namespaces = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
	`xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" ` +
	`xmlns:w14="http://schemas.microsoft.com/office/word/2010/wordml"`

// A4 portrait, one inch margins.
const DefaultSectPr = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/>` +
	`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="708" w:footer="708" w:gutter="0"/></w:sectPr>`

const LandscapeSectPr = `<w:sectPr><w:pgSz w:w="16838" w:h="11906" w:orient="landscape"/>` +
	`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440"/></w:sectPr>`

const DefaultStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<w:styles ` + Namespaces + `><w:docDefaults><w:rPrDefault><w:rPr>` +
	`<w:rFonts w:ascii="Calibri" w:hAnsi="Calibri"/><w:sz w:val="22"/><w:lang w:val="en-US"/>` +
	`</w:rPr></w:rPrDefault></w:docDefaults>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style></w:styles>`

// PageBreak is a paragraph holding only an explicit page break.
const PageBreak = `<w:p><w:r><w:br w:type="page"/></w:r></w:p>`

// Docx describes a minimal Word package.
type Docx struct {
	Body   string
	SectPr string
	Styles string
	Parts  map[string]string
}

// Bytes zips the package. Empty SectPr and Styles fall back to the defaults.
func (d Docx) Bytes() []byte {
	sectPr := d.SectPr
	if sectPr == "" {
		sectPr = DefaultSectPr
	}
	styles := d.Styles
	if styles == "" {
		styles = DefaultStyles
	}

	parts := []struct{ name, content string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
			`</Types>`},
		{"_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
			`</Relationships>`},
		{"word/_rels/document.xml.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
			`</Relationships>`},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document ` + Namespaces + `><w:body>` + d.Body + sectPr + `</w:body></w:document>`},
		{"word/styles.xml", styles},
	}
	for name, content := range d.Parts {
		parts = append(parts, struct{ name, content string }{name, content})
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			panic(fmt.Sprintf("testutil: create %s: %v", p.name, err))
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			panic(fmt.Sprintf("testutil: write %s: %v", p.name, err))
		}
	}
	if err := zw.Close(); err != nil {
		panic(fmt.Sprintf("testutil: close zip: %v", err))
	}
	return buf.Bytes()
}

// Run is one text run.
func Run(text string) string {
	return `<w:r><w:t xml:space="preserve">` + html.EscapeString(text) + `</w:t></w:r>`
}

// Paragraph puts each argument in its own run, so a placeholder can be split
// across runs by passing it in pieces.
func Paragraph(runs ...string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	for _, r := range runs {
		b.WriteString(Run(r))
	}
	b.WriteString("</w:p>")
	return b.String()
}

// Table builds a bordered table with one paragraph per cell.
func Table(rows [][]string) string {
	var b strings.Builder
	b.WriteString(`<w:tbl><w:tblPr><w:tblBorders><w:top w:val="single"/><w:bottom w:val="single"/></w:tblBorders></w:tblPr>`)
	for _, row := range rows {
		b.WriteString("<w:tr>")
		for _, cell := range row {
			b.WriteString("<w:tc>" + Paragraph(cell) + "</w:tc>")
		}
		b.WriteString("</w:tr>")
	}
	b.WriteString("</w:tbl>")
	return b.String()
}

// Header builds a header part containing one paragraph.
func Header(text string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:hdr ` + Namespaces + `>` + Paragraph(text) + `</w:hdr>`
}

// Footer builds a footer part containing one paragraph.
func Footer(text string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:ftr ` + Namespaces + `>` + Paragraph(text) + `</w:ftr>`
}

// ReadPart returns one part of a zip package.
func ReadPart(pkg []byte, name string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(pkg), int64(len(pkg)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		var b bytes.Buffer
		if _, err := b.ReadFrom(rc); err != nil {
			return "", err
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("part %s not found", name)
}
