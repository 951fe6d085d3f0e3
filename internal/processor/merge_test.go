package processor

import (
	"strings"
	"testing"

	"docforge/internal/testutil"
)

func TestMergeDocumentsPageCountIsSum(t *testing.T) {
	body := testutil.Paragraph("#NAME page one") + testutil.PageBreak + testutil.Paragraph("#NAME page two")
	tmpl := mustLoad(t, testutil.Docx{Body: body}.Bytes())

	var docs [][]byte
	total := 0
	for _, name := range []string{"Ann", "Ben", "Cid"} {
		doc, err := tmpl.Render([]map[string]string{{"#NAME": name}}, RenderOptions{})
		if err != nil {
			t.Fatal(err)
		}
		docs = append(docs, doc.Data)
		total += pages(t, doc.Data)
	}

	merged, err := MergeDocuments(docs)
	if err != nil {
		t.Fatalf("MergeDocuments: %v", err)
	}
	if n := pages(t, merged); n != total {
		t.Errorf("merged pages = %d, want %d", n, total)
	}

	text := bodyText(t, merged)
	ann, ben, cid := strings.Index(text, "Ann"), strings.Index(text, "Ben"), strings.Index(text, "Cid")
	if ann < 0 || !(ann < ben && ben < cid) {
		t.Errorf("batch order lost: %q", text)
	}
	if n := strings.Count(documentXML(t, merged), "<w:sectPr"); n != 1 {
		t.Errorf("merged document has %d sectPr, want 1", n)
	}
}

func TestMergeDocumentsTableFirst(t *testing.T) {
	a := testutil.Docx{Body: testutil.Paragraph("first")}.Bytes()
	b := testutil.Docx{Body: testutil.Table([][]string{{"x"}}) + testutil.Paragraph("")}.Bytes()

	merged, err := MergeDocuments([][]byte{a, b})
	if err != nil {
		t.Fatal(err)
	}
	xml := documentXML(t, merged)
	if !strings.Contains(xml, `<w:p><w:pPr><w:pageBreakBefore/></w:pPr></w:p><w:tbl>`) {
		t.Errorf("table not pushed to a new page: %s", xml)
	}
	if n := pages(t, merged); n != 2 {
		t.Errorf("pages = %d, want 2", n)
	}
}

func TestMergeDocumentsKeepsParagraphProperties(t *testing.T) {
	a := testutil.Docx{Body: testutil.Paragraph("first")}.Bytes()
	b := testutil.Docx{Body: `<w:p><w:pPr><w:pStyle w:val="Heading1"/><w:jc w:val="center"/></w:pPr>` + testutil.Run("second") + `</w:p>`}.Bytes()

	merged, err := MergeDocuments([][]byte{a, b})
	if err != nil {
		t.Fatal(err)
	}
	want := `<w:pPr><w:pStyle w:val="Heading1"/><w:pageBreakBefore/><w:jc w:val="center"/></w:pPr>`
	if xml := documentXML(t, merged); !strings.Contains(xml, want) {
		t.Errorf("pageBreakBefore misplaced: %s", xml)
	}
}

func TestMergeDocumentsRenumbersDrawings(t *testing.T) {
	drawing := `<w:p><w:r><w:drawing><wp:inline><wp:extent cx="9525" cy="9525"/><wp:docPr id="1" name="Picture 1"/></wp:inline></w:drawing></w:r></w:p>`
	doc := testutil.Docx{Body: drawing}.Bytes()

	merged, err := MergeDocuments([][]byte{doc, doc, doc})
	if err != nil {
		t.Fatal(err)
	}
	xml := documentXML(t, merged)
	for _, id := range []string{`id="1"`, `id="2"`, `id="3"`} {
		if !strings.Contains(xml, `<wp:docPr `+id) {
			t.Errorf("missing docPr %s in %s", id, xml)
		}
	}
}

func TestMergeDocumentsErrors(t *testing.T) {
	if _, err := MergeDocuments(nil); err == nil {
		t.Error("expected error for no documents")
	}
	good := testutil.Docx{Body: testutil.Paragraph("x")}.Bytes()
	if _, err := MergeDocuments([][]byte{good, []byte("junk")}); err == nil {
		t.Error("expected error for corrupt document")
	}
}
