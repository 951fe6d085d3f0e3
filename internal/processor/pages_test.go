package processor

import (
	"strings"
	"testing"

	"docforge/internal/testutil"
)

func pages(t *testing.T, data []byte) int {
	t.Helper()
	n, err := CountPages(data)
	if err != nil {
		t.Fatalf("CountPages: %v", err)
	}
	return n
}

func TestCountPages(t *testing.T) {
	long := strings.Repeat("lorem ipsum dolor sit amet ", 40)
	var overflow strings.Builder
	for range 80 {
		overflow.WriteString(testutil.Paragraph(long))
	}

	tests := []struct {
		name string
		body string
		min  int
		max  int
	}{
		{"single paragraph", testutil.Paragraph("hello"), 1, 1},
		{"explicit break", testutil.Paragraph("a") + testutil.PageBreak + testutil.Paragraph("b"), 2, 2},
		{"break before", testutil.Paragraph("a") + `<w:p><w:pPr><w:pageBreakBefore/></w:pPr>` + testutil.Run("b") + `</w:p>`, 2, 2},
		{"break before disabled", testutil.Paragraph("a") + `<w:p><w:pPr><w:pageBreakBefore w:val="0"/></w:pPr>` + testutil.Run("b") + `</w:p>`, 1, 1},
		{"first paragraph break before", `<w:p><w:pPr><w:pageBreakBefore/></w:pPr>` + testutil.Run("a") + `</w:p>`, 1, 1},
		{"section break", `<w:p><w:pPr>` + testutil.DefaultSectPr + `</w:pPr>` + testutil.Run("a") + `</w:p>` + testutil.Paragraph("b"), 2, 2},
		{"continuous section", `<w:p><w:pPr><w:sectPr><w:type w:val="continuous"/></w:sectPr></w:pPr>` + testutil.Run("a") + `</w:p>` + testutil.Paragraph("b"), 1, 1},
		{"overflow", overflow.String(), 10, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := pages(t, testutil.Docx{Body: tt.body}.Bytes())
			if n < tt.min || n > tt.max {
				t.Errorf("pages = %d, want [%d, %d]", n, tt.min, tt.max)
			}
		})
	}
}

func TestRemoveEmptyPagesDropsBlankedPage(t *testing.T) {
	body := testutil.Paragraph("Page one") + testutil.PageBreak +
		testutil.Paragraph("#EMPTY") + testutil.PageBreak +
		testutil.Paragraph("Page three")
	tmpl := mustLoad(t, testutil.Docx{Body: body}.Bytes())
	row := []map[string]string{{"#EMPTY": "  "}}

	kept, err := tmpl.Render(row, RenderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if n := pages(t, kept.Data); n != 3 {
		t.Fatalf("without removal pages = %d, want 3", n)
	}

	stripped, err := tmpl.Render(row, RenderOptions{RemoveEmptyPages: true})
	if err != nil {
		t.Fatal(err)
	}
	if stripped.PagesRemoved != 1 {
		t.Errorf("removed = %d, want 1", stripped.PagesRemoved)
	}
	if n := pages(t, stripped.Data); n != 2 {
		t.Errorf("with removal pages = %d, want 2", n)
	}
	text := bodyText(t, stripped.Data)
	if !strings.Contains(text, "Page one") || !strings.Contains(text, "Page three") {
		t.Errorf("content lost: %q", text)
	}
}

func TestRemoveEmptyPagesKeepsFilledPages(t *testing.T) {
	body := testutil.Paragraph("Page one") + testutil.PageBreak + testutil.Paragraph("#VALUE")
	tmpl := mustLoad(t, testutil.Docx{Body: body}.Bytes())
	doc, err := tmpl.Render([]map[string]string{{"#VALUE": "filled"}}, RenderOptions{RemoveEmptyPages: true})
	if err != nil {
		t.Fatal(err)
	}
	if doc.PagesRemoved != 0 || pages(t, doc.Data) != 2 {
		t.Errorf("removed %d pages from a full document", doc.PagesRemoved)
	}
}

func TestRemoveEmptyPagesTreatsImagesAndTablesAsContent(t *testing.T) {
	drawing := `<w:p><w:r><w:drawing><wp:inline><wp:extent cx="914400" cy="914400"/></wp:inline></w:drawing></w:r></w:p>`
	for name, middle := range map[string]string{
		"image": drawing,
		"table": testutil.Table([][]string{{"", ""}}),
	} {
		t.Run(name, func(t *testing.T) {
			body := testutil.Paragraph("a") + testutil.PageBreak + middle + testutil.PageBreak + testutil.Paragraph("c")
			dp, err := NewDocxProcessor(testutil.Docx{Body: body}.Bytes())
			if err != nil {
				t.Fatal(err)
			}
			if n := dp.RemoveEmptyPages(); n != 0 {
				t.Errorf("removed %d pages", n)
			}
		})
	}
}

func TestRemoveEmptyPagesKeepsOnePage(t *testing.T) {
	body := testutil.PageBreak + testutil.PageBreak
	dp, err := NewDocxProcessor(testutil.Docx{Body: body}.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if n := dp.PageCount(); n != 3 {
		t.Fatalf("pages before = %d", n)
	}
	dp.RemoveEmptyPages()
	if n := dp.PageCount(); n != 1 {
		t.Errorf("pages after = %d, want 1", n)
	}
	content, _ := dp.Part(documentPart)
	if !strings.Contains(content, "<w:p>") {
		t.Errorf("body lost its paragraphs: %s", content)
	}
}

func TestRemoveEmptyPagesKeepsSectionParagraphs(t *testing.T) {
	section := `<w:p><w:pPr>` + testutil.LandscapeSectPr + `</w:pPr></w:p>`
	body := testutil.Paragraph("a") + testutil.PageBreak + section + testutil.Paragraph("b")
	dp, err := NewDocxProcessor(testutil.Docx{Body: body}.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	dp.RemoveEmptyPages()
	content, _ := dp.Part(documentPart)
	if !strings.Contains(content, `w:orient="landscape"`) {
		t.Errorf("section properties removed: %s", content)
	}
}

func TestReadText(t *testing.T) {
	body := testutil.Paragraph("Title") +
		testutil.Table([][]string{{"a", "b"}, {"c", "d"}}) +
		testutil.PageBreak +
		testutil.Paragraph("tail")
	doc, err := ReadText(testutil.Docx{Body: body}.Bytes())
	if err != nil {
		t.Fatal(err)
	}

	var kinds []BlockKind
	for _, b := range doc.Blocks {
		kinds = append(kinds, b.Kind)
	}
	want := []BlockKind{BlockParagraph, BlockTable, BlockParagraph, BlockPageBreak, BlockParagraph, BlockParagraph}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", kinds, want)
		}
	}
	if rows := doc.Blocks[1].Rows; len(rows) != 2 || rows[1][1] != "d" {
		t.Errorf("table rows = %v", rows)
	}
	if doc.Layout.Landscape || doc.FontSize != 11 {
		t.Errorf("layout = %+v, font size %.1f", doc.Layout, doc.FontSize)
	}
}

func TestRemoveEmptyPagesLeadingAndConsecutive(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		removed int
		after   int
		keep    []string
	}{
		{
			name: "leading",
			body: testutil.Paragraph("#A") + testutil.PageBreak +
				testutil.Paragraph("#B") + testutil.PageBreak +
				testutil.Paragraph("Content"),
			removed: 2,
			after:   1,
			keep:    []string{"Content"},
		},
		{
			name: "consecutive",
			body: testutil.Paragraph("Page one") + testutil.PageBreak +
				testutil.Paragraph("#A") + testutil.PageBreak +
				testutil.Paragraph("#B") + testutil.PageBreak +
				testutil.Paragraph("Page four"),
			removed: 2,
			after:   2,
			keep:    []string{"Page one", "Page four"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := mustLoad(t, testutil.Docx{Body: tt.body}.Bytes())
			doc, err := tmpl.Render([]map[string]string{{"#A": "", "#B": ""}}, RenderOptions{RemoveEmptyPages: true})
			if err != nil {
				t.Fatal(err)
			}
			if doc.PagesRemoved != tt.removed {
				t.Errorf("removed = %d, want %d", doc.PagesRemoved, tt.removed)
			}
			if n := pages(t, doc.Data); n != tt.after {
				t.Errorf("pages after = %d, want %d", n, tt.after)
			}
			text := bodyText(t, doc.Data)
			for _, want := range tt.keep {
				if !strings.Contains(text, want) {
					t.Errorf("content %q lost: %q", want, text)
				}
			}
		})
	}
}

func TestRemoveEmptyPagesLeadingLeavesNoBreak(t *testing.T) {
	body := testutil.PageBreak + testutil.PageBreak + testutil.Paragraph("Content")
	dp, err := NewDocxProcessor(testutil.Docx{Body: body}.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if n := dp.RemoveEmptyPages(); n != 2 {
		t.Errorf("removed = %d, want 2", n)
	}
	content, _ := dp.Part(documentPart)
	if strings.Contains(content, `w:type="page"`) {
		t.Errorf("page break left before content: %s", content)
	}
	if n := dp.PageCount(); n != 1 {
		t.Errorf("pages after = %d, want 1", n)
	}
}
