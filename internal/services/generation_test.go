package services

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"docforge/internal/apperror"
	"docforge/internal/mapping"
	"docforge/internal/processor"
	"docforge/internal/progress"
	"docforge/internal/session"
)

var letterMapping = mapping.Set{
	"#NAME":   {Type: mapping.TypeDataColumn, Value: "Name"},
	"#AMOUNT": {Type: mapping.TypeDataColumn, Value: "Amount", Suffix: " EUR"},
}

func newGenerator(conv Converter, hub *progress.Hub, tolerance int) *GenerationService {
	if hub == nil {
		hub = progress.NewHub(64, nil)
	}
	return NewGenerationService(conv, hub, NewJobRecorder(nil, nil), 2, tolerance, nil)
}

func TestGenerateDocxPerRow(t *testing.T) {
	sess := session.New("s1", loadTemplate(t, letterTemplate), newDataSet(t, "Alice", "Bob", "Carol"))
	gen := newGenerator(&stubConverter{}, nil, 0)

	res, err := gen.Generate(context.Background(), sess, GenerateRequest{
		Mapping:      letterMapping,
		GenerateDOCX: true,
		RowsPerDoc:   1,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Documents != 3 || res.Failed != 0 || res.JobID == "" {
		t.Fatalf("result = %+v", res)
	}

	names, contents := zipEntries(t, res.Archive)
	want := []string{"doc_0001.docx", "doc_0002.docx", "doc_0003.docx"}
	if !slices.Equal(sortedNames(names), want) {
		t.Fatalf("entries = %v, want %v", names, want)
	}
	text := documentText(t, contents["doc_0002.docx"])
	if !strings.Contains(text, "Dear Bob,") || !strings.Contains(text, "You owe 10 EUR.") {
		t.Errorf("document 2 text = %q", text)
	}
	if sess.JobRunning() {
		t.Error("job still marked running")
	}
}

func TestGeneratePDFFailureKeepsDocx(t *testing.T) {
	sess := session.New("s1", loadTemplate(t, letterTemplate), newDataSet(t, "Alice", "Bob"))
	conv := &stubConverter{fail: func(string) bool { return true }}
	gen := newGenerator(conv, nil, 0)

	res, err := gen.Generate(context.Background(), sess, GenerateRequest{
		Mapping:      letterMapping,
		GenerateDOCX: true,
		GeneratePDF:  true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Failed != 0 || res.PDFFailed != 2 {
		t.Errorf("Failed = %d, PDFFailed = %d", res.Failed, res.PDFFailed)
	}
	names, _ := zipEntries(t, res.Archive)
	if !slices.Equal(sortedNames(names), []string{"doc_0001.docx", "doc_0002.docx"}) {
		t.Errorf("entries = %v", names)
	}
}

func TestGenerateFailureTolerance(t *testing.T) {
	failBob := func(text string) bool { return strings.Contains(text, "Bob") }
	req := GenerateRequest{Mapping: letterMapping, GeneratePDF: true}

	t.Run("exceeded", func(t *testing.T) {
		sess := session.New("s1", loadTemplate(t, letterTemplate), newDataSet(t, "Alice", "Bob", "Carol"))
		_, err := newGenerator(&stubConverter{fail: failBob}, nil, 0).Generate(context.Background(), sess, req)
		if !errors.Is(err, errStubConversion) {
			t.Fatalf("err = %v, want the conversion failure", err)
		}
		if !strings.HasPrefix(apperror.UserMessage(err), "Generation stopped") {
			t.Errorf("message = %q", apperror.UserMessage(err))
		}
		if sess.JobRunning() {
			t.Error("job still marked running after failure")
		}
	})

	t.Run("within", func(t *testing.T) {
		sess := session.New("s1", loadTemplate(t, letterTemplate), newDataSet(t, "Alice", "Bob", "Carol"))
		res, err := newGenerator(&stubConverter{fail: failBob}, nil, 1).Generate(context.Background(), sess, req)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if res.Failed != 1 {
			t.Errorf("Failed = %d, want 1", res.Failed)
		}
		names, _ := zipEntries(t, res.Archive)
		if !slices.Equal(sortedNames(names), []string{"doc_0001.pdf", "doc_0003.pdf"}) {
			t.Errorf("entries = %v", names)
		}
	})
}

func TestGenerateZeroRows(t *testing.T) {
	sess := session.New("s1", loadTemplate(t, letterTemplate), newDataSet(t))
	res, err := newGenerator(&stubConverter{}, nil, 0).Generate(context.Background(), sess, GenerateRequest{
		Mapping:      letterMapping,
		GenerateDOCX: true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	names, _ := zipEntries(t, res.Archive)
	if res.Documents != 0 || len(names) != 0 {
		t.Errorf("documents = %d, entries = %v", res.Documents, names)
	}
}

func TestGenerateMergedRowsPerDoc(t *testing.T) {
	tmpl := loadTemplate(t, letterTemplate)
	sess := session.New("s1", tmpl, newDataSet(t, "Alice", "Bob", "Carol"))
	res, err := newGenerator(&stubConverter{}, nil, 0).Generate(context.Background(), sess, GenerateRequest{
		Mapping:      letterMapping,
		GenerateDOCX: true,
		GeneratePDF:  true,
		MergeOutput:  true,
		RowsPerDoc:   2,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Documents != 2 {
		t.Errorf("Documents = %d, want 2", res.Documents)
	}
	names, _ := zipEntries(t, res.Archive)
	if !slices.Equal(sortedNames(names), []string{"merged.docx", "merged.pdf"}) {
		t.Errorf("entries = %v", names)
	}
}

func TestGenerateRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		req  GenerateRequest
	}{
		{"no format", GenerateRequest{Mapping: letterMapping}},
		{"unknown type", GenerateRequest{GenerateDOCX: true, Mapping: mapping.Set{"#NAME": {Type: "sql"}}}},
		{"custom size", GenerateRequest{GenerateDOCX: true, Mapping: letterMapping,
			Settings: processor.DocSettings{PageSize: processor.PageSizeCustom}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := session.New("s1", loadTemplate(t, letterTemplate), newDataSet(t, "Alice"))
			_, err := newGenerator(&stubConverter{}, nil, 0).Generate(context.Background(), sess, tt.req)
			if !errors.Is(err, apperror.ErrBadRequest) {
				t.Errorf("err = %v, want BadRequest", err)
			}
		})
	}
}

func TestGenerateConflictWhileRunning(t *testing.T) {
	sess := session.New("s1", loadTemplate(t, letterTemplate), newDataSet(t, "Alice"))
	if _, err := sess.BeginJob(); err != nil {
		t.Fatal(err)
	}
	defer sess.EndJob()

	_, err := newGenerator(&stubConverter{}, nil, 0).Generate(context.Background(), sess, GenerateRequest{
		Mapping:      letterMapping,
		GenerateDOCX: true,
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("err = %v, want Conflict", err)
	}
}

func TestGenerateReportsProgress(t *testing.T) {
	hub := progress.NewHub(64, nil)
	sub := hub.Subscribe("s1")
	defer sub.Close()

	sess := session.New("s1", loadTemplate(t, letterTemplate), newDataSet(t, "Alice", "Bob", "Carol", "Dan"))
	_, err := newGenerator(&stubConverter{}, hub, 0).Generate(context.Background(), sess, GenerateRequest{
		Mapping:      letterMapping,
		GenerateDOCX: true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	last := -1
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-sub.C:
			if e.Type != progress.TypeProgress || e.Total != 4 {
				t.Fatalf("event = %+v", e)
			}
			if e.Current < last {
				t.Fatalf("progress went back from %d to %d", last, e.Current)
			}
			last = e.Current
			if e.Done {
				if e.Current != e.Total {
					t.Errorf("final event = %+v", e)
				}
				return
			}
		case <-timeout:
			t.Fatalf("no final event, last current = %d", last)
		}
	}
}
