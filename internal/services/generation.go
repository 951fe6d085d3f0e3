package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"docforge/internal/apperror"
	"docforge/internal/batch"
	"docforge/internal/mapping"
	"docforge/internal/packager"
	"docforge/internal/processor"
	"docforge/internal/progress"
	"docforge/internal/session"

	"golang.org/x/sync/errgroup"
)

// GenerateRequest holds the options of one generate call.
type GenerateRequest struct {
	Mapping          mapping.Set           `json:"mapping"`
	GenerateDOCX     bool                  `json:"generate_docx"`
	GeneratePDF      bool                  `json:"generate_pdf"`
	RemoveEmptyPages bool                  `json:"remove_empty_pages"`
	MergeOutput      bool                  `json:"merge_output"`
	RowsPerDoc       int                   `json:"rows_per_doc"`
	Settings         processor.DocSettings `json:"doc_settings"`
}

type GenerateResult struct {
	JobID     string
	Archive   []byte
	Documents int
	// Failed counts batches that produced nothing.
	Failed int
	// PDFFailed counts batches whose DOCX was kept but whose PDF conversion failed.
	PDFFailed int
}

// GenerationService renders every batch of a session's dataset, converts
// and packages the results, and reports progress on the session's channel.
type GenerationService struct {
	converter Converter
	hub       *progress.Hub
	jobs      *JobRecorder
	workers   int
	tolerance int
	logger    *slog.Logger
}

func NewGenerationService(converter Converter, hub *progress.Hub, jobs *JobRecorder, workers, tolerance int, logger *slog.Logger) *GenerationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationService{
		converter: converter,
		hub:       hub,
		jobs:      jobs,
		workers:   max(workers, 1),
		tolerance: max(tolerance, 0),
		logger:    logger,
	}
}

func (req *GenerateRequest) validate() error {
	if !req.GenerateDOCX && !req.GeneratePDF {
		return apperror.New(apperror.KindBadRequest, "Select at least one output format (DOCX or PDF)")
	}
	if err := req.Mapping.Validate(); err != nil {
		return apperror.Wrap(apperror.KindBadRequest, "Invalid mapping: "+err.Error(), err)
	}
	if err := req.Settings.Validate(); err != nil {
		return apperror.Wrap(apperror.KindBadRequest, "Invalid document settings: "+err.Error(), err)
	}
	return nil
}

// Generate runs one job. Only one job runs per session at a time; the
// dataset snapshot taken at the start is used throughout.
func (s *GenerationService) Generate(ctx context.Context, sess *session.Session, req GenerateRequest) (*GenerateResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	data, err := sess.BeginJob()
	if err != nil {
		return nil, err
	}
	defer sess.EndJob()

	plan := batch.NewPlan(data.Len(), req.RowsPerDoc)
	job := s.jobs.Start(ctx, sess.ID, plan, req)
	reporter := s.hub.NewReporter(sess.ID, plan.Documents)
	placeholders := sess.Template.Info().Placeholders

	var out packager.Output
	if req.GenerateDOCX {
		out.DOCX = make([][]byte, plan.Documents)
	}
	if req.GeneratePDF {
		out.PDF = make([][]byte, plan.Documents)
	}

	var done, failed, pdfFailed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for r := range plan.All() {
		g.Go(func() error {
			rows := batch.Rows(data.Rows, r)
			values := make([]map[string]string, len(rows))
			for i, row := range rows {
				values[i] = req.Mapping.ResolveRow(placeholders, row)
			}

			pdfErr, err := s.renderBatch(gctx, sess.Template, values, r.Index, plan, req, &out)
			if err != nil {
				n := failed.Add(1)
				s.logger.Warn("document failed", "session_id", sess.ID, "job_id", job.ID,
					"document", r.Index+1, "error", err)
				if int(n) > s.tolerance {
					return err
				}
				reporter.Step(fmt.Sprintf("Document %d of %d failed: %s", r.Index+1, plan.Documents, apperror.UserMessage(err)))
				return nil
			}
			done.Add(1)
			if pdfErr != nil {
				pdfFailed.Add(1)
				s.logger.Warn("PDF conversion failed, keeping DOCX", "session_id", sess.ID, "job_id", job.ID,
					"document", r.Index+1, "error", pdfErr)
				reporter.Step(fmt.Sprintf("Document %d of %d: PDF conversion failed, DOCX kept", r.Index+1, plan.Documents))
				return nil
			}
			reporter.Step("")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		msg := fmt.Sprintf("Generation stopped: %s", apperror.UserMessage(err))
		reporter.Fail(msg)
		s.jobs.Finish(ctx, job, int(done.Load()), int(failed.Load()), err)
		return nil, apperror.Wrap(apperror.KindOf(err), msg, err)
	}

	reporter.Note("Packaging documents")
	archive, err := packager.Archive(out, req.MergeOutput)
	if err != nil {
		err = apperror.Wrap(apperror.KindConversion, "Generated documents could not be packaged", err)
		reporter.Fail(apperror.UserMessage(err))
		s.jobs.Finish(ctx, job, int(done.Load()), int(failed.Load()), err)
		return nil, err
	}
	reporter.Finish()
	s.jobs.Finish(ctx, job, int(done.Load()), int(failed.Load()), nil)

	return &GenerateResult{
		JobID:     job.ID,
		Archive:   archive,
		Documents: plan.Documents,
		Failed:    int(failed.Load()),
		PDFFailed: int(pdfFailed.Load()),
	}, nil
}

// renderBatch fills one document and stores it at index i of out. When DOCX
// output is also requested a PDF failure is returned separately as pdfErr
// and the DOCX is kept.
func (s *GenerationService) renderBatch(ctx context.Context, tmpl *processor.Template, values []map[string]string, i int, plan batch.Plan, req GenerateRequest, out *packager.Output) (pdfErr, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := tmpl.Render(values, processor.RenderOptions{
		RowsPerDoc:       plan.RowsPerDoc,
		Settings:         req.Settings,
		RemoveEmptyPages: req.RemoveEmptyPages,
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindConversion, fmt.Sprintf("Document %d could not be rendered", i+1), err)
	}
	if req.GenerateDOCX {
		out.DOCX[i] = doc.Data
	}
	if !req.GeneratePDF {
		return nil, nil
	}

	pdf, err := s.converter.Convert(ctx, doc.Data, doc.Layout)
	if err != nil {
		if req.GenerateDOCX {
			return err, nil
		}
		return nil, err
	}
	out.PDF[i] = pdf
	return nil, nil
}
