package services

import (
	"context"
	"log/slog"
	"time"

	"docforge/internal/apperror"
	"docforge/internal/extract"

	"golang.org/x/sync/semaphore"
)

// ExtractionService runs PDF table extraction with a cap on how many
// documents are parsed at once.
type ExtractionService struct {
	sem    *semaphore.Weighted
	logger *slog.Logger
}

func NewExtractionService(concurrency int, logger *slog.Logger) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionService{
		sem:    semaphore.NewWeighted(int64(max(concurrency, 1))),
		logger: logger,
	}
}

func (s *ExtractionService) Extract(ctx context.Context, pdf []byte, mode extract.Mode, format extract.Format) (*extract.File, error) {
	if len(pdf) == 0 {
		return nil, apperror.New(apperror.KindBadRequest, "PDF file is empty")
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	start := time.Now()
	file, err := extract.Extract(pdf, mode, format)
	if err != nil {
		s.logger.Warn("extraction failed", "mode", mode, "format", format, "error", err)
		return nil, err
	}
	s.logger.Info("extraction finished", "mode", mode, "format", format,
		"output", file.Name, "bytes", len(file.Data), "duration", time.Since(start))
	return file, nil
}
