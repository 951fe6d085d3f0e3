package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"docforge/internal/apperror"
	"docforge/internal/config"
	"docforge/internal/processor"

	"github.com/starwalkn/gotenberg-go-client/v8"
	"github.com/starwalkn/gotenberg-go-client/v8/document"
)

// Converter turns a rendered DOCX into a PDF.
type Converter interface {
	Convert(ctx context.Context, docx []byte, layout processor.DocumentLayout) ([]byte, error)
}

// PDFService converts through Gotenberg's LibreOffice route. Without a
// Gotenberg URL it falls back to a plain text layout.
type PDFService struct {
	client   *gotenberg.Client
	timeout  time.Duration
	retries  int
	backoff  time.Duration
	fallback Converter
	logger   *slog.Logger
}

func NewPDFService(cfg config.GotenbergConfig, logger *slog.Logger) (*PDFService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PDFService{
		timeout:  cfg.Timeout,
		retries:  max(cfg.Retries, 1),
		backoff:  time.Second,
		fallback: &TextPDFConverter{Logger: logger},
		logger:   logger,
	}
	if cfg.URL == "" {
		logger.Warn("GOTENBERG_URL not set, PDFs use the built-in text layout (Windows-1252 characters only)")
		return s, nil
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	client, err := gotenberg.NewClient(cfg.URL, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gotenberg client: %w", err)
	}
	s.client = client
	return s, nil
}

// Convert implements Converter. Failures are reported as ConversionError.
func (s *PDFService) Convert(ctx context.Context, docx []byte, layout processor.DocumentLayout) ([]byte, error) {
	if s.client == nil {
		out, err := s.fallback.Convert(ctx, docx, layout)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindConversion, "Document could not be converted to PDF", err)
		}
		return out, nil
	}
	out, err := s.convertWithRetry(ctx, docx, layout.Landscape)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindConversion, "Document could not be converted to PDF", err)
	}
	return out, nil
}

func (s *PDFService) convertWithRetry(ctx context.Context, docx []byte, landscape bool) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= s.retries; attempt++ {
		out, err := s.send(ctx, docx, landscape)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		s.logger.Warn("PDF conversion attempt failed", "attempt", attempt, "max", s.retries, "error", err)

		if attempt < s.retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * s.backoff):
			}
		}
	}

	return nil, fmt.Errorf("failed to convert document after %d attempts: %w", s.retries, lastErr)
}

func (s *PDFService) send(ctx context.Context, docx []byte, landscape bool) ([]byte, error) {
	convertCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// the reader is consumed by each request, so every attempt gets its own
	doc, err := document.FromReader("document.docx", bytes.NewReader(docx))
	if err != nil {
		return nil, fmt.Errorf("failed to create document from reader: %w", err)
	}

	req := gotenberg.NewLibreOfficeRequest(doc)
	if landscape {
		req.Landscape()
	}

	resp, err := s.client.Send(convertCtx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gotenberg returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted document: %w", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		return nil, errors.New("gotenberg response is not a PDF")
	}
	return out, nil
}
