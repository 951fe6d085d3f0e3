// Package handlers exposes the document generation and PDF extraction
// services over HTTP.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"docforge/internal/apperror"
	"docforge/internal/progress"
	"docforge/internal/services"

	"github.com/gin-gonic/gin"
)

// Handler serves the session, generation and extraction endpoints.
type Handler struct {
	sessions   *services.SessionService
	generation *services.GenerationService
	extraction *services.ExtractionService
	hub        *progress.Hub
	logger     *slog.Logger
}

func New(sessions *services.SessionService, generation *services.GenerationService, extraction *services.ExtractionService, hub *progress.Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions:   sessions,
		generation: generation,
		extraction: extraction,
		hub:        hub,
		logger:     logger,
	}
}

// respondError writes {"error": message} with the status of the error kind.
func (h *Handler) respondError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload is too large"})
		return
	}
	status := apperror.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	} else {
		h.logger.Debug("request rejected", "path", c.Request.URL.Path, "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": apperror.UserMessage(err)})
}

func badRequest(message string) error {
	return apperror.New(apperror.KindBadRequest, message)
}

// formFile reads the first present multipart field among names.
func formFile(c *gin.Context, names ...string) (services.Upload, error) {
	var header *multipart.FileHeader
	var err error
	for _, name := range names {
		header, err = c.FormFile(name)
		if err == nil {
			break
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.Upload{}, err
		}
	}
	if header == nil {
		return services.Upload{}, badRequest("Missing file field: " + names[0])
	}

	f, err := header.Open()
	if err != nil {
		return services.Upload{}, apperror.Wrap(apperror.KindBadRequest, "Uploaded file could not be read", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return services.Upload{}, apperror.Wrap(apperror.KindBadRequest, "Uploaded file could not be read", err)
	}
	return services.Upload{Filename: header.Filename, Data: data}, nil
}

// LimitBody caps request bodies at maxBytes.
func LimitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
