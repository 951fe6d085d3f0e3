package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"docforge/internal/extract"

	"github.com/gin-gonic/gin"
)

// Extract turns an uploaded PDF into a workbook or CSV of its tables.
func (h *Handler) Extract(c *gin.Context) {
	up, err := formFile(c, "pdf_file")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !strings.EqualFold(filepath.Ext(up.Filename), ".pdf") {
		h.respondError(c, badRequest("Only PDF files are supported"))
		return
	}
	mode, err := extract.ParseMode(c.PostForm("processing_option"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	format, err := extract.ParseFormat(c.PostForm("output_format"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	file, err := h.extraction.Extract(c.Request.Context(), up.Data, mode, format)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
