package handlers

import (
	"net/http"

	"docforge/internal/mapping"

	"github.com/gin-gonic/gin"
)

type UploadResponse struct {
	SessionID    string   `json:"session_id"`
	Placeholders []string `json:"placeholders"`
	TotalRows    int      `json:"total_rows"`
	Message      string   `json:"message"`
}

type UpdateDataRequest struct {
	SessionID string        `json:"session_id"`
	Headers   []string      `json:"headers"`
	Rows      []mapping.Row `json:"rows"`
}

type FindReplaceRequest struct {
	SessionID string `json:"session_id"`
	Find      string `json:"find"`
	Replace   string `json:"replace"`
	Column    string `json:"column"`
	MatchCase bool   `json:"match_case"`
}

// Upload accepts the dataset (csv_file or data_file) and the template
// (template_file) and opens a session.
func (h *Handler) Upload(c *gin.Context) {
	data, err := formFile(c, "csv_file", "data_file")
	if err != nil {
		h.respondError(c, err)
		return
	}
	tmpl, err := formFile(c, "template_file")
	if err != nil {
		h.respondError(c, err)
		return
	}

	sess, err := h.sessions.Create(c.Request.Context(), data, tmpl)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Set("session_id", sess.ID)

	c.JSON(http.StatusOK, UploadResponse{
		SessionID:    sess.ID,
		Placeholders: sess.Template.Info().Placeholders,
		TotalRows:    sess.Data().Len(),
		Message:      "Files uploaded successfully",
	})
}

func (h *Handler) Metadata(c *gin.Context) {
	id := c.Query("session_id")
	if id == "" {
		h.respondError(c, badRequest("session_id is required"))
		return
	}
	meta, err := h.sessions.Metadata(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (h *Handler) UpdateData(c *gin.Context) {
	var req UpdateDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, badRequest("Invalid request body"))
		return
	}
	if req.SessionID == "" {
		h.respondError(c, badRequest("session_id is required"))
		return
	}
	c.Set("session_id", req.SessionID)

	total, err := h.sessions.UpdateData(c.Request.Context(), req.SessionID, req.Headers, req.Rows)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_rows": total})
}

func (h *Handler) FindReplace(c *gin.Context) {
	var req FindReplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, badRequest("Invalid request body"))
		return
	}
	if req.SessionID == "" {
		h.respondError(c, badRequest("session_id is required"))
		return
	}
	c.Set("session_id", req.SessionID)

	n, err := h.sessions.FindReplace(c.Request.Context(), req.SessionID, req.Find, req.Replace, req.Column, req.MatchCase)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replaced": n})
}

func (h *Handler) DeleteSession(c *gin.Context) {
	id := c.Param("session_id")
	if err := h.sessions.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	h.hub.Forget(id)
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
}
