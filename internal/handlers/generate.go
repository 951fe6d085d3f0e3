package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"docforge/internal/packager"
	"docforge/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	archiveName  = "DocumentForge_Output.zip"
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// GenerateBody is the generate request: the session plus its options.
type GenerateBody struct {
	SessionID string `json:"session_id"`
	services.GenerateRequest
}

func (h *Handler) Generate(c *gin.Context) {
	var body GenerateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondError(c, badRequest("Invalid request body"))
		return
	}
	if body.SessionID == "" {
		h.respondError(c, badRequest("session_id is required"))
		return
	}
	c.Set("session_id", body.SessionID)

	sess, err := h.sessions.Get(c.Request.Context(), body.SessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	result, err := h.generation.Generate(c.Request.Context(), sess, body.GenerateRequest)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, archiveName))
	c.Header("X-Job-ID", result.JobID)
	c.Header("X-Documents-Total", strconv.Itoa(result.Documents))
	c.Header("X-Documents-Failed", strconv.Itoa(result.Failed))
	c.Header("X-PDF-Failed", strconv.Itoa(result.PDFFailed))
	c.Data(http.StatusOK, packager.ZipMimeType, result.Archive)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS configuration of the HTTP routes.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Progress streams a session's generation events over a WebSocket until the
// client disconnects. Disconnecting does not stop a running job.
func (h *Handler) Progress(c *gin.Context) {
	id := c.Param("session_id")
	if _, err := h.sessions.Get(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "session_id", id, "error", err)
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe(id)
	defer sub.Close()
	h.logger.Debug("progress subscriber connected", "session_id", id)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			h.logger.Debug("progress subscriber disconnected", "session_id", id)
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
