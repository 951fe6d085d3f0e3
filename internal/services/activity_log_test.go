package services

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestLoggingMiddlewareWithoutDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	svc := NewActivityLogService(nil, slog.New(slog.NewTextHandler(&buf, nil)))

	r := gin.New()
	r.Use(svc.LoggingMiddleware())
	r.DELETE("/api/session/:session_id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/session/abc", nil))

	line := buf.String()
	for _, want := range []string{"level=WARN", "method=DELETE", "status=404", "session_id=abc"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q lacks %q", line, want)
		}
	}
	if svc.Enabled() {
		t.Error("service without database reports enabled")
	}
	if _, _, err := svc.GetLogs(context.Background(), LogFilter{}); err == nil {
		t.Error("GetLogs without database should fail")
	}
}
