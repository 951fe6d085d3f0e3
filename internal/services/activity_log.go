package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docforge/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLogService writes one log line per request and, with a database,
// an activity_logs row.
type ActivityLogService struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewActivityLogService(db *gorm.DB, logger *slog.Logger) *ActivityLogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityLogService{db: db, logger: logger}
}

func (s *ActivityLogService) Enabled() bool { return s.db != nil }

func requestSessionID(c *gin.Context) string {
	if id := c.Param("session_id"); id != "" {
		return id
	}
	if id := c.Query("session_id"); id != "" {
		return id
	}
	return c.GetString("session_id")
}

func (s *ActivityLogService) LogRequest(c *gin.Context, statusCode int, responseTime time.Duration) {
	clientIP := c.ClientIP()
	if clientIP == "" {
		clientIP = c.Request.RemoteAddr
	}

	queryParams := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			queryParams[key] = values[0]
		}
	}
	queryParamsJSON, _ := json.Marshal(queryParams)

	entry := &models.ActivityLog{
		ID:           uuid.New().String(),
		Method:       c.Request.Method,
		Path:         c.Request.URL.Path,
		SessionID:    requestSessionID(c),
		UserAgent:    c.Request.UserAgent(),
		IPAddress:    clientIP,
		QueryParams:  string(queryParamsJSON),
		RequestBytes: max(c.Request.ContentLength, 0),
		StatusCode:   statusCode,
		ResponseTime: responseTime.Milliseconds(),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	level := slog.LevelInfo
	if statusCode >= 500 {
		level = slog.LevelError
	} else if statusCode >= 400 {
		level = slog.LevelWarn
	}
	s.logger.Log(c.Request.Context(), level, "request",
		"method", entry.Method, "path", entry.Path, "status", statusCode,
		"duration_ms", entry.ResponseTime, "ip", clientIP, "session_id", entry.SessionID)

	if s.db == nil {
		return
	}
	// Save to database without blocking the request
	go func() {
		if err := s.db.Create(entry).Error; err != nil {
			s.logger.Warn("failed to save activity log", "error", err)
		}
	}()
}

// LogFilter narrows GetLogs. Empty fields match everything.
type LogFilter struct {
	Method    string
	Path      string
	SessionID string
	Limit     int
	Offset    int
}

func (s *ActivityLogService) GetLogs(ctx context.Context, f LogFilter) ([]models.ActivityLog, int64, error) {
	if s.db == nil {
		return nil, 0, fmt.Errorf("activity logs require a database")
	}
	var logs []models.ActivityLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.ActivityLog{})
	if f.Method != "" {
		query = query.Where("method = ?", strings.ToUpper(f.Method))
	}
	if f.Path != "" {
		query = query.Where("path LIKE ?", "%"+f.Path+"%")
	}
	if f.SessionID != "" {
		query = query.Where("session_id = ?", f.SessionID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count logs: %w", err)
	}

	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}
	if f.Offset > 0 {
		query = query.Offset(f.Offset)
	}
	if err := query.Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch logs: %w", err)
	}
	return logs, total, nil
}

// LoggingMiddleware logs every request after it is handled.
func (s *ActivityLogService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.LogRequest(c, c.Writer.Status(), time.Since(start))
	}
}
