package handlers

import (
	"net/http"
	"slices"
	"time"

	"docforge/internal/config"
	"docforge/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition", "X-Job-ID", "X-Documents-Total", "X-Documents-Failed", "X-PDF-Failed"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cc.AllowAllOrigins = true
		return cc
	}
	cc.AllowOrigins = origins
	cc.AllowCredentials = true
	return cc
}

// NewRouter registers every route on a new engine.
func NewRouter(h *Handler, activity *services.ActivityLogService, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(activity.LoggingMiddleware())
	r.Use(cors.New(corsConfig(cfg.AllowOrigins)))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": activity.Enabled()})
	})

	limit := LimitBody(int64(cfg.MaxUploadMB) << 20)
	api := r.Group("/api")
	{
		api.POST("/upload", limit, h.Upload)
		api.GET("/metadata", h.Metadata)
		api.POST("/update-data", limit, h.UpdateData)
		api.POST("/find-replace", h.FindReplace)
		api.POST("/generate", h.Generate)
		api.DELETE("/session/:session_id", h.DeleteSession)

		if activity.Enabled() {
			logs := NewLogsHandler(activity)
			api.GET("/logs", logs.GetAllLogs)
			api.GET("/logs/stats", logs.GetLogStats)
		}
	}

	r.GET("/ws/:session_id", h.Progress)
	r.POST("/converter/extract", limit, h.Extract)

	return r
}
