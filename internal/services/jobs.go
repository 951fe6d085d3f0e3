package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"docforge/internal/batch"
	"docforge/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobRecorder persists a generation_jobs row per generate request. With no
// database it only hands out ids.
type JobRecorder struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewJobRecorder(db *gorm.DB, logger *slog.Logger) *JobRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobRecorder{db: db, logger: logger}
}

func (r *JobRecorder) Start(ctx context.Context, sessionID string, plan batch.Plan, options any) *models.GenerationJob {
	opts, _ := json.Marshal(options)
	job := &models.GenerationJob{
		ID:             uuid.New().String(),
		SessionID:      sessionID,
		Status:         models.JobStatusRunning,
		TotalRows:      plan.TotalRows,
		RowsPerDoc:     plan.RowsPerDoc,
		DocumentsTotal: plan.Documents,
		Options:        string(opts),
		CreatedAt:      time.Now(),
	}
	if r.db != nil {
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			r.logger.Warn("failed to record generation job", "job_id", job.ID, "error", err)
		}
	}
	return job
}

// Finish stores the outcome. A nil jobErr marks the job completed.
func (r *JobRecorder) Finish(ctx context.Context, job *models.GenerationJob, done, failed int, jobErr error) {
	job.DocumentsDone = done
	job.DocumentsFail = failed
	job.DurationMS = time.Since(job.CreatedAt).Milliseconds()
	job.Status = models.JobStatusCompleted
	if jobErr != nil {
		job.Status = models.JobStatusFailed
		job.Error = jobErr.Error()
	}

	r.logger.Info("generation job finished", "job_id", job.ID, "session_id", job.SessionID,
		"status", job.Status, "documents", job.DocumentsTotal, "failed", failed, "duration_ms", job.DurationMS)

	if r.db == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		r.logger.Warn("failed to update generation job", "job_id", job.ID, "error", err)
	}
}

// List returns the most recent jobs of a session.
func (r *JobRecorder) List(ctx context.Context, sessionID string, limit int) ([]models.GenerationJob, error) {
	if r.db == nil {
		return nil, nil
	}
	var jobs []models.GenerationJob
	q := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch jobs: %w", err)
	}
	return jobs, nil
}
