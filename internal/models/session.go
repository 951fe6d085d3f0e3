package models

import (
	"time"

	"gorm.io/gorm"
)

// SessionRecord points at the blobs of an upload session so it can be
// reloaded after a restart.
type SessionRecord struct {
	ID               string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	DataObject       string         `gorm:"type:varchar(512);not null" json:"data_object"`
	DataFilename     string         `gorm:"type:varchar(255)" json:"data_filename"`
	TemplateObject   string         `gorm:"type:varchar(512);not null" json:"template_object"`
	TemplateFilename string         `gorm:"type:varchar(255)" json:"template_filename"`
	TotalRows        int            `json:"total_rows"`
	Placeholders     string         `gorm:"type:json" json:"placeholders"` // JSON array of placeholder names
	LastAccessAt     time.Time      `gorm:"index" json:"last_access_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Jobs []GenerationJob `gorm:"foreignKey:SessionID" json:"jobs,omitempty"`
}

func (SessionRecord) TableName() string {
	return "sessions"
}

const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// GenerationJob records one generate request.
type GenerationJob struct {
	ID             string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	SessionID      string         `gorm:"type:varchar(36);not null;index" json:"session_id"`
	Status         string         `gorm:"type:varchar(20);default:'running'" json:"status"`
	TotalRows      int            `json:"total_rows"`
	RowsPerDoc     int            `json:"rows_per_doc"`
	DocumentsTotal int            `json:"documents_total"`
	DocumentsDone  int            `json:"documents_done"`
	DocumentsFail  int            `json:"documents_failed"`
	Options        string         `gorm:"type:json" json:"options"`
	Error          string         `gorm:"type:text" json:"error,omitempty"`
	DurationMS     int64          `json:"duration_ms"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (GenerationJob) TableName() string {
	return "generation_jobs"
}
