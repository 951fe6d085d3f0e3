package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"docforge/internal/apperror"
	"docforge/internal/dataset"
	"docforge/internal/mapping"
	"docforge/internal/models"
	"docforge/internal/processor"
	"docforge/internal/session"
	"docforge/internal/storage"

	"gorm.io/gorm"
)

const (
	templateObject = "template.docx"
	editedData     = "edited.json"
)

// Metadata describes a session to the mapping editor.
type Metadata struct {
	SessionID          string         `json:"session_id"`
	Columns            []string       `json:"columns"`
	Placeholders       []string       `json:"placeholders"`
	TotalRows          int            `json:"total_rows"`
	PreviewRows        []mapping.Row  `json:"preview_rows"`
	PlaceholderCounts  map[string]int `json:"placeholder_counts"`
	RowsPerDoc         int            `json:"rows_per_doc"`
	TemplatePageSize   string         `json:"template_page_size"`
	TemplatePageWidth  float64        `json:"template_page_width"`
	TemplatePageHeight float64        `json:"template_page_height"`
	TemplateFontName   string         `json:"template_font_name"`
	TemplateFontSize   float64        `json:"template_font_size"`
	Warnings           []string       `json:"warnings"`
}

// Upload is one uploaded file.
type Upload struct {
	Filename string
	Data     []byte
}

// SessionService owns the lifecycle of upload sessions: parsing, storing
// the original files, editing the dataset and expiry.
type SessionService struct {
	store       *session.Store
	blobs       storage.BlobStore
	db          *gorm.DB
	pattern     *regexp.Regexp
	previewRows int
	logger      *slog.Logger
}

func NewSessionService(store *session.Store, blobs storage.BlobStore, db *gorm.DB, pattern *regexp.Regexp, previewRows int, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		store:       store,
		blobs:       blobs,
		db:          db,
		pattern:     pattern,
		previewRows: previewRows,
		logger:      logger,
	}
}

// CompilePattern parses a placeholder pattern; empty selects the default.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return processor.DefaultPlaceholderPattern, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid placeholder pattern: %w", err)
	}
	return re, nil
}

func dataObjectName(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".csv"
	}
	return "data" + ext
}

// Create parses both uploads, stores them and registers a session.
func (s *SessionService) Create(ctx context.Context, data, template Upload) (*session.Session, error) {
	if !strings.EqualFold(filepath.Ext(template.Filename), ".docx") {
		return nil, apperror.New(apperror.KindTemplateParse, "Template must be a .docx file")
	}
	tmpl, err := processor.LoadTemplate(template.Data, s.pattern)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.Parse(data.Filename, data.Data)
	if err != nil {
		return nil, err
	}

	sess := s.store.Create(tmpl, ds)
	sess.TemplateName = template.Filename
	sess.DataName = data.Filename

	dataObj := storage.SessionObject(sess.ID, dataObjectName(data.Filename))
	tmplObj := storage.SessionObject(sess.ID, templateObject)
	if err := storage.PutBytes(ctx, s.blobs, dataObj, data.Data, ""); err != nil {
		s.store.Delete(sess.ID)
		return nil, fmt.Errorf("failed to store data file: %w", err)
	}
	if err := storage.PutBytes(ctx, s.blobs, tmplObj, template.Data, processor.DocxMimeType); err != nil {
		s.store.Delete(sess.ID)
		return nil, fmt.Errorf("failed to store template: %w", err)
	}

	if s.db != nil {
		placeholders, _ := json.Marshal(tmpl.Info().Placeholders)
		rec := &models.SessionRecord{
			ID:               sess.ID,
			DataObject:       dataObj,
			DataFilename:     data.Filename,
			TemplateObject:   tmplObj,
			TemplateFilename: template.Filename,
			TotalRows:        ds.Len(),
			Placeholders:     string(placeholders),
			LastAccessAt:     time.Now(),
		}
		if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
			s.logger.Warn("failed to save session record", "session_id", sess.ID, "error", err)
		}
	}

	s.logger.Info("session created", "session_id", sess.ID,
		"rows", ds.Len(), "placeholders", len(tmpl.Info().Placeholders))
	return sess, nil
}

// Get returns a live session, reloading it from storage when the database
// still knows it but this process does not.
func (s *SessionService) Get(ctx context.Context, id string) (*session.Session, error) {
	sess, err := s.store.Get(id)
	if err == nil || s.db == nil || !errors.Is(err, apperror.ErrNotFound) {
		return sess, err
	}

	var rec models.SessionRecord
	if dbErr := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; dbErr != nil {
		if !errors.Is(dbErr, gorm.ErrRecordNotFound) {
			s.logger.Warn("failed to look up session record", "session_id", id, "error", dbErr)
		}
		return nil, err
	}
	return s.rehydrate(ctx, &rec)
}

func (s *SessionService) rehydrate(ctx context.Context, rec *models.SessionRecord) (*session.Session, error) {
	tmplData, err := storage.ReadAll(ctx, s.blobs, rec.TemplateObject)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored template: %w", err)
	}
	data, err := storage.ReadAll(ctx, s.blobs, rec.DataObject)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored data: %w", err)
	}
	tmpl, err := processor.LoadTemplate(tmplData, s.pattern)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.Load(rec.DataObject, data)
	if err != nil {
		return nil, err
	}

	sess := session.New(rec.ID, tmpl, ds)
	sess.TemplateName = rec.TemplateFilename
	sess.DataName = rec.DataFilename
	s.store.Put(sess)
	s.logger.Info("session restored from storage", "session_id", rec.ID)
	return sess, nil
}

func roundMM(v float64) float64 { return math.Round(v*10) / 10 }

func (s *SessionService) Metadata(ctx context.Context, id string) (*Metadata, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	info := sess.Template.Info()
	ds := sess.Data()

	preview := ds.Rows
	if s.previewRows > 0 {
		preview = ds.Preview(s.previewRows)
	}
	warnings := info.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return &Metadata{
		SessionID:          sess.ID,
		Columns:            ds.Headers,
		Placeholders:       info.Placeholders,
		TotalRows:          ds.Len(),
		PreviewRows:        preview,
		PlaceholderCounts:  info.Counts,
		RowsPerDoc:         info.SuggestedRowsPerDoc,
		TemplatePageSize:   info.PageSize,
		TemplatePageWidth:  roundMM(info.Layout.WidthMM()),
		TemplatePageHeight: roundMM(info.Layout.HeightMM()),
		TemplateFontName:   info.FontName,
		TemplateFontSize:   info.FontSize,
		Warnings:           warnings,
	}, nil
}

// UpdateData replaces the session's rows and returns the new row count.
func (s *SessionService) UpdateData(ctx context.Context, id string, headers []string, rows []mapping.Row) (int, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	ds, err := dataset.New(headers, rows)
	if err != nil {
		return 0, err
	}
	if err := sess.ReplaceData(ds); err != nil {
		return 0, err
	}
	s.persistData(ctx, sess)
	return ds.Len(), nil
}

// FindReplace edits matching cells and returns how many changed.
func (s *SessionService) FindReplace(ctx context.Context, id, find, replace, column string, matchCase bool) (int, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	var changed int
	err = sess.EditData(func(ds *dataset.DataSet) (*dataset.DataSet, error) {
		n, err := ds.FindReplace(find, replace, column, matchCase)
		changed = n
		return ds, err
	})
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		s.persistData(ctx, sess)
	}
	return changed, nil
}

// persistData writes the edited dataset back to storage so a restored
// session sees the edits.
func (s *SessionService) persistData(ctx context.Context, sess *session.Session) {
	ds := sess.Data()
	data, err := ds.JSON()
	if err != nil {
		s.logger.Warn("failed to serialise dataset", "session_id", sess.ID, "error", err)
		return
	}
	obj := storage.SessionObject(sess.ID, editedData)
	if err := storage.PutBytes(ctx, s.blobs, obj, data, "application/json"); err != nil {
		s.logger.Warn("failed to store edited dataset", "session_id", sess.ID, "error", err)
		return
	}
	if s.db != nil {
		err := s.db.WithContext(ctx).Model(&models.SessionRecord{}).Where("id = ?", sess.ID).
			Updates(map[string]any{"data_object": obj, "total_rows": ds.Len(), "last_access_at": time.Now()}).Error
		if err != nil {
			s.logger.Warn("failed to update session record", "session_id", sess.ID, "error", err)
		}
	}
}

// Delete drops a session and its stored files.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.JobRunning() {
		return apperror.New(apperror.KindConflict, "Cannot delete a session while a generation job is running")
	}
	s.store.Delete(id)
	return s.Purge(ctx, id)
}

// Purge removes the stored files and record of a session that is no longer
// in the store. It is the janitor's expiry hook.
func (s *SessionService) Purge(ctx context.Context, id string) error {
	if err := s.blobs.DeletePrefix(ctx, storage.SessionPrefix(id)); err != nil {
		return fmt.Errorf("failed to delete session files: %w", err)
	}
	if s.db != nil {
		if err := s.db.WithContext(ctx).Delete(&models.SessionRecord{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete session record: %w", err)
		}
	}
	s.logger.Info("session removed", "session_id", id)
	return nil
}
