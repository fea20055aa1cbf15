package certificates

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Access log actions.
const (
	ActionDownload = "download"
	ActionPreview  = "preview"
	ActionInspect  = "inspect"
	ActionReview   = "review"
	ActionRequest  = "request"
	ActionArchive  = "archive"
)

// AccessLog records one delivery or administrative action on a certificate.
type AccessLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID int64          `gorm:"not null;index" json:"student_id"`
	Action    string         `gorm:"size:32;not null;index" json:"action"`
	Actor     string         `gorm:"size:255" json:"actor,omitempty"`
	Format    string         `gorm:"size:32" json:"format,omitempty"`
	Size      int            `json:"size"`
	Success   bool           `gorm:"not null" json:"success"`
	Error     string         `json:"error,omitempty"`
	Metadata  datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (AccessLog) TableName() string {
	return "certificate_access_logs"
}

// AccessLogFilter narrows ListByStudent. An empty Action matches every action.
type AccessLogFilter struct {
	Action      string
	SuccessOnly bool
	Limit       int
}

const (
	defaultAccessLogLimit = 50
	maxAccessLogLimit     = 200
)

// AccessLogStore persists access logs.
type AccessLogStore interface {
	Record(ctx context.Context, entry *AccessLog) error
	ListByStudent(ctx context.Context, studentID int64, filter AccessLogFilter) ([]AccessLog, error)
}

type gormAccessLogStore struct {
	db *gorm.DB
}

// NewAccessLogStore wraps db. Call MigrateAccessLogs first on a fresh schema.
func NewAccessLogStore(db *gorm.DB) AccessLogStore {
	return &gormAccessLogStore{db: db}
}

// MigrateAccessLogs creates or updates the access log table.
func MigrateAccessLogs(db *gorm.DB) error {
	return db.AutoMigrate(&AccessLog{})
}

func (s *gormAccessLogStore) Record(ctx context.Context, entry *AccessLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

// ListByStudent returns the newest entries first.
func (s *gormAccessLogStore) ListByStudent(ctx context.Context, studentID int64, filter AccessLogFilter) ([]AccessLog, error) {
	query := s.db.WithContext(ctx).Where("student_id = ?", studentID)
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.SuccessOnly {
		query = query.Where("success = ?", true)
	}

	logs := []AccessLog{}
	err := query.
		Order("created_at DESC").
		Limit(clampLimit(filter.Limit)).
		Find(&logs).Error
	return logs, err
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultAccessLogLimit
	case limit > maxAccessLogLimit:
		return maxAccessLogLimit
	default:
		return limit
	}
}

// archiveKey reads the object key an archive entry was stored under.
func archiveKey(entry AccessLog) string {
	var meta struct {
		Key string `json:"key"`
	}
	if len(entry.Metadata) == 0 || json.Unmarshal(entry.Metadata, &meta) != nil {
		return ""
	}
	return meta.Key
}

// metadataJSON encodes small key/value maps for the jsonb column.
func metadataJSON(fields map[string]interface{}) datatypes.JSON {
	if len(fields) == 0 {
		return nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
