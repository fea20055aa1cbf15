package integrity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/balu-16/certificate-place-final/internal/certificates"
	"github.com/balu-16/certificate-place-final/pkg/bytea"
	"github.com/balu-16/certificate-place-final/pkg/diagnostics"
)

// Source pages through approved certificates in student id order.
type Source interface {
	ListApproved(ctx context.Context, afterID int64, limit int) ([]certificates.Student, error)
}

// Row is the scan outcome for one student.
type Row struct {
	StudentID     int64        `json:"student_id"`
	Name          string       `json:"name"`
	CertificateID string       `json:"certificate_id,omitempty"`
	InputType     string       `json:"input_type"`
	Format        bytea.Format `json:"format"`
	Valid         bool         `json:"valid"`
	DataURL       bool         `json:"data_url"`
	DecodedLength int          `json:"decoded_length"`
	ContentType   string       `json:"content_type,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// Healthy reports whether the certificate can be served as a PDF or an
// image that will be assembled into one.
func (r Row) Healthy() bool {
	if r.Error != "" {
		return false
	}
	return r.Valid || isImage(r.ContentType)
}

// Summary aggregates a whole scan.
type Summary struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	ValidPDF   int       `json:"valid_pdf"`
	Images     int       `json:"images"`
	Unreadable int       `json:"unreadable"`
	Failed     int       `json:"failed"`
	Rows       []Row     `json:"rows"`
}

// Duration is the wall time the scan took.
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Healthy is the number of rows that can be delivered.
func (s *Summary) Healthy() int {
	return s.ValidPDF + s.Images
}

func (s *Summary) add(row Row) {
	s.Rows = append(s.Rows, row)
	s.Total++
	switch {
	case row.Error != "":
		s.Failed++
	case row.Valid:
		s.ValidPDF++
	case isImage(row.ContentType):
		s.Images++
	default:
		s.Unreadable++
	}
}

// Scanner checks every approved certificate payload.
type Scanner struct {
	source    Source
	inspector *diagnostics.Inspector
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

func NewScanner(source Source, inspector *diagnostics.Inspector, batchSize int, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if inspector == nil {
		inspector = diagnostics.NewInspector(nil, nil, logger)
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Scanner{
		source:    source,
		inspector: inspector,
		batchSize: batchSize,
		logger:    logger.Named("integrity"),
		now:       time.Now,
	}
}

// Scan walks all approved certificates. A cancelled context stops the walk
// between batches and returns the partial summary with the context error.
func (s *Scanner) Scan(ctx context.Context) (*Summary, error) {
	summary := &Summary{StartedAt: s.now(), Rows: []Row{}}
	s.logger.Info("Starting certificate integrity scan", zap.Int("batch_size", s.batchSize))

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = s.now()
			return summary, err
		}

		batch, err := s.source.ListApproved(ctx, afterID, s.batchSize)
		if err != nil {
			summary.FinishedAt = s.now()
			return summary, fmt.Errorf("failed to list approved certificates after %d: %w", afterID, err)
		}

		for i := range batch {
			row := s.check(&batch[i])
			summary.add(row)
			if !row.Healthy() {
				s.logger.Warn("Certificate failed integrity check",
					zap.Int64("student_id", row.StudentID),
					zap.String("format", string(row.Format)),
					zap.String("content_type", row.ContentType),
					zap.String("error", row.Error))
			}
		}

		if len(batch) < s.batchSize {
			break
		}
		afterID = batch[len(batch)-1].ID
	}

	summary.FinishedAt = s.now()
	s.logger.Info("Certificate integrity scan completed",
		zap.Int("total", summary.Total),
		zap.Int("valid_pdf", summary.ValidPDF),
		zap.Int("images", summary.Images),
		zap.Int("unreadable", summary.Unreadable),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration()))
	return summary, nil
}

func (s *Scanner) check(student *certificates.Student) Row {
	report := s.inspector.Inspect(student.Payload(), fmt.Sprintf("student %d", student.ID))
	row := Row{
		StudentID:     student.ID,
		Name:          student.Name,
		InputType:     report.Type,
		Format:        report.Format,
		Valid:         report.HeaderValid,
		DataURL:       report.DataURL,
		DecodedLength: report.DecodedLength,
		ContentType:   report.ContentType,
		Error:         report.Error,
	}
	if student.CertificateID != nil {
		row.CertificateID = *student.CertificateID
	}
	switch {
	case row.Error != "":
	case report.ImageError != "":
		row.Error = report.ImageError
	case row.DecodedLength == 0:
		row.Error = bytea.ErrEmptyResult.Error()
	}
	return row
}

func isImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}
