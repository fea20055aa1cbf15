package certificates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/balu-16/certificate-place-final/pkg/bytea"
	"github.com/balu-16/certificate-place-final/pkg/diagnostics"
	"github.com/balu-16/certificate-place-final/pkg/email"
	"github.com/balu-16/certificate-place-final/pkg/pdf"
	"github.com/balu-16/certificate-place-final/pkg/workflows"
)

type Service interface {
	GetCertificate(ctx context.Context, id int64) (*Student, error)
	ListApproved(ctx context.Context, phone string) ([]Student, error)
	ListPending(ctx context.Context) ([]Student, error)

	Render(ctx context.Context, id int64) (*Artifact, error)
	RenderPayload(ctx context.Context, payload any) (*Artifact, error)
	Download(ctx context.Context, id int64, actor string) (*Artifact, error)
	Preview(ctx context.Context, id int64, actor string) (*Artifact, error)

	Inspect(ctx context.Context, id int64) (*diagnostics.Report, error)
	InspectPayload(ctx context.Context, payload any) *diagnostics.Report

	Request(ctx context.Context, id int64, req CertificateRequest) (*Student, error)
	Review(ctx context.Context, id int64, req ReviewRequest) (*ReviewResult, error)
	Archive(ctx context.Context, id int64) (*ArchiveResult, error)
	ArchivedCopy(ctx context.Context, id int64) (*Artifact, error)
	AccessLogs(ctx context.Context, id int64, limit int) ([]AccessLog, error)
}

type certificateService struct {
	repo      Repository
	logs      AccessLogStore
	decoder   *bytea.Decoder
	assembler pdf.Builder
	inspector *diagnostics.Inspector
	storage   *StorageProvider
	notifier  Notifier
	workflow  *workflows.StateMachine
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires the certificate service. logs, storage and notifier may
// be nil, in which case access logging, archiving and review emails are
// disabled.
func NewService(repo Repository, logs AccessLogStore, assembler pdf.Builder, storage *StorageProvider, notifier Notifier, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewEmailNotifier(nil)
	}
	decoder := bytea.NewDecoder(logger)
	return &certificateService{
		repo:      repo,
		logs:      logs,
		decoder:   decoder,
		assembler: assembler,
		inspector: diagnostics.NewInspector(decoder, assembler, logger),
		storage:   storage,
		notifier:  notifier,
		workflow:  workflows.NewStateMachine(),
		logger:    logger.Named("certificates"),
		now:       time.Now,
	}
}

func (s *certificateService) GetCertificate(ctx context.Context, id int64) (*Student, error) {
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	student.NextStatuses = s.workflow.GetAllowedTransitions(student.Status())
	return student, nil
}

func (s *certificateService) ListApproved(ctx context.Context, phone string) ([]Student, error) {
	students, err := s.repo.ListApprovedByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch approved certificates: %w", err)
	}
	return students, nil
}

func (s *certificateService) ListPending(ctx context.Context) ([]Student, error) {
	students, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch certificate requests: %w", err)
	}
	return students, nil
}

func (s *certificateService) Render(ctx context.Context, id int64) (*Artifact, error) {
	student, err := s.loadWithCertificate(ctx, id)
	if err != nil {
		return nil, err
	}
	artifact, err := s.render(ctx, student.Payload())
	if err != nil {
		return nil, err
	}
	artifact.StudentID = student.ID
	artifact.Filename = student.DownloadFilename()
	return artifact, nil
}

func (s *certificateService) RenderPayload(ctx context.Context, payload any) (*Artifact, error) {
	artifact, err := s.render(ctx, payload)
	if err != nil {
		return nil, err
	}
	artifact.Filename = PreviewFilename
	return artifact, nil
}

func (s *certificateService) Download(ctx context.Context, id int64, actor string) (*Artifact, error) {
	student, err := s.loadWithCertificate(ctx, id)
	if err != nil {
		return nil, err
	}
	if !student.CertificateApproved {
		return nil, ErrNotApproved
	}

	s.logger.Info("Starting certificate download",
		zap.Int64("student_id", student.ID),
		zap.String("student_name", student.Name))

	artifact, err := s.render(ctx, student.Payload())
	if err == nil && !artifact.Verified {
		err = ErrUnverifiedPayload
	}
	if err != nil {
		s.record(ctx, student.ID, ActionDownload, actor, nil, err)
		return nil, err
	}
	artifact.StudentID = student.ID
	artifact.Filename = student.DownloadFilename()
	s.record(ctx, student.ID, ActionDownload, actor, artifact, nil)

	s.logger.Info("Certificate download completed",
		zap.Int64("student_id", student.ID),
		zap.String("filename", artifact.Filename),
		zap.Int("size", artifact.Size()))
	return artifact, nil
}

// Preview renders without requiring approval so reviewers can see pending
// requests. Unverified bytes are returned with Verified=false.
func (s *certificateService) Preview(ctx context.Context, id int64, actor string) (*Artifact, error) {
	student, err := s.loadWithCertificate(ctx, id)
	if err != nil {
		return nil, err
	}

	artifact, err := s.render(ctx, student.Payload())
	if err != nil {
		s.record(ctx, student.ID, ActionPreview, actor, nil, err)
		return nil, err
	}
	artifact.StudentID = student.ID
	artifact.Filename = PreviewFilename
	s.record(ctx, student.ID, ActionPreview, actor, artifact, nil)
	return artifact, nil
}

func (s *certificateService) Inspect(ctx context.Context, id int64) (*diagnostics.Report, error) {
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	report := s.inspector.Inspect(student.Payload(), fmt.Sprintf("student %d", student.ID))
	s.recordEntry(ctx, &AccessLog{
		StudentID: student.ID,
		Action:    ActionInspect,
		Format:    string(report.Format),
		Size:      report.DecodedLength,
		Success:   report.Error == "",
		Error:     report.Error,
		Metadata: metadataJSON(map[string]interface{}{
			"header_valid": report.HeaderValid,
			"content_type": report.ContentType,
		}),
	})
	return report, nil
}

func (s *certificateService) InspectPayload(ctx context.Context, payload any) *diagnostics.Report {
	return s.inspector.Inspect(payload, "request body")
}

// Request stores a generated certificate and moves it into review. Each
// request counts toward MaxCertificateRequests; downloads do not.
func (s *certificateService) Request(ctx context.Context, id int64, req CertificateRequest) (*Student, error) {
	req.Certificate = strings.TrimSpace(req.Certificate)
	if req.Certificate == "" {
		return nil, ErrNoCertificate
	}

	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if student.DownloadedCount >= MaxCertificateRequests {
		return nil, ErrRequestLimitReached
	}
	if err := s.workflow.Transition(student.Status(), workflows.StatusPending); err != nil {
		return nil, err
	}

	if req.CertificateID == "" && student.CertificateID != nil {
		req.CertificateID = *student.CertificateID
	}
	if req.CertificateID == "" {
		return nil, ErrMissingCertificateID
	}

	artifact, err := s.render(ctx, req.Certificate)
	if err == nil && !artifact.Verified {
		err = ErrUnverifiedPayload
	}
	if err != nil {
		s.record(ctx, student.ID, ActionRequest, "", nil, err)
		return nil, err
	}

	now := s.now()
	if err := s.repo.SaveRequest(ctx, student.ID, req, now); err != nil {
		if errors.Is(err, ErrRequestLimitReached) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to request certificate: %w", err)
	}

	status := workflows.StatusPending
	student.Certificate = &req.Certificate
	student.CertificateID = &req.CertificateID
	student.CertificateStatus = &status
	student.CertificateApproved = false
	student.CertificateRequestedAt = &now
	student.DownloadedCount++
	s.record(ctx, student.ID, ActionRequest, "", artifact, nil)

	s.logger.Info("Certificate requested",
		zap.Int64("student_id", student.ID),
		zap.String("certificate_id", req.CertificateID),
		zap.Int("requests", student.DownloadedCount))
	return student, nil
}

func (s *certificateService) Review(ctx context.Context, id int64, req ReviewRequest) (*ReviewResult, error) {
	target, err := req.Action.TargetStatus()
	if err != nil {
		return nil, err
	}

	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	from := student.Status()
	if err := s.workflow.Transition(from, target); err != nil {
		return nil, err
	}

	approved := target == workflows.StatusApproved
	if err := s.repo.UpdateStatus(ctx, student.ID, target, approved); err != nil {
		return nil, fmt.Errorf("failed to update certificate status: %w", err)
	}

	s.logger.Info("Certificate reviewed",
		zap.Int64("student_id", student.ID),
		zap.String("from", from),
		zap.String("to", target),
		zap.String("reviewer", req.Reviewer))

	student.CertificateStatus = &target
	student.CertificateApproved = approved
	student.NextStatuses = s.workflow.GetAllowedTransitions(target)

	result := s.notify(ctx, student, target)
	s.recordEntry(ctx, &AccessLog{
		StudentID: student.ID,
		Action:    ActionReview,
		Actor:     req.Reviewer,
		Success:   true,
		Metadata: metadataJSON(map[string]interface{}{
			"status":   target,
			"notified": result.Notified,
		}),
	})
	return result, nil
}

// notify emails the review outcome. Delivery problems never undo the review;
// they come back as a warning for the reviewer.
func (s *certificateService) notify(ctx context.Context, student *Student, status string) *ReviewResult {
	result := &ReviewResult{Student: student}

	messageID, err := s.notifier.NotifyReview(ctx, student, status)
	switch {
	case err == nil:
		result.Notified = true
		result.MessageID = messageID
		s.logger.Info("Review notification sent",
			zap.Int64("student_id", student.ID),
			zap.String("message_id", messageID))
	case errors.Is(err, email.ErrDisabled):
		s.logger.Debug("Review notifications disabled", zap.Int64("student_id", student.ID))
	case errors.Is(err, ErrNoEmailAddress):
		result.Warning = fmt.Sprintf("certificate %s, but no email address found for student", status)
		s.logger.Warn("Student has no email address", zap.Int64("student_id", student.ID))
	default:
		result.Warning = fmt.Sprintf("certificate %s, but email notification failed to send", status)
		s.logger.Warn("Failed to send review notification",
			zap.Int64("student_id", student.ID),
			zap.Error(err))
	}
	return result
}

func (s *certificateService) Archive(ctx context.Context, id int64) (*ArchiveResult, error) {
	if !s.storage.Enabled() {
		return nil, ErrStorageDisabled
	}

	student, err := s.loadWithCertificate(ctx, id)
	if err != nil {
		return nil, err
	}
	if !student.CertificateApproved {
		return nil, ErrNotApproved
	}

	artifact, err := s.render(ctx, student.Payload())
	if err == nil && !artifact.Verified {
		err = ErrUnverifiedPayload
	}
	if err != nil {
		s.record(ctx, student.ID, ActionArchive, "", nil, err)
		return nil, err
	}
	artifact.StudentID = student.ID
	artifact.Filename = student.DownloadFilename()

	previous, err := s.latestArchiveKey(ctx, student.ID)
	if err != nil {
		s.logger.Warn("Failed to look up previous archive", zap.Int64("student_id", student.ID), zap.Error(err))
	}

	result, err := s.storage.Store(ctx, artifact)
	if err != nil {
		s.record(ctx, student.ID, ActionArchive, "", artifact, err)
		return nil, fmt.Errorf("failed to archive certificate: %w", err)
	}

	if previous != "" && previous != result.Key {
		if err := s.storage.Remove(ctx, previous); err != nil {
			s.logger.Warn("Failed to remove replaced archive",
				zap.Int64("student_id", student.ID),
				zap.String("key", previous),
				zap.Error(err))
		} else {
			result.Replaced = previous
		}
	}

	s.recordEntry(ctx, &AccessLog{
		StudentID: student.ID,
		Action:    ActionArchive,
		Format:    string(artifact.Format),
		Size:      artifact.Size(),
		Success:   true,
		Metadata:  metadataJSON(map[string]interface{}{"bucket": result.Bucket, "key": result.Key}),
	})
	return result, nil
}

// ArchivedCopy serves the most recently archived PDF for a student.
func (s *certificateService) ArchivedCopy(ctx context.Context, id int64) (*Artifact, error) {
	if !s.storage.Enabled() {
		return nil, ErrStorageDisabled
	}
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	key, err := s.latestArchiveKey(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrNoArchive
	}

	data, err := s.storage.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		StudentID:   student.ID,
		Data:        data,
		ContentType: pdf.MIMEType,
		Source:      SourceArchive,
		Filename:    student.DownloadFilename(),
		Verified:    bytea.HasPDFSignature(data),
	}, nil
}

func (s *certificateService) AccessLogs(ctx context.Context, id int64, limit int) ([]AccessLog, error) {
	if s.logs == nil {
		return nil, ErrAccessLogsDisabled
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.logs.ListByStudent(ctx, id, AccessLogFilter{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list access logs: %w", err)
	}
	return entries, nil
}

// latestArchiveKey returns the key of the last successful archive, or "" when
// there is none or access logging is off.
func (s *certificateService) latestArchiveKey(ctx context.Context, studentID int64) (string, error) {
	if s.logs == nil {
		return "", nil
	}
	entries, err := s.logs.ListByStudent(ctx, studentID, AccessLogFilter{
		Action:      ActionArchive,
		SuccessOnly: true,
		Limit:       1,
	})
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}
	return archiveKey(entries[0]), nil
}

// render resolves a stored payload into PDF bytes. Image data URLs and
// decoded images are assembled into a page; decoded PDFs are served as-is.
// Decoded bytes that are neither come back unverified.
func (s *certificateService) render(ctx context.Context, payload any) (*Artifact, error) {
	if text, ok := payload.(string); ok && pdf.IsImageDataURL(text) {
		doc, err := s.assembler.BuildFromDataURL(ctx, text)
		if err != nil {
			return nil, err
		}
		return s.fromDocument(doc, bytea.FormatBase64), nil
	}

	result, err := s.decoder.DecodeNonEmpty(payload)
	if err != nil {
		return nil, err
	}

	if result.IsValid {
		return &Artifact{
			Data:        result.Data,
			ContentType: pdf.MIMEType,
			Source:      SourceStoredPDF,
			Format:      result.Format,
			Verified:    true,
		}, nil
	}

	detected := mimetype.Detect(result.Data).String()
	if strings.HasPrefix(detected, "image/") {
		doc, err := s.assembler.Build(ctx, result.Data, detected)
		if err != nil {
			return nil, err
		}
		return s.fromDocument(doc, result.Format), nil
	}

	// Data URLs stored through the hex path decode to the URL text itself.
	if text, ok := pdf.ImageDataURLText(result.Data); ok {
		doc, err := s.assembler.BuildFromDataURL(ctx, text)
		if err != nil {
			return nil, err
		}
		return s.fromDocument(doc, result.Format), nil
	}

	s.logger.Warn("Certificate data is not a PDF or image, serving as-is",
		zap.String("format", string(result.Format)),
		zap.String("detected", detected),
		zap.Int("size", result.Len()))
	return &Artifact{
		Data:        result.Data,
		ContentType: pdf.MIMEType,
		Source:      SourceStoredPDF,
		Format:      result.Format,
		Verified:    false,
	}, nil
}

func (s *certificateService) fromDocument(doc *pdf.Document, format bytea.Format) *Artifact {
	return &Artifact{
		Data:        doc.Data,
		ContentType: doc.MIMEType,
		Source:      SourceAssembledImage,
		Format:      format,
		ImageMIME:   doc.SourceMIME,
		Verified:    bytea.HasPDFSignature(doc.Data),
	}
}

func (s *certificateService) load(ctx context.Context, id int64) (*Student, error) {
	student, err := s.repo.GetStudent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch student: %w", err)
	}
	if student == nil {
		return nil, ErrCertificateNotFound
	}
	return student, nil
}

func (s *certificateService) loadWithCertificate(ctx context.Context, id int64) (*Student, error) {
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !student.HasCertificate() {
		return nil, ErrNoCertificate
	}
	return student, nil
}

func (s *certificateService) record(ctx context.Context, studentID int64, action, actor string, artifact *Artifact, cause error) {
	entry := &AccessLog{
		StudentID: studentID,
		Action:    action,
		Actor:     actor,
		Success:   cause == nil,
	}
	if artifact != nil {
		entry.Format = string(artifact.Format)
		entry.Size = artifact.Size()
		entry.Metadata = metadataJSON(map[string]interface{}{
			"source":   artifact.Source,
			"verified": artifact.Verified,
			"filename": artifact.Filename,
		})
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	s.recordEntry(ctx, entry)
}

func (s *certificateService) recordEntry(ctx context.Context, entry *AccessLog) {
	if s.logs == nil {
		return
	}
	if err := s.logs.Record(ctx, entry); err != nil {
		s.logger.Warn("Failed to record certificate access",
			zap.Int64("student_id", entry.StudentID),
			zap.String("action", entry.Action),
			zap.Error(err))
	}
}

// IsPayloadError reports whether err comes from unusable certificate data
// rather than from infrastructure.
func IsPayloadError(err error) bool {
	for _, target := range []error{
		ErrNoCertificate,
		ErrUnverifiedPayload,
		bytea.ErrNilPayload,
		bytea.ErrInvalidHexLength,
		bytea.ErrInvalidHexCharacter,
		bytea.ErrInvalidJSON,
		bytea.ErrInvalidBase64,
		bytea.ErrUnsupportedObject,
		bytea.ErrUnsupportedType,
		bytea.ErrEmptyResult,
		pdf.ErrImageLoad,
		pdf.ErrEmptyImage,
		pdf.ErrNotImageDataURL,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
