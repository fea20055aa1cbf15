package certificates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/balu-16/certificate-place-final/pkg/bytea"
	"github.com/balu-16/certificate-place-final/pkg/workflows"
)

var (
	ErrCertificateNotFound  = errors.New("certificate not found")
	ErrNoCertificate        = errors.New("certificate data is empty or invalid")
	ErrNotApproved          = errors.New("certificate has not been approved")
	ErrUnverifiedPayload    = errors.New("certificate data does not decode to a valid PDF")
	ErrInvalidReviewAction  = errors.New("review action must be approve or reject")
	ErrStorageDisabled      = errors.New("certificate archive storage is not configured")
	ErrNoArchive            = errors.New("no archived certificate found")
	ErrRequestLimitReached  = errors.New("maximum limit of 2 certificate requests reached")
	ErrMissingCertificateID = errors.New("certificate id is required")
	ErrAccessLogsDisabled   = errors.New("certificate access logging is not configured")
)

// MaxCertificateRequests is how many times a student may submit a certificate.
// Every request counts against downloaded_count.
const MaxCertificateRequests = 2

// Student is a row of the students table with the certificate columns this
// service reads. Certificate holds the raw stored payload.
type Student struct {
	ID                     int64      `db:"student_id" json:"student_id"`
	Name                   string     `db:"name" json:"name"`
	PreferredName          *string    `db:"preferred_name" json:"preferred_name,omitempty"`
	PhoneNumber            string     `db:"phone_number" json:"phone_number"`
	Email                  *string    `db:"email" json:"email,omitempty"`
	CourseEnrolled         *string    `db:"course_enrolled" json:"course_enrolled,omitempty"`
	CompanyName            *string    `db:"company_name" json:"company_name,omitempty"`
	Certificate            *string    `db:"certificate" json:"-"`
	CertificateID          *string    `db:"certificate_id" json:"certificate_id,omitempty"`
	Eligible               bool       `db:"eligible" json:"eligible"`
	DownloadedCount        int        `db:"downloaded_count" json:"downloaded_count"`
	CertificateStatus      *string    `db:"certificate_status" json:"certificate_status,omitempty"`
	CertificateApproved    bool       `db:"certificate_approved" json:"certificate_approved"`
	CertificateRequestedAt *time.Time `db:"certificate_requested_at" json:"certificate_requested_at,omitempty"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`

	NextStatuses []string `db:"-" json:"next_statuses,omitempty"`
}

// Status returns the certificate status. NULL, empty and the column
// default "none" all read as StatusNone.
func (s *Student) Status() string {
	if s.CertificateStatus == nil {
		return workflows.StatusNone
	}
	return workflows.Normalize(*s.CertificateStatus)
}

// HasCertificate reports whether a payload is stored for the student.
func (s *Student) HasCertificate() bool {
	return s.Certificate != nil && *s.Certificate != ""
}

// Payload returns the stored certificate text for decoding.
func (s *Student) Payload() any {
	if s.Certificate == nil {
		return nil
	}
	return *s.Certificate
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// DownloadFilename builds <Name>_Certificate_<certificate id>.pdf with every
// whitespace run in the name replaced by an underscore.
func (s *Student) DownloadFilename() string {
	certID := strconv.FormatInt(s.ID, 10)
	if s.CertificateID != nil && *s.CertificateID != "" {
		certID = *s.CertificateID
	}
	return fmt.Sprintf("%s_Certificate_%s.pdf", whitespaceRun.ReplaceAllString(s.Name, "_"), certID)
}

// PreviewFilename is used when a preview has to be saved instead of shown.
const PreviewFilename = "certificate_preview.pdf"

// Source says how the delivered PDF was produced.
type Source string

const (
	SourceStoredPDF      Source = "stored-pdf"
	SourceAssembledImage Source = "assembled-image"
	SourceArchive        Source = "archive"
)

// Artifact is a rendered certificate ready for delivery.
type Artifact struct {
	StudentID   int64        `json:"student_id"`
	Data        []byte       `json:"-"`
	Filename    string       `json:"filename"`
	ContentType string       `json:"content_type"`
	Source      Source       `json:"source"`
	Format      bytea.Format `json:"format"`
	ImageMIME   string       `json:"image_mime,omitempty"`
	Verified    bool         `json:"verified"`
}

// Size returns the artifact length in bytes.
func (a *Artifact) Size() int {
	return len(a.Data)
}

// ReviewAction is an admin decision on a pending request.
type ReviewAction string

const (
	ReviewApprove ReviewAction = "approve"
	ReviewReject  ReviewAction = "reject"
)

// TargetStatus maps the action to the status it moves the certificate to.
func (a ReviewAction) TargetStatus() (string, error) {
	switch a {
	case ReviewApprove:
		return workflows.StatusApproved, nil
	case ReviewReject:
		return workflows.StatusRejected, nil
	default:
		return "", ErrInvalidReviewAction
	}
}

// CertificateRequest is a student's submission of a generated certificate.
// CertificateID falls back to the id already on the student row.
type CertificateRequest struct {
	Certificate   string `json:"certificate" binding:"required"`
	CertificateID string `json:"certificate_id"`
}

// ReviewRequest is the body of a review call.
type ReviewRequest struct {
	Action   ReviewAction `json:"action" binding:"required"`
	Reviewer string       `json:"reviewer"`
}

// ReviewResult is the reviewed student and whether they were told by email.
// Warning is set when the review succeeded but the email did not go out.
type ReviewResult struct {
	Student   *Student `json:"student"`
	Notified  bool     `json:"notified"`
	MessageID string   `json:"message_id,omitempty"`
	Warning   string   `json:"warning,omitempty"`
}

// ArchiveResult describes a certificate copied to object storage.
type ArchiveResult struct {
	StudentID int64     `json:"student_id"`
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	Size      int       `json:"size"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Replaced  string    `json:"replaced,omitempty"`
}
