package certificates

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/balu-16/certificate-place-final/pkg/workflows"
)

type Repository interface {
	GetStudent(ctx context.Context, id int64) (*Student, error)
	ListApprovedByPhone(ctx context.Context, phone string) ([]Student, error)
	ListPending(ctx context.Context) ([]Student, error)
	ListApproved(ctx context.Context, afterID int64, limit int) ([]Student, error)

	UpdateStatus(ctx context.Context, id int64, status string, approved bool) error
	SaveRequest(ctx context.Context, id int64, req CertificateRequest, at time.Time) error
}

const studentColumns = `
	s.student_id, s.name, s.preferred_name, s.phone_number, s.email, s.course_enrolled,
	c.company_name, s.certificate, s.certificate_id, s.eligible, s.downloaded_count,
	s.certificate_status, s.certificate_approved, s.certificate_requested_at, s.created_at`

const studentFrom = `
	FROM students s
	LEFT JOIN companies c ON c.company_id = s.company_id`

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetStudent(ctx context.Context, id int64) (*Student, error) {
	var student Student
	query := "SELECT" + studentColumns + studentFrom + " WHERE s.student_id = $1 AND s.deleted = false"
	err := r.db.GetContext(ctx, &student, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *postgresRepository) ListApprovedByPhone(ctx context.Context, phone string) ([]Student, error) {
	students := []Student{}
	query := "SELECT" + studentColumns + studentFrom + `
		WHERE s.phone_number = $1
		  AND s.certificate_approved = true
		  AND s.certificate IS NOT NULL
		  AND s.deleted = false
		ORDER BY s.student_id`
	err := r.db.SelectContext(ctx, &students, query, phone)
	return students, err
}

func (r *postgresRepository) ListPending(ctx context.Context) ([]Student, error) {
	students := []Student{}
	query := "SELECT" + studentColumns + studentFrom + `
		WHERE s.certificate_status = $1
		  AND s.certificate IS NOT NULL
		  AND s.deleted = false
		ORDER BY s.certificate_requested_at DESC NULLS LAST`
	err := r.db.SelectContext(ctx, &students, query, workflows.StatusPending)
	return students, err
}

func (r *postgresRepository) ListApproved(ctx context.Context, afterID int64, limit int) ([]Student, error) {
	students := []Student{}
	query := "SELECT" + studentColumns + studentFrom + `
		WHERE s.student_id > $1
		  AND s.certificate_approved = true
		  AND s.certificate IS NOT NULL
		  AND s.deleted = false
		ORDER BY s.student_id
		LIMIT $2`
	err := r.db.SelectContext(ctx, &students, query, afterID, limit)
	return students, err
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id int64, status string, approved bool) error {
	query := `
		UPDATE students SET
			certificate_status = $2,
			certificate_approved = $3
		WHERE student_id = $1`
	return r.execOne(ctx, query, id, status, approved)
}

// SaveRequest stores the submitted certificate, moves it to pending and
// counts the request. The limit is checked in the same statement, so a row
// already at the limit comes back as ErrRequestLimitReached.
func (r *postgresRepository) SaveRequest(ctx context.Context, id int64, req CertificateRequest, at time.Time) error {
	query := `
		UPDATE students SET
			certificate = $2,
			certificate_id = $3,
			certificate_status = $4,
			certificate_approved = false,
			certificate_requested_at = $5,
			downloaded_count = COALESCE(downloaded_count, 0) + 1
		WHERE student_id = $1
		  AND deleted = false
		  AND COALESCE(downloaded_count, 0) < $6`
	err := r.execOne(ctx, query, id, req.Certificate, req.CertificateID, workflows.StatusPending, at, MaxCertificateRequests)
	if errors.Is(err, ErrCertificateNotFound) {
		return ErrRequestLimitReached
	}
	return err
}

func (r *postgresRepository) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCertificateNotFound
	}
	return nil
}
