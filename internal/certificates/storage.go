package certificates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/balu-16/certificate-place-final/pkg/storage"
)

// StorageProvider archives rendered certificates to a bucket.
type StorageProvider struct {
	s3         storage.S3Client
	bucket     string
	prefix     string
	presignTTL time.Duration
}

func NewStorageProvider(s3 storage.S3Client, bucket, prefix string, presignTTL time.Duration) *StorageProvider {
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	return &StorageProvider{
		s3:         s3,
		bucket:     bucket,
		prefix:     prefix,
		presignTTL: presignTTL,
	}
}

// Enabled reports whether a client and bucket are configured.
func (p *StorageProvider) Enabled() bool {
	return p != nil && p.s3 != nil && p.bucket != ""
}

func (p *StorageProvider) GenerateKey(studentID int64, filename string) string {
	prefix := p.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return fmt.Sprintf("%sstudents/%d/%s/%s", prefix, studentID, uuid.New(), filename)
}

// Store uploads artifact and returns a presigned link to it.
func (p *StorageProvider) Store(ctx context.Context, artifact *Artifact) (*ArchiveResult, error) {
	key := p.GenerateKey(artifact.StudentID, artifact.Filename)
	if err := p.s3.Upload(ctx, p.bucket, key, bytes.NewReader(artifact.Data), artifact.ContentType); err != nil {
		return nil, err
	}

	url, err := p.s3.GetPresignedURL(ctx, p.bucket, key, p.presignTTL)
	if err != nil {
		_ = p.s3.Delete(ctx, p.bucket, key)
		return nil, err
	}

	return &ArchiveResult{
		StudentID: artifact.StudentID,
		Bucket:    p.bucket,
		Key:       key,
		Size:      artifact.Size(),
		URL:       url,
		ExpiresAt: time.Now().Add(p.presignTTL),
	}, nil
}

// Fetch reads an archived certificate back from the bucket.
func (p *StorageProvider) Fetch(ctx context.Context, key string) ([]byte, error) {
	body, err := p.s3.Download(ctx, p.bucket, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, ErrNoArchive
	}
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", p.bucket, key, err)
	}
	return data, nil
}

// Remove deletes an archived certificate.
func (p *StorageProvider) Remove(ctx context.Context, key string) error {
	return p.s3.Delete(ctx, p.bucket, key)
}
