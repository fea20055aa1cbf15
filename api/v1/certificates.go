package v1

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/balu-16/certificate-place-final/internal/certificates"
	"github.com/balu-16/certificate-place-final/internal/config"
	"github.com/balu-16/certificate-place-final/pkg/email"
	"github.com/balu-16/certificate-place-final/pkg/pdf"
	"github.com/balu-16/certificate-place-final/pkg/storage"
)

// memoryBucket names the in-process bucket used when no S3 bucket is configured.
const memoryBucket = "local-certificates"

// CertificatesAPI holds the certificates API dependencies
type CertificatesAPI struct {
	Handler    *certificates.Handler
	Service    certificates.Service
	Repository certificates.Repository
	AccessLogs certificates.AccessLogStore
	Storage    *certificates.StorageProvider
}

// SetupCertificatesAPI wires repository, access log, storage and service.
// gormDB may be nil, which disables access logging.
func SetupCertificatesAPI(ctx context.Context, db *sqlx.DB, gormDB *gorm.DB, cfg *config.Config, logger *zap.Logger) (*CertificatesAPI, error) {
	repository := certificates.NewRepository(db)

	var accessLogs certificates.AccessLogStore
	if gormDB != nil {
		if cfg.Database.AutoMigrate {
			if err := certificates.MigrateAccessLogs(gormDB); err != nil {
				return nil, fmt.Errorf("failed to migrate access logs: %w", err)
			}
		}
		accessLogs = certificates.NewAccessLogStore(gormDB)
	}

	provider, err := NewArchiveStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	notifier, err := NewReviewNotifier(ctx, cfg.Notifications, logger)
	if err != nil {
		return nil, err
	}

	assembler := pdf.NewAssembler(pdf.DefaultOptions(), logger)
	service := certificates.NewService(repository, accessLogs, assembler, provider, notifier, logger)
	handler := certificates.NewHandler(service, logger)

	return &CertificatesAPI{
		Handler:    handler,
		Service:    service,
		Repository: repository,
		AccessLogs: accessLogs,
		Storage:    provider,
	}, nil
}

// NewArchiveStorage returns an S3 backed provider when a bucket is set and
// an in-memory one otherwise.
func NewArchiveStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*certificates.StorageProvider, error) {
	if cfg.Bucket == "" {
		logger.Warn("No S3 bucket configured, certificate archives are kept in memory")
		return certificates.NewStorageProvider(storage.NewMemoryClient(), memoryBucket, cfg.KeyPrefix, cfg.PresignTTL), nil
	}

	client, err := storage.NewS3Client(ctx, storage.Config{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		UsePathStyle:    cfg.UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	logger.Info("Certificate archive storage ready",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region))
	return certificates.NewStorageProvider(client, cfg.Bucket, cfg.KeyPrefix, cfg.PresignTTL), nil
}

// NewReviewNotifier emails review outcomes through SES when a sender address
// is configured.
func NewReviewNotifier(ctx context.Context, cfg config.NotificationConfig, logger *zap.Logger) (certificates.Notifier, error) {
	if cfg.FromAddress == "" {
		logger.Info("No SES sender address configured, review emails are disabled")
		return certificates.NewEmailNotifier(nil), nil
	}

	sender, err := email.NewSESSender(ctx, email.Config{
		Region:           cfg.Region,
		Endpoint:         cfg.Endpoint,
		AccessKeyID:      cfg.AccessKeyID,
		SecretAccessKey:  cfg.SecretAccessKey,
		FromAddress:      cfg.FromAddress,
		ConfigurationSet: cfg.ConfigurationSet,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ses sender: %w", err)
	}
	logger.Info("Review notifications ready",
		zap.String("from", cfg.FromAddress),
		zap.String("region", cfg.Region))
	return certificates.NewEmailNotifier(sender), nil
}

// RegisterCertificatesRoutes registers the certificates routes on the router group
func RegisterCertificatesRoutes(router *gin.RouterGroup, api *CertificatesAPI) {
	api.Handler.RegisterRoutes(router)
}
