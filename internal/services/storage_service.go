// internal/services/storage_service.go
package services

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/licensecore/internal/config"
	"github.com/javajoker/licensecore/internal/models"
)

// StorageService checks ownership documentation in the document store.
// High-value licenses require documentation on file before validation
// passes.
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	if cfg.AWS.AccessKeyID == "" {
		// Return service without S3 for local development
		return &StorageService{config: cfg}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   cfg,
	}, nil
}

// HasOwnershipDocumentation reports whether the asset's ownership
// documentation object exists. Without S3 configured the directory's
// documentation key alone decides.
func (s *StorageService) HasOwnershipDocumentation(asset *models.Asset) bool {
	if asset.DocumentationKey == "" {
		return false
	}

	if s.s3Client == nil {
		return true
	}

	_, err := s.s3Client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.config.AWS.DocsBucket),
		Key:    aws.String(asset.DocumentationKey),
	})
	if err != nil {
		logrus.WithError(err).WithField("asset_id", asset.ID).Warn("Ownership documentation lookup failed")
		return false
	}
	return true
}
