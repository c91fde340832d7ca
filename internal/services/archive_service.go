// internal/services/archive_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/sirupsen/logrus"

	"github.com/ntptrace/trace-backend/internal/config"
	"github.com/ntptrace/trace-backend/internal/models"
)

// ArchiveService keeps an immutable JSON copy of every issued certificate in
// S3. Without AWS credentials it is disabled and archiving is a no-op.
type ArchiveService struct {
	s3Client s3iface.S3API
	bucket   string
}

type ArchiveResult struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
}

func NewArchiveService(cfg *config.Config) (*ArchiveService, error) {
	if cfg.AWS.AccessKeyID == "" {
		// Return service without S3 for local development
		return &ArchiveService{bucket: cfg.AWS.ArchiveBucket}, nil
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

	return NewArchiveServiceWithClient(s3.New(sess), cfg.AWS.ArchiveBucket), nil
}

func NewArchiveServiceWithClient(client s3iface.S3API, bucket string) *ArchiveService {
	return &ArchiveService{s3Client: client, bucket: bucket}
}

func (s *ArchiveService) Enabled() bool {
	return s != nil && s.s3Client != nil
}

func ArchiveKey(cert *models.Certificate) string {
	return fmt.Sprintf("certificates/%s/%s.json", cert.ProductID, cert.ID)
}

func (s *ArchiveService) Archive(ctx context.Context, cert *models.Certificate) (*ArchiveResult, error) {
	key := ArchiveKey(cert)
	if !s.Enabled() {
		logrus.WithField("key", key).Debug("Archive disabled, skipping certificate upload")
		return nil, nil
	}

	body, err := json.Marshal(cert)
	if err != nil {
		return nil, fmt.Errorf("failed to encode certificate: %w", err)
	}

	_, err = s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
		Metadata: map[string]*string{
			"Certificate-Id":   aws.String(cert.ID),
			"Transaction-Hash": aws.String(cert.TransactionHash),
			"Stage":            aws.String(cert.Status.String()),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload certificate to S3: %w", err)
	}

	return &ArchiveResult{
		Bucket: s.bucket,
		Key:    key,
		Size:   int64(len(body)),
	}, nil
}

func (s *ArchiveService) PresignedURL(cert *models.Certificate, expiration time.Duration) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("S3 client not configured")
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ArchiveKey(cert)),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url, nil
}
