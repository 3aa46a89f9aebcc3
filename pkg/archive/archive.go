// Package archive keeps a copy of every published image and its post record
// in an S3 compatible bucket.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"describer/pkg/config"
	"describer/pkg/logger"
	"describer/pkg/models"
)

// Archiver stores a published post
type Archiver interface {
	Archive(ctx context.Context, record *models.PublishedRecord, artifact *models.Artifact) error
}

// Store writes objects under <yyyy>/<mm>/<candidate-id>/
type Store struct {
	client   *minio.Client
	bucket   string
	region   string
	logger   logger.Logger
	initOnce sync.Once
	initErr  error
}

// NewStore connects to the bucket described by cfg
func NewStore(cfg config.ArchiveConfig, log logger.Logger) (*Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("archive endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init archive client: %w", err)
	}

	return &Store{client: client, bucket: bucket, region: region, logger: log.WithField("component", "archive")}, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if !exists {
			s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
		}
	})
	return s.initErr
}

// Archive uploads the image and a JSON copy of the record
func (s *Store) Archive(ctx context.Context, record *models.PublishedRecord, artifact *models.Artifact) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	prefix := Prefix(record)
	if artifact != nil && len(artifact.Data) > 0 {
		key := prefix + "image." + extension(artifact.Format)
		if err := s.put(ctx, key, artifact.Data, artifact.MIMEType()); err != nil {
			return err
		}
	}

	doc, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := s.put(ctx, prefix+"record.json", doc, "application/json"); err != nil {
		return err
	}

	s.logger.InfoWithFields("Post archived", map[string]interface{}{
		"bucket": s.bucket,
		"prefix": prefix,
	})
	return nil
}

func (s *Store) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Prefix is the object key prefix of a record
func Prefix(record *models.PublishedRecord) string {
	id := unsafeKeyChars.ReplaceAllString(record.CandidateID, "_")
	id = strings.Trim(id, "_")
	if len(id) > 120 {
		id = id[len(id)-120:]
	}
	if id == "" {
		id = "unknown"
	}
	return fmt.Sprintf("%s/%s/", record.CreatedAt.UTC().Format("2006/01"), id)
}

func extension(format string) string {
	switch format {
	case "png", "gif":
		return format
	default:
		return "jpg"
	}
}
