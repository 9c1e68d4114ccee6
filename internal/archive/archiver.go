// Package archive stores published content as JSON documents in MinIO
// object storage, giving each site a durable history independent of the
// database retention policy.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/logger"
)

// Config holds the MinIO archive settings.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

// objectPutter is the slice of the MinIO client the archiver uses.
type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader *bytes.Reader, objectSize int64, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error)
}

type minioPutter struct {
	client *miniogo.Client
}

func (m *minioPutter) PutObject(ctx context.Context, bucket, object string, reader *bytes.Reader, size int64, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error) {
	return m.client.PutObject(ctx, bucket, object, reader, size, opts)
}

// Archiver writes content documents to object storage. When disabled it is
// a no-op so callers never need to branch.
type Archiver struct {
	putter  objectPutter
	bucket  string
	enabled bool
	log     logger.Logger
}

// NewArchiver creates a MinIO-backed archiver.
func NewArchiver(cfg Config, log logger.Logger) (*Archiver, error) {
	if !cfg.Enabled {
		log.Info("content archiving disabled")
		return &Archiver{enabled: false, log: log}, nil
	}

	if cfg.Endpoint == "" {
		return nil, errors.New("archive endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	log.Info("content archiver initialized",
		logger.String("endpoint", cfg.Endpoint),
		logger.String("bucket", cfg.Bucket))

	return &Archiver{
		putter:  &minioPutter{client: client},
		bucket:  cfg.Bucket,
		enabled: true,
		log:     log,
	}, nil
}

// newArchiverWithPutter is used by tests to inject a fake object store.
func newArchiverWithPutter(putter objectPutter, bucket string, log logger.Logger) *Archiver {
	return &Archiver{putter: putter, bucket: bucket, enabled: true, log: log}
}

// Archive uploads one content document.
func (a *Archiver) Archive(ctx context.Context, content *domain.Content) error {
	if !a.enabled {
		return nil
	}
	if content == nil {
		return errors.New("content is nil")
	}

	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}

	key := ObjectKey(content)
	reader := bytes.NewReader(payload)

	_, putErr := a.putter.PutObject(ctx, a.bucket, key, reader, int64(len(payload)),
		miniogo.PutObjectOptions{
			ContentType: "application/json",
			UserMetadata: map[string]string{
				"organisation": content.Organisation,
				"site":         content.SiteID,
				"content-type": string(content.Type),
				"archived-at":  time.Now().UTC().Format(time.RFC3339),
			},
		})
	if putErr != nil {
		return fmt.Errorf("upload content %s: %w", content.ID, putErr)
	}

	a.log.Debug("content archived",
		logger.String("object_key", key),
		logger.Int("size", len(payload)))

	return nil
}

// ObjectKey builds the object name for a content document:
// <organisation>/<site>/<year>/<month>/<content-id>.json. The date comes
// from the published date, falling back to creation time.
func ObjectKey(content *domain.Content) string {
	at := content.CreatedAt
	if content.PublishedDate != nil {
		at = *content.PublishedDate
	}

	return fmt.Sprintf("%s/%s/%s/%s/%s.json",
		content.Organisation,
		content.SiteID,
		at.Format("2006"),
		at.Format("01"),
		content.ID)
}
