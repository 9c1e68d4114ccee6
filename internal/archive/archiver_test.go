package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/logger"
)

type fakePutter struct {
	bucket string
	key    string
	body   []byte
	opts   miniogo.PutObjectOptions
	err    error
	calls  int
}

func (f *fakePutter) PutObject(_ context.Context, bucket, key string, reader *bytes.Reader, _ int64, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error) {
	f.calls++
	if f.err != nil {
		return miniogo.UploadInfo{}, f.err
	}
	f.bucket = bucket
	f.key = key
	f.opts = opts
	f.body, _ = io.ReadAll(reader)
	return miniogo.UploadInfo{Bucket: bucket, Key: key}, nil
}

func archivedContent(t *testing.T) *domain.Content {
	t.Helper()

	content, err := domain.NewContent("opsmatters", "devops-daily", domain.ContentTypePost,
		"Kubernetes 1.30 Released", "https://example.com/k8s-130")
	require.NoError(t, err)

	published := time.Date(2026, 8, 17, 10, 0, 0, 0, time.UTC)
	content.PublishedDate = &published
	return content
}

func TestArchiver_Archive(t *testing.T) {
	putter := &fakePutter{}
	archiver := newArchiverWithPutter(putter, "curator-archive", logger.NewNop())

	content := archivedContent(t)
	require.NoError(t, archiver.Archive(context.Background(), content))

	assert.Equal(t, "curator-archive", putter.bucket)
	assert.Equal(t, "opsmatters/devops-daily/2026/08/"+content.ID.String()+".json", putter.key)
	assert.Equal(t, "application/json", putter.opts.ContentType)
	assert.Equal(t, "opsmatters", putter.opts.UserMetadata["organisation"])

	var stored domain.Content
	require.NoError(t, json.Unmarshal(putter.body, &stored))
	assert.Equal(t, content.Title, stored.Title)
}

func TestArchiver_Archive_Disabled(t *testing.T) {
	archiver, err := NewArchiver(Config{Enabled: false}, logger.NewNop())
	require.NoError(t, err)

	assert.NoError(t, archiver.Archive(context.Background(), archivedContent(t)))
}

func TestArchiver_Archive_UploadError(t *testing.T) {
	putter := &fakePutter{err: errors.New("bucket gone")}
	archiver := newArchiverWithPutter(putter, "curator-archive", logger.NewNop())

	err := archiver.Archive(context.Background(), archivedContent(t))
	assert.Error(t, err)
}

func TestObjectKey_FallsBackToCreatedAt(t *testing.T) {
	content := archivedContent(t)
	content.PublishedDate = nil
	content.CreatedAt = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	key := ObjectKey(content)
	assert.Contains(t, key, "/2025/01/")
}

func TestNewArchiver_Validation(t *testing.T) {
	_, err := NewArchiver(Config{Enabled: true}, logger.NewNop())
	assert.Error(t, err, "endpoint required when enabled")

	_, err = NewArchiver(Config{Enabled: true, Endpoint: "localhost:9000"}, logger.NewNop())
	assert.Error(t, err, "bucket required when enabled")
}
