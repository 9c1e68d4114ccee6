package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/curator/internal/database"
	"github.com/jonesrussell/curator/internal/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "failed to create sqlmock")
	t.Cleanup(func() { db.Close() })

	return sqlx.NewDb(db, "sqlmock"), mock
}

var contentColumns = []string{
	"id", "organisation", "site_id", "content_type", "title", "summary", "body",
	"url", "canonical_url", "image_url", "author", "tags", "published_date",
	"status", "created_at", "updated_at",
}

func contentRow(c *domain.Content) *sqlmock.Rows {
	return sqlmock.NewRows(contentColumns).AddRow(
		c.ID, c.Organisation, c.SiteID, c.Type, c.Title, c.Summary, c.Body,
		c.URL, c.CanonicalURL, c.ImageURL, c.Author, c.Tags, c.PublishedDate,
		c.Status, c.CreatedAt, c.UpdatedAt,
	)
}

func TestContentRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewContentRepository(db)
	ctx := context.Background()

	content, err := domain.NewContent("opsmatters", "devops-daily", domain.ContentTypePost,
		"Kubernetes 1.30 Released", "https://example.com/k8s-130")
	require.NoError(t, err)

	t.Run("creates content", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO content").
			WillReturnRows(contentRow(content))

		created, createErr := repo.Create(ctx, content)
		require.NoError(t, createErr)
		assert.Equal(t, content.ID, created.ID)
		assert.Equal(t, domain.ContentStatusNew, created.Status)
	})

	t.Run("duplicate url returns ErrAlreadyExists", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO content").
			WillReturnError(&pq.Error{Code: "23505"})

		_, createErr := repo.Create(ctx, content)
		assert.ErrorIs(t, createErr, domain.ErrAlreadyExists)
	})
}

func TestContentRepository_GetByURL(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewContentRepository(db)
	ctx := context.Background()

	content, err := domain.NewContent("opsmatters", "devops-daily", domain.ContentTypeVideo,
		"Intro to OpenTelemetry", "https://example.com/otel-intro")
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM content").
			WithArgs("opsmatters", "devops-daily", content.URL).
			WillReturnRows(contentRow(content))

		got, getErr := repo.GetByURL(ctx, "opsmatters", "devops-daily", content.URL)
		require.NoError(t, getErr)
		assert.Equal(t, content.Title, got.Title)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM content").
			WithArgs("opsmatters", "devops-daily", "https://example.com/missing").
			WillReturnRows(sqlmock.NewRows(contentColumns))

		_, getErr := repo.GetByURL(ctx, "opsmatters", "devops-daily", "https://example.com/missing")
		assert.ErrorIs(t, getErr, domain.ErrNotFound)
	})
}

func TestContentRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewContentRepository(db)
	ctx := context.Background()

	now := time.Now()
	rows := sqlmock.NewRows(contentColumns).
		AddRow(uuid.New(), "opsmatters", "devops-daily", "post", "First", "", "",
			"https://example.com/1", "", "", "", pq.StringArray{}, nil, "new", now, now).
		AddRow(uuid.New(), "opsmatters", "devops-daily", "post", "Second", "", "",
			"https://example.com/2", "", "", "", pq.StringArray{}, nil, "published", now, now)

	mock.ExpectQuery("SELECT (.+) FROM content").WillReturnRows(rows)

	contentType := domain.ContentTypePost
	list, err := repo.List(ctx, domain.ContentFilter{
		Organisation: "opsmatters",
		SiteID:       "devops-daily",
		Type:         &contentType,
	})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, "First", list[0].Title)
}

func TestContentRepository_UpdateStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewContentRepository(db)
	ctx := context.Background()
	id := uuid.New()

	t.Run("updates status", func(t *testing.T) {
		mock.ExpectExec("UPDATE content SET status").
			WithArgs(id, domain.ContentStatusPublished).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateStatus(ctx, id, domain.ContentStatusPublished)
		assert.NoError(t, err)
	})

	t.Run("missing content returns ErrNotFound", func(t *testing.T) {
		mock.ExpectExec("UPDATE content SET status").
			WithArgs(id, domain.ContentStatusSkipped).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateStatus(ctx, id, domain.ContentStatusSkipped)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestContentRepository_Update_NoFields(t *testing.T) {
	db, _ := newMockDB(t)
	repo := database.NewContentRepository(db)

	_, err := repo.Update(context.Background(), uuid.New(), &domain.ContentUpdateRequest{})
	assert.ErrorIs(t, err, domain.ErrNoFieldsToUpdate)
}

func TestContentRepository_ListRecentKeys(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewContentRepository(db)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"id", "title", "url"}).
		AddRow(uuid.New(), "Older Post", "https://example.com/old").
		AddRow(uuid.New(), "Newer Post", "https://example.com/new")

	mock.ExpectQuery("SELECT id, title, url").
		WithArgs("opsmatters", "devops-daily", domain.ContentTypePost, 50).
		WillReturnRows(rows)

	keys, err := repo.ListRecentKeys(ctx, "opsmatters", "devops-daily", domain.ContentTypePost, 50)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}
