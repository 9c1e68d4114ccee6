package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/curator/internal/domain"
)

const contentSelectList = `id, organisation, site_id, content_type, title, summary, body,
			url, canonical_url, image_url, author, tags, published_date,
			status, created_at, updated_at`

const pqUniqueViolation = "23505"

// ContentRepository provides database operations for curated content
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository creates a new content repository
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Create inserts new content. A duplicate (organisation, site_id, url)
// returns domain.ErrAlreadyExists.
func (r *ContentRepository) Create(ctx context.Context, c *domain.Content) (*domain.Content, error) {
	query := `
		INSERT INTO content (id, organisation, site_id, content_type, title, summary, body,
			url, canonical_url, image_url, author, tags, published_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + contentSelectList

	created := &domain.Content{}
	err := r.db.QueryRowxContext(
		ctx, query,
		c.ID, c.Organisation, c.SiteID, c.Type, c.Title, c.Summary, c.Body,
		c.URL, c.CanonicalURL, c.ImageURL, c.Author, c.Tags, c.PublishedDate,
		c.Status, c.CreatedAt, c.UpdatedAt,
	).StructScan(created)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create content: %w", err)
	}

	return created, nil
}

// GetByID retrieves content by ID
func (r *ContentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Content, error) {
	content := &domain.Content{}
	query := `SELECT ` + contentSelectList + ` FROM content WHERE id = $1`

	err := r.db.GetContext(ctx, content, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get content: %w", err)
	}

	return content, nil
}

// GetByURL retrieves content by its dedup key (organisation, site, url)
func (r *ContentRepository) GetByURL(ctx context.Context, organisation, siteID, url string) (*domain.Content, error) {
	content := &domain.Content{}
	query := `SELECT ` + contentSelectList + `
		FROM content
		WHERE organisation = $1 AND site_id = $2 AND url = $3`

	err := r.db.GetContext(ctx, content, query, organisation, siteID, url)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get content by url: %w", err)
	}

	return content, nil
}

// List retrieves content matching the filter, most recent first
func (r *ContentRepository) List(ctx context.Context, filter domain.ContentFilter) ([]domain.Content, error) {
	const defaultLimit = 100

	query := `SELECT ` + contentSelectList + ` FROM content WHERE 1=1`
	args := []any{}
	argPos := 1

	if filter.Organisation != "" {
		query += fmt.Sprintf(" AND organisation = $%d", argPos)
		args = append(args, filter.Organisation)
		argPos++
	}
	if filter.SiteID != "" {
		query += fmt.Sprintf(" AND site_id = $%d", argPos)
		args = append(args, filter.SiteID)
		argPos++
	}
	if filter.Type != nil {
		query += fmt.Sprintf(" AND content_type = $%d", argPos)
		args = append(args, *filter.Type)
		argPos++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, *filter.Status)
		argPos++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, filter.Offset)

	contents := []domain.Content{}
	if err := r.db.SelectContext(ctx, &contents, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}

	return contents, nil
}

// Update applies a partial update to content
func (r *ContentRepository) Update(ctx context.Context, id uuid.UUID, req *domain.ContentUpdateRequest) (*domain.Content, error) {
	updates := make(map[string]any)

	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Summary != nil {
		updates["summary"] = *req.Summary
	}
	if req.Body != nil {
		updates["body"] = *req.Body
	}
	if req.CanonicalURL != nil {
		updates["canonical_url"] = *req.CanonicalURL
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}
	if req.Author != nil {
		updates["author"] = *req.Author
	}
	if req.Tags != nil {
		updates["tags"] = pq.StringArray(req.Tags)
	}
	if req.PublishedDate != nil {
		updates["published_date"] = *req.PublishedDate
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}

	query, args, err := buildUpdateQuery("content", "id", id, updates, contentSelectList)
	if err != nil {
		return nil, err
	}

	content := &domain.Content{}
	err = r.db.QueryRowxContext(ctx, query, args...).StructScan(content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to update content: %w", err)
	}

	return content, nil
}

// UpdateStatus transitions content to the given status
func (r *ContentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ContentStatus) error {
	query := `UPDATE content SET status = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update content status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Delete deletes content
func (r *ContentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM content WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// ContentKey is the lightweight identity of stored content used by the
// monitor compare (URL plus normalized title).
type ContentKey struct {
	ID    uuid.UUID `db:"id"    json:"id"`
	Title string    `db:"title" json:"title"`
	URL   string    `db:"url"   json:"url"`
}

// ListRecentKeys returns the identity keys of the most recent content for a
// source's organisation/site/type, newest first. The monitor compares crawled
// snapshots against this window.
func (r *ContentRepository) ListRecentKeys(ctx context.Context, organisation, siteID string, contentType domain.ContentType, limit int) ([]ContentKey, error) {
	keys := []ContentKey{}
	query := `
		SELECT id, title, url
		FROM content
		WHERE organisation = $1 AND site_id = $2 AND content_type = $3
		ORDER BY created_at DESC
		LIMIT $4`

	if err := r.db.SelectContext(ctx, &keys, query, organisation, siteID, contentType, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent content keys: %w", err)
	}

	return keys, nil
}
