package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/curator/internal/domain"
)

const (
	sourceSelectList = `id, organisation, site_id, name, kind, content_type, feed_url, page_url,
			item_selector, title_selector, link_selector, date_selector,
			schedule, enabled, created_at, updated_at`

	feedStateSelectList = `source_id, etag, last_modified, last_polled_at, last_item_count,
			error_count, last_error, updated_at`
)

// SourceRepository provides database operations for sources and feed state
type SourceRepository struct {
	db *sqlx.DB
}

// NewSourceRepository creates a new source repository
func NewSourceRepository(db *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// ====================
// Sources
// ====================

// Create creates a new source
func (r *SourceRepository) Create(ctx context.Context, req *domain.SourceCreateRequest) (*domain.Source, error) {
	source := &domain.Source{
		ID:            uuid.New(),
		Organisation:  req.Organisation,
		SiteID:        req.SiteID,
		Name:          req.Name,
		Kind:          req.Kind,
		ContentType:   req.ContentType,
		FeedURL:       req.FeedURL,
		PageURL:       req.PageURL,
		ItemSelector:  req.ItemSelector,
		TitleSelector: req.TitleSelector,
		LinkSelector:  req.LinkSelector,
		DateSelector:  req.DateSelector,
		Schedule:      req.Schedule,
		Enabled:       true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if req.Enabled != nil {
		source.Enabled = *req.Enabled
	}

	if err := source.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO sources (id, organisation, site_id, name, kind, content_type, feed_url, page_url,
			item_selector, title_selector, link_selector, date_selector, schedule, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + sourceSelectList

	err := r.db.QueryRowxContext(
		ctx, query,
		source.ID, source.Organisation, source.SiteID, source.Name, source.Kind, source.ContentType,
		source.FeedURL, source.PageURL, source.ItemSelector, source.TitleSelector,
		source.LinkSelector, source.DateSelector, source.Schedule, source.Enabled,
		source.CreatedAt, source.UpdatedAt,
	).StructScan(source)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create source: %w", err)
	}

	return source, nil
}

// GetByID retrieves a source by ID
func (r *SourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Source, error) {
	source := &domain.Source{}
	query := `SELECT ` + sourceSelectList + ` FROM sources WHERE id = $1`

	err := r.db.GetContext(ctx, source, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return source, nil
}

// List retrieves all sources, optionally scoped to an organisation
func (r *SourceRepository) List(ctx context.Context, organisation string, enabledOnly bool) ([]domain.Source, error) {
	sources := []domain.Source{}
	query := `SELECT ` + sourceSelectList + ` FROM sources WHERE 1=1`
	args := []any{}

	if organisation != "" {
		query += " AND organisation = $1"
		args = append(args, organisation)
	}
	if enabledOnly {
		query += " AND enabled = true"
	}

	query += " ORDER BY name ASC"

	if err := r.db.SelectContext(ctx, &sources, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	return sources, nil
}

// Update updates a source
func (r *SourceRepository) Update(ctx context.Context, id uuid.UUID, req *domain.SourceUpdateRequest) (*domain.Source, error) {
	updates := make(map[string]any)

	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.FeedURL != nil {
		updates["feed_url"] = *req.FeedURL
	}
	if req.PageURL != nil {
		updates["page_url"] = *req.PageURL
	}
	if req.ItemSelector != nil {
		updates["item_selector"] = *req.ItemSelector
	}
	if req.TitleSelector != nil {
		updates["title_selector"] = *req.TitleSelector
	}
	if req.LinkSelector != nil {
		updates["link_selector"] = *req.LinkSelector
	}
	if req.DateSelector != nil {
		updates["date_selector"] = *req.DateSelector
	}
	if req.Schedule != nil {
		updates["schedule"] = *req.Schedule
	}
	if req.Enabled != nil {
		updates["enabled"] = *req.Enabled
	}

	query, args, err := buildUpdateQuery("sources", "id", id, updates, sourceSelectList)
	if err != nil {
		return nil, err
	}

	source := &domain.Source{}
	err = r.db.QueryRowxContext(ctx, query, args...).StructScan(source)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to update source: %w", err)
	}

	return source, nil
}

// Delete deletes a source
func (r *SourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM sources WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
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

// ====================
// Feed state
// ====================

// GetOrCreateFeedState returns the feed state for a source, creating an
// empty row on first poll.
func (r *SourceRepository) GetOrCreateFeedState(ctx context.Context, sourceID uuid.UUID) (*domain.FeedState, error) {
	state := &domain.FeedState{}
	query := `
		INSERT INTO feed_state (source_id, last_item_count, error_count, updated_at)
		VALUES ($1, 0, 0, NOW())
		ON CONFLICT (source_id) DO UPDATE SET source_id = EXCLUDED.source_id
		RETURNING ` + feedStateSelectList

	err := r.db.QueryRowxContext(ctx, query, sourceID).StructScan(state)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create feed state: %w", err)
	}

	return state, nil
}

// UpdateFeedStateSuccess records a successful poll
func (r *SourceRepository) UpdateFeedStateSuccess(ctx context.Context, sourceID uuid.UUID, etag, lastModified *string, itemCount int) error {
	query := `
		UPDATE feed_state
		SET etag = $2,
		    last_modified = $3,
		    last_polled_at = NOW(),
		    last_item_count = $4,
		    error_count = 0,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE source_id = $1`

	result, err := r.db.ExecContext(ctx, query, sourceID, etag, lastModified, itemCount)
	if err != nil {
		return fmt.Errorf("failed to update feed state: %w", err)
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

// UpdateFeedStateError records a failed poll and bumps the error count
func (r *SourceRepository) UpdateFeedStateError(ctx context.Context, sourceID uuid.UUID, errMsg string) error {
	query := `
		UPDATE feed_state
		SET last_polled_at = NOW(),
		    error_count = error_count + 1,
		    last_error = $2,
		    updated_at = NOW()
		WHERE source_id = $1`

	result, err := r.db.ExecContext(ctx, query, sourceID, errMsg)
	if err != nil {
		return fmt.Errorf("failed to update feed state error: %w", err)
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
