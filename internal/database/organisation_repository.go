package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/curator/internal/domain"
)

const (
	organisationSelectList = `code, name, website, enabled, created_at, updated_at`
	siteSelectList         = `id, organisation, name, domain, enabled, created_at, updated_at`

	whereEnabledTrue = " WHERE enabled = true"
)

// OrganisationRepository provides database operations for organisations and sites
type OrganisationRepository struct {
	db *sqlx.DB
}

// NewOrganisationRepository creates a new organisation repository
func NewOrganisationRepository(db *sqlx.DB) *OrganisationRepository {
	return &OrganisationRepository{db: db}
}

// ====================
// Organisations
// ====================

// CreateOrganisation creates a new organisation
func (r *OrganisationRepository) CreateOrganisation(ctx context.Context, req *domain.OrganisationCreateRequest) (*domain.Organisation, error) {
	org := &domain.Organisation{
		Code:      req.Code,
		Name:      req.Name,
		Website:   req.Website,
		Enabled:   true, // Default to true
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if req.Enabled != nil {
		org.Enabled = *req.Enabled
	}

	query := `
		INSERT INTO organisations (code, name, website, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + organisationSelectList

	err := r.db.QueryRowxContext(
		ctx, query,
		org.Code, org.Name, org.Website, org.Enabled, org.CreatedAt, org.UpdatedAt,
	).StructScan(org)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create organisation: %w", err)
	}

	return org, nil
}

// GetOrganisation retrieves an organisation by code
func (r *OrganisationRepository) GetOrganisation(ctx context.Context, code string) (*domain.Organisation, error) {
	org := &domain.Organisation{}
	query := `SELECT ` + organisationSelectList + ` FROM organisations WHERE code = $1`

	err := r.db.GetContext(ctx, org, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get organisation: %w", err)
	}

	return org, nil
}

// ListOrganisations retrieves all organisations
func (r *OrganisationRepository) ListOrganisations(ctx context.Context, enabledOnly bool) ([]domain.Organisation, error) {
	orgs := []domain.Organisation{}
	query := `SELECT ` + organisationSelectList + ` FROM organisations`

	if enabledOnly {
		query += whereEnabledTrue
	}

	query += " ORDER BY code ASC"

	if err := r.db.SelectContext(ctx, &orgs, query); err != nil {
		return nil, fmt.Errorf("failed to list organisations: %w", err)
	}

	return orgs, nil
}

// UpdateOrganisation updates an organisation
func (r *OrganisationRepository) UpdateOrganisation(ctx context.Context, code string, req *domain.OrganisationUpdateRequest) (*domain.Organisation, error) {
	updates := make(map[string]any)

	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Website != nil {
		updates["website"] = *req.Website
	}
	if req.Enabled != nil {
		updates["enabled"] = *req.Enabled
	}

	query, args, err := buildUpdateQuery("organisations", "code", code, updates, organisationSelectList)
	if err != nil {
		return nil, err
	}

	org := &domain.Organisation{}
	err = r.db.QueryRowxContext(ctx, query, args...).StructScan(org)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update organisation: %w", err)
	}

	return org, nil
}

// DeleteOrganisation deletes an organisation
func (r *OrganisationRepository) DeleteOrganisation(ctx context.Context, code string) error {
	query := `DELETE FROM organisations WHERE code = $1`
	result, err := r.db.ExecContext(ctx, query, code)
	if err != nil {
		return fmt.Errorf("failed to delete organisation: %w", err)
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
// Sites
// ====================

// CreateSite creates a new site
func (r *OrganisationRepository) CreateSite(ctx context.Context, req *domain.SiteCreateRequest) (*domain.Site, error) {
	site := &domain.Site{
		ID:           req.ID,
		Organisation: req.Organisation,
		Name:         req.Name,
		Domain:       req.Domain,
		Enabled:      true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if req.Enabled != nil {
		site.Enabled = *req.Enabled
	}

	query := `
		INSERT INTO sites (id, organisation, name, domain, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + siteSelectList

	err := r.db.QueryRowxContext(
		ctx, query,
		site.ID, site.Organisation, site.Name, site.Domain, site.Enabled, site.CreatedAt, site.UpdatedAt,
	).StructScan(site)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create site: %w", err)
	}

	return site, nil
}

// GetSite retrieves a site by ID
func (r *OrganisationRepository) GetSite(ctx context.Context, id string) (*domain.Site, error) {
	site := &domain.Site{}
	query := `SELECT ` + siteSelectList + ` FROM sites WHERE id = $1`

	err := r.db.GetContext(ctx, site, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get site: %w", err)
	}

	return site, nil
}

// ListSites retrieves all sites, optionally scoped to an organisation
func (r *OrganisationRepository) ListSites(ctx context.Context, organisation string, enabledOnly bool) ([]domain.Site, error) {
	sites := []domain.Site{}
	query := `SELECT ` + siteSelectList + ` FROM sites WHERE 1=1`
	args := []any{}

	if organisation != "" {
		query += " AND organisation = $1"
		args = append(args, organisation)
	}
	if enabledOnly {
		query += " AND enabled = true"
	}

	query += " ORDER BY id ASC"

	if err := r.db.SelectContext(ctx, &sites, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}

	return sites, nil
}

// UpdateSite updates a site
func (r *OrganisationRepository) UpdateSite(ctx context.Context, id string, req *domain.SiteUpdateRequest) (*domain.Site, error) {
	updates := make(map[string]any)

	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Domain != nil {
		updates["domain"] = *req.Domain
	}
	if req.Enabled != nil {
		updates["enabled"] = *req.Enabled
	}

	query, args, err := buildUpdateQuery("sites", "id", id, updates, siteSelectList)
	if err != nil {
		return nil, err
	}

	site := &domain.Site{}
	err = r.db.QueryRowxContext(ctx, query, args...).StructScan(site)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update site: %w", err)
	}

	return site, nil
}

// DeleteSite deletes a site
func (r *OrganisationRepository) DeleteSite(ctx context.Context, id string) error {
	query := `DELETE FROM sites WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
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
