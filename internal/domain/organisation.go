package domain

import "time"

// Organisation is the tenant-level partitioning key for content and configuration
type Organisation struct {
	Code      string    `db:"code"       json:"code"` // e.g., "opsmatters"
	Name      string    `db:"name"       json:"name"`
	Website   string    `db:"website"    json:"website"`
	Enabled   bool      `db:"enabled"    json:"enabled"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Site is a publishing destination scoped under an organisation
type Site struct {
	ID           string    `db:"id"           json:"id"` // e.g., "devops-daily"
	Organisation string    `db:"organisation" json:"organisation"`
	Name         string    `db:"name"         json:"name"`
	Domain       string    `db:"domain"       json:"domain"`
	Enabled      bool      `db:"enabled"      json:"enabled"`
	CreatedAt    time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"   json:"updated_at"`
}

// OrganisationCreateRequest represents the request payload for creating an organisation
type OrganisationCreateRequest struct {
	Code    string `binding:"required,min=1,max=64"  json:"code"`
	Name    string `binding:"required,min=1,max=255" json:"name"`
	Website string `binding:"max=512"                json:"website"`
	Enabled *bool  `json:"enabled"` // Pointer to allow omission (defaults to true)
}

// OrganisationUpdateRequest represents the request payload for updating an organisation
type OrganisationUpdateRequest struct {
	Name    *string `binding:"omitempty,min=1,max=255" json:"name"`
	Website *string `binding:"omitempty,max=512"       json:"website"`
	Enabled *bool   `json:"enabled"`
}

// Validate validates the organisation update request
func (r *OrganisationUpdateRequest) Validate() error {
	if r.Name == nil && r.Website == nil && r.Enabled == nil {
		return ErrNoFieldsToUpdate
	}
	return nil
}

// SiteCreateRequest represents the request payload for creating a site
type SiteCreateRequest struct {
	ID           string `binding:"required,min=1,max=64"  json:"id"`
	Organisation string `binding:"required,min=1,max=64"  json:"organisation"`
	Name         string `binding:"required,min=1,max=255" json:"name"`
	Domain       string `binding:"required,min=1,max=255" json:"domain"`
	Enabled      *bool  `json:"enabled"`
}

// SiteUpdateRequest represents the request payload for updating a site
type SiteUpdateRequest struct {
	Name    *string `binding:"omitempty,min=1,max=255" json:"name"`
	Domain  *string `binding:"omitempty,min=1,max=255" json:"domain"`
	Enabled *bool   `json:"enabled"`
}

// Validate validates the site update request
func (r *SiteUpdateRequest) Validate() error {
	if r.Name == nil && r.Domain == nil && r.Enabled == nil {
		return ErrNoFieldsToUpdate
	}
	return nil
}
