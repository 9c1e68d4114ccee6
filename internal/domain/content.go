// Package domain contains the core domain models for the curator service.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ContentType classifies a piece of curated content
type ContentType string

const (
	ContentTypePost        ContentType = "post"
	ContentTypeEvent       ContentType = "event"
	ContentTypeVideo       ContentType = "video"
	ContentTypePublication ContentType = "publication"
)

// Valid reports whether the content type is one of the known values
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypePost, ContentTypeEvent, ContentTypeVideo, ContentTypePublication:
		return true
	default:
		return false
	}
}

// ContentStatus represents the lifecycle state of a piece of content
type ContentStatus string

const (
	ContentStatusNew       ContentStatus = "new"
	ContentStatusPending   ContentStatus = "pending"
	ContentStatusPublished ContentStatus = "published"
	ContentStatusSkipped   ContentStatus = "skipped"
	ContentStatusArchived  ContentStatus = "archived"
)

// Valid reports whether the content status is one of the known values
func (s ContentStatus) Valid() bool {
	switch s {
	case ContentStatusNew, ContentStatusPending, ContentStatusPublished,
		ContentStatusSkipped, ContentStatusArchived:
		return true
	default:
		return false
	}
}

// Content represents a curated item aggregated from an external source.
// Every item is scoped by organisation code and site ID.
type Content struct {
	ID            uuid.UUID      `db:"id"             json:"id"`
	Organisation  string         `db:"organisation"   json:"organisation"`
	SiteID        string         `db:"site_id"        json:"site_id"`
	Type          ContentType    `db:"content_type"   json:"content_type"`
	Title         string         `db:"title"          json:"title"`
	Summary       string         `db:"summary"        json:"summary"`
	Body          string         `db:"body"           json:"body"`
	URL           string         `db:"url"            json:"url"`
	CanonicalURL  string         `db:"canonical_url"  json:"canonical_url"`
	ImageURL      string         `db:"image_url"      json:"image_url"`
	Author        string         `db:"author"         json:"author"`
	Tags          pq.StringArray `db:"tags"           json:"tags"`
	PublishedDate *time.Time     `db:"published_date" json:"published_date,omitempty"`
	Status        ContentStatus  `db:"status"         json:"status"`
	CreatedAt     time.Time      `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"     json:"updated_at"`
}

// NewContent creates content with validation of required fields.
func NewContent(organisation, siteID string, contentType ContentType, title, url string) (*Content, error) {
	if organisation == "" {
		return nil, fmt.Errorf("%w: organisation is required", ErrInvalidContent)
	}
	if siteID == "" {
		return nil, fmt.Errorf("%w: site_id is required", ErrInvalidContent)
	}
	if !contentType.Valid() {
		return nil, fmt.Errorf("%w: unknown content type %q", ErrInvalidContent, contentType)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidContent)
	}
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidContent)
	}

	now := time.Now()
	return &Content{
		ID:           uuid.New(),
		Organisation: organisation,
		SiteID:       siteID,
		Type:         contentType,
		Title:        title,
		URL:          url,
		Tags:         pq.StringArray{}, // Initialize to empty, never nil
		Status:       ContentStatusNew,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ContentUpdateRequest represents the request payload for updating content
type ContentUpdateRequest struct {
	Title         *string        `binding:"omitempty,min=1,max=512" json:"title"`
	Summary       *string        `json:"summary"`
	Body          *string        `json:"body"`
	CanonicalURL  *string        `json:"canonical_url"`
	ImageURL      *string        `json:"image_url"`
	Author        *string        `json:"author"`
	Tags          []string       `json:"tags"`
	PublishedDate *time.Time     `json:"published_date"`
	Status        *ContentStatus `json:"status"`
}

// Validate validates the content update request
func (r *ContentUpdateRequest) Validate() error {
	if r.Title == nil && r.Summary == nil && r.Body == nil && r.CanonicalURL == nil &&
		r.ImageURL == nil && r.Author == nil && r.Tags == nil &&
		r.PublishedDate == nil && r.Status == nil {
		return ErrNoFieldsToUpdate
	}
	if r.Status != nil && !r.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidContent, *r.Status)
	}
	return nil
}

// ContentFilter represents filter criteria for listing content
type ContentFilter struct {
	Organisation string         `form:"organisation"`
	SiteID       string         `form:"site_id"`
	Type         *ContentType   `form:"type"`
	Status       *ContentStatus `form:"status"`
	Limit        int            `binding:"omitempty,min=1,max=1000" form:"limit"` // Default 100
	Offset       int            `binding:"omitempty,min=0"          form:"offset"`
}
