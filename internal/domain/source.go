package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SourceKind determines how a source is polled
type SourceKind string

const (
	// SourceKindFeed sources are polled as RSS/Atom feeds
	SourceKindFeed SourceKind = "feed"
	// SourceKindPage sources are crawled as HTML listing pages
	SourceKindPage SourceKind = "page"
)

// Source represents an external content provider to aggregate from
type Source struct {
	ID           uuid.UUID   `db:"id"           json:"id"`
	Organisation string      `db:"organisation" json:"organisation"`
	SiteID       string      `db:"site_id"      json:"site_id"`
	Name         string      `db:"name"         json:"name"`
	Kind         SourceKind  `db:"kind"         json:"kind"`
	ContentType  ContentType `db:"content_type" json:"content_type"`
	FeedURL      string      `db:"feed_url"     json:"feed_url"`
	PageURL      string      `db:"page_url"     json:"page_url"`
	// CSS selectors used by the page crawler
	ItemSelector  string    `db:"item_selector"  json:"item_selector"`
	TitleSelector string    `db:"title_selector" json:"title_selector"`
	LinkSelector  string    `db:"link_selector"  json:"link_selector"`
	DateSelector  string    `db:"date_selector"  json:"date_selector"`
	Schedule      string    `db:"schedule"       json:"schedule"` // cron expression
	Enabled       bool      `db:"enabled"        json:"enabled"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"     json:"updated_at"`
}

// Validate checks that the source definition is usable for its kind
func (s *Source) Validate() error {
	if s.Organisation == "" {
		return fmt.Errorf("%w: organisation is required", ErrInvalidSource)
	}
	if s.SiteID == "" {
		return fmt.Errorf("%w: site_id is required", ErrInvalidSource)
	}
	if !s.ContentType.Valid() {
		return fmt.Errorf("%w: unknown content type %q", ErrInvalidSource, s.ContentType)
	}
	switch s.Kind {
	case SourceKindFeed:
		if s.FeedURL == "" {
			return fmt.Errorf("%w: feed_url is required for feed sources", ErrInvalidSource)
		}
	case SourceKindPage:
		if s.PageURL == "" {
			return fmt.Errorf("%w: page_url is required for page sources", ErrInvalidSource)
		}
		if s.ItemSelector == "" {
			return fmt.Errorf("%w: item_selector is required for page sources", ErrInvalidSource)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSource, s.Kind)
	}
	return nil
}

// SourceCreateRequest represents the request payload for creating a source
type SourceCreateRequest struct {
	Organisation  string      `binding:"required,min=1,max=64"  json:"organisation"`
	SiteID        string      `binding:"required,min=1,max=64"  json:"site_id"`
	Name          string      `binding:"required,min=1,max=255" json:"name"`
	Kind          SourceKind  `binding:"required"               json:"kind"`
	ContentType   ContentType `binding:"required"               json:"content_type"`
	FeedURL       string      `binding:"max=1024"               json:"feed_url"`
	PageURL       string      `binding:"max=1024"               json:"page_url"`
	ItemSelector  string      `binding:"max=255"                json:"item_selector"`
	TitleSelector string      `binding:"max=255"                json:"title_selector"`
	LinkSelector  string      `binding:"max=255"                json:"link_selector"`
	DateSelector  string      `binding:"max=255"                json:"date_selector"`
	Schedule      string      `binding:"max=64"                 json:"schedule"`
	Enabled       *bool       `json:"enabled"`
}

// SourceUpdateRequest represents the request payload for updating a source
type SourceUpdateRequest struct {
	Name          *string `binding:"omitempty,min=1,max=255" json:"name"`
	FeedURL       *string `binding:"omitempty,max=1024"      json:"feed_url"`
	PageURL       *string `binding:"omitempty,max=1024"      json:"page_url"`
	ItemSelector  *string `binding:"omitempty,max=255"       json:"item_selector"`
	TitleSelector *string `binding:"omitempty,max=255"       json:"title_selector"`
	LinkSelector  *string `binding:"omitempty,max=255"       json:"link_selector"`
	DateSelector  *string `binding:"omitempty,max=255"       json:"date_selector"`
	Schedule      *string `binding:"omitempty,max=64"        json:"schedule"`
	Enabled       *bool   `json:"enabled"`
}

// Validate validates the source update request
func (r *SourceUpdateRequest) Validate() error {
	if r.Name == nil && r.FeedURL == nil && r.PageURL == nil && r.ItemSelector == nil &&
		r.TitleSelector == nil && r.LinkSelector == nil && r.DateSelector == nil &&
		r.Schedule == nil && r.Enabled == nil {
		return ErrNoFieldsToUpdate
	}
	return nil
}

// FeedState tracks conditional-GET and error bookkeeping for a feed source
type FeedState struct {
	SourceID      uuid.UUID  `db:"source_id"       json:"source_id"`
	ETag          *string    `db:"etag"            json:"etag,omitempty"`
	LastModified  *string    `db:"last_modified"   json:"last_modified,omitempty"`
	LastPolledAt  *time.Time `db:"last_polled_at"  json:"last_polled_at,omitempty"`
	LastItemCount int        `db:"last_item_count" json:"last_item_count"`
	ErrorCount    int        `db:"error_count"     json:"error_count"`
	LastError     *string    `db:"last_error"      json:"last_error,omitempty"`
	UpdatedAt     time.Time  `db:"updated_at"      json:"updated_at"`
}

// Teaser is a lightweight crawled item before full content ingestion
type Teaser struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	ImageURL    string     `json:"image_url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}
