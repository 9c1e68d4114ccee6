package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus represents the state of an outbox entry
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusPublishing OutboxStatus = "publishing"
	OutboxStatusPublished  OutboxStatus = "published"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxEntry represents a piece of content awaiting distribution to
// external channels. It carries a denormalized copy of the content so the
// distribution worker never re-reads the content table mid-flight.
type OutboxEntry struct {
	ID            string       `db:"id"             json:"id"`
	ContentID     uuid.UUID    `db:"content_id"     json:"content_id"`
	Organisation  string       `db:"organisation"   json:"organisation"`
	SiteID        string       `db:"site_id"        json:"site_id"`
	ContentType   ContentType  `db:"content_type"   json:"content_type"`
	Title         string       `db:"title"          json:"title"`
	Summary       string       `db:"summary"        json:"summary"`
	Body          string       `db:"body"           json:"body"`
	URL           string       `db:"url"            json:"url"`
	ImageURL      string       `db:"image_url"      json:"image_url"`
	PublishedDate *time.Time   `db:"published_date" json:"published_date,omitempty"`
	Status        OutboxStatus `db:"status"         json:"status"`
	RetryCount    int          `db:"retry_count"    json:"retry_count"`
	MaxRetries    int          `db:"max_retries"    json:"max_retries"`
	ErrorMessage  *string      `db:"error_message"  json:"error_message,omitempty"`
	CreatedAt     time.Time    `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"     json:"updated_at"`
	PublishedAt   *time.Time   `db:"published_at"   json:"published_at,omitempty"`
	NextRetryAt   *time.Time   `db:"next_retry_at"  json:"next_retry_at,omitempty"`
}

const defaultOutboxMaxRetries = 5

// NewOutboxEntry creates a new outbox entry from content with validation.
func NewOutboxEntry(c *Content) (*OutboxEntry, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidOutboxEntry)
	}
	if c.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: content_id is required", ErrInvalidOutboxEntry)
	}
	if c.Organisation == "" {
		return nil, fmt.Errorf("%w: organisation is required", ErrInvalidOutboxEntry)
	}
	if c.SiteID == "" {
		return nil, fmt.Errorf("%w: site_id is required", ErrInvalidOutboxEntry)
	}

	now := time.Now()
	return &OutboxEntry{
		ID:            uuid.NewString(),
		ContentID:     c.ID,
		Organisation:  c.Organisation,
		SiteID:        c.SiteID,
		ContentType:   c.Type,
		Title:         c.Title,
		Summary:       c.Summary,
		Body:          c.Body,
		URL:           c.URL,
		ImageURL:      c.ImageURL,
		PublishedDate: c.PublishedDate,
		Status:        OutboxStatusPending,
		MaxRetries:    defaultOutboxMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// RoutingKey returns the redis channel for this entry based on content type
func (o *OutboxEntry) RoutingKey() string {
	switch o.ContentType {
	case ContentTypePost:
		return "content:posts"
	case ContentTypeEvent:
		return "content:events"
	case ContentTypeVideo:
		return "content:videos"
	case ContentTypePublication:
		return "content:publications"
	default:
		return "content:other"
	}
}

// ShouldRetry returns true if the entry can be retried
func (o *OutboxEntry) ShouldRetry() bool {
	return o.RetryCount < o.MaxRetries
}

// IsExhausted returns true if all retries have been exhausted
func (o *OutboxEntry) IsExhausted() bool {
	return o.RetryCount >= o.MaxRetries
}

// ToPublishMessage converts the entry to the redis pub/sub message format
func (o *OutboxEntry) ToPublishMessage() map[string]any {
	return map[string]any{
		"id":             o.ContentID.String(),
		"organisation":   o.Organisation,
		"site_id":        o.SiteID,
		"content_type":   o.ContentType,
		"title":          o.Title,
		"summary":        o.Summary,
		"url":            o.URL,
		"image_url":      o.ImageURL,
		"published_date": o.PublishedDate,
		"curator": map[string]any{
			"outbox_id":    o.ID,
			"published_at": time.Now().UTC().Format(time.RFC3339),
			"channel":      o.RoutingKey(),
		},
	}
}

// OutboxStats holds outbox statistics for monitoring
type OutboxStats struct {
	Pending              int64   `json:"pending"`
	Publishing           int64   `json:"publishing"`
	Published            int64   `json:"published"`
	FailedRetryable      int64   `json:"failed_retryable"`
	FailedExhausted      int64   `json:"failed_exhausted"`
	AvgPublishLagSeconds float64 `json:"avg_publish_lag_seconds"`
}
