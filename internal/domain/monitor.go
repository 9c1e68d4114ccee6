package domain

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot captures the items visible on a source at crawl time.
// The monitor compares consecutive snapshots against stored content
// to detect drift (new or missing items).
type Snapshot struct {
	ID        uuid.UUID      `db:"id"         json:"id"`
	SourceID  uuid.UUID      `db:"source_id"  json:"source_id"`
	CrawledAt time.Time      `db:"crawled_at" json:"crawled_at"`
	Items     []SnapshotItem `db:"-"          json:"items"`
}

// SnapshotItem is a single item observed during a snapshot crawl
type SnapshotItem struct {
	SnapshotID  uuid.UUID `db:"snapshot_id"  json:"-"`
	ExternalKey string    `db:"external_key" json:"external_key"` // provider id or URL
	Title       string    `db:"title"        json:"title"`
	URL         string    `db:"url"          json:"url"`
}

// AlertKind classifies a monitor alert
type AlertKind string

const (
	AlertKindNewItems     AlertKind = "new_items"
	AlertKindMissingItems AlertKind = "missing_items"
	AlertKindSourceError  AlertKind = "source_error"
)

// MonitorAlert records a detected divergence between a source and stored content
type MonitorAlert struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	SourceID  uuid.UUID `db:"source_id"  json:"source_id"`
	Kind      AlertKind `db:"kind"       json:"kind"`
	ItemCount int       `db:"item_count" json:"item_count"`
	Details   []byte    `db:"details"    json:"-"` // JSON payload of affected items
	Resolved  bool      `db:"resolved"   json:"resolved"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AlertFilter represents filter criteria for listing monitor alerts
type AlertFilter struct {
	SourceID   *uuid.UUID `form:"source_id"`
	Kind       *AlertKind `form:"kind"`
	Unresolved bool       `form:"unresolved"`
	Limit      int        `binding:"omitempty,min=1,max=1000" form:"limit"`
	Offset     int        `binding:"omitempty,min=0"          form:"offset"`
}
