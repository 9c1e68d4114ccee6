package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/curator/internal/domain"
)

const (
	snapshotSelectList = `id, source_id, crawled_at`
	alertSelectList    = `id, source_id, kind, item_count, details, resolved, created_at, updated_at`
)

// MonitorRepository stores source snapshots and monitor alerts
type MonitorRepository struct {
	db *sqlx.DB
}

// NewMonitorRepository creates a new monitor repository
func NewMonitorRepository(db *sqlx.DB) *MonitorRepository {
	return &MonitorRepository{db: db}
}

// SaveSnapshot persists a snapshot and its items in one transaction
func (r *MonitorRepository) SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	if snapshot.CrawledAt.IsZero() {
		snapshot.CrawledAt = time.Now()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO source_snapshots (id, source_id, crawled_at) VALUES ($1, $2, $3)`,
		snapshot.ID, snapshot.SourceID, snapshot.CrawledAt,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	for i := range snapshot.Items {
		item := &snapshot.Items[i]
		item.SnapshotID = snapshot.ID
		_, err = tx.ExecContext(ctx,
			`INSERT INTO snapshot_items (snapshot_id, external_key, title, url) VALUES ($1, $2, $3, $4)`,
			item.SnapshotID, item.ExternalKey, item.Title, item.URL,
		)
		if err != nil {
			return fmt.Errorf("insert snapshot item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// GetLatestSnapshot returns the most recent snapshot for a source with its items
func (r *MonitorRepository) GetLatestSnapshot(ctx context.Context, sourceID uuid.UUID) (*domain.Snapshot, error) {
	return r.getSnapshotByOffset(ctx, sourceID, 0)
}

// GetPreviousSnapshot returns the snapshot before the latest for a source.
// The monitor uses it as the look-back window when matching crawled items.
func (r *MonitorRepository) GetPreviousSnapshot(ctx context.Context, sourceID uuid.UUID) (*domain.Snapshot, error) {
	return r.getSnapshotByOffset(ctx, sourceID, 1)
}

func (r *MonitorRepository) getSnapshotByOffset(ctx context.Context, sourceID uuid.UUID, offset int) (*domain.Snapshot, error) {
	snapshot := &domain.Snapshot{}
	query := `SELECT ` + snapshotSelectList + `
		FROM source_snapshots
		WHERE source_id = $1
		ORDER BY crawled_at DESC
		LIMIT 1 OFFSET $2`

	err := r.db.GetContext(ctx, snapshot, query, sourceID, offset)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	items := []domain.SnapshotItem{}
	err = r.db.SelectContext(ctx, &items,
		`SELECT snapshot_id, external_key, title, url FROM snapshot_items WHERE snapshot_id = $1`,
		snapshot.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot items: %w", err)
	}
	snapshot.Items = items

	return snapshot, nil
}

// DeleteOldSnapshots removes snapshots older than the retention window,
// keeping at least the two most recent per source for compare look-back.
func (r *MonitorRepository) DeleteOldSnapshots(ctx context.Context, sourceID uuid.UUID, olderThan time.Duration) (int64, error) {
	query := `
		DELETE FROM source_snapshots
		WHERE source_id = $1
		  AND crawled_at < NOW() - $2::interval
		  AND id NOT IN (
			SELECT id FROM source_snapshots
			WHERE source_id = $1
			ORDER BY crawled_at DESC
			LIMIT 2
		  )`

	result, err := r.db.ExecContext(ctx, query, sourceID, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("delete old snapshots: %w", err)
	}

	return result.RowsAffected()
}

// CreateAlert records a monitor alert
func (r *MonitorRepository) CreateAlert(ctx context.Context, alert *domain.MonitorAlert) (*domain.MonitorAlert, error) {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	now := time.Now()
	alert.CreatedAt = now
	alert.UpdatedAt = now

	query := `
		INSERT INTO monitor_alerts (id, source_id, kind, item_count, details, resolved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + alertSelectList

	created := &domain.MonitorAlert{}
	err := r.db.QueryRowxContext(
		ctx, query,
		alert.ID, alert.SourceID, alert.Kind, alert.ItemCount, alert.Details,
		alert.Resolved, alert.CreatedAt, alert.UpdatedAt,
	).StructScan(created)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	return created, nil
}

// ListAlerts retrieves alerts matching the filter, most recent first
func (r *MonitorRepository) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.MonitorAlert, error) {
	const defaultLimit = 100

	query := `SELECT ` + alertSelectList + ` FROM monitor_alerts WHERE 1=1`
	args := []any{}
	argPos := 1

	if filter.SourceID != nil {
		query += fmt.Sprintf(" AND source_id = $%d", argPos)
		args = append(args, *filter.SourceID)
		argPos++
	}
	if filter.Kind != nil {
		query += fmt.Sprintf(" AND kind = $%d", argPos)
		args = append(args, *filter.Kind)
		argPos++
	}
	if filter.Unresolved {
		query += " AND resolved = false"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, filter.Offset)

	alerts := []domain.MonitorAlert{}
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	return alerts, nil
}

// ResolveAlert marks an alert as resolved
func (r *MonitorRepository) ResolveAlert(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE monitor_alerts SET resolved = true, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
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
