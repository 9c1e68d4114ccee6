// Package dedup tracks recently published content in Redis so a restarted or
// duplicated worker never publishes the same item twice.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/curator/internal/logger"
)

const (
	keyPattern    = "published:content:*"
	scanBatchSize = 100
)

// DefaultTTL is how long published markers are retained.
const DefaultTTL = 30 * 24 * time.Hour

// Tracker records published content IDs in Redis with a TTL.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

// NewTracker creates a dedup tracker. A non-positive TTL gets DefaultTTL.
func NewTracker(client *redis.Client, ttl time.Duration, log logger.Logger) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

func (t *Tracker) key(contentID string) string {
	return fmt.Sprintf("published:content:%s", contentID)
}

// HasPublished reports whether the content was already published. Redis
// errors are logged and treated as "not published" so a cache outage slows
// publishing down to at-least-once instead of stopping it.
func (t *Tracker) HasPublished(ctx context.Context, contentID string) bool {
	exists, err := t.client.Exists(ctx, t.key(contentID)).Result()
	if err != nil {
		t.log.Error("redis error checking published marker",
			logger.String("content_id", contentID),
			logger.Error(err))
		return false
	}
	return exists == 1
}

// MarkPublished records the content as published.
func (t *Tracker) MarkPublished(ctx context.Context, contentID string) error {
	if err := t.client.Set(ctx, t.key(contentID), "1", t.ttl).Err(); err != nil {
		return fmt.Errorf("mark published %s: %w", contentID, err)
	}

	t.log.Debug("content marked published",
		logger.String("content_id", contentID),
		logger.Duration("ttl", t.ttl))
	return nil
}

// Clear removes the published marker for one content item.
func (t *Tracker) Clear(ctx context.Context, contentID string) error {
	if err := t.client.Del(ctx, t.key(contentID)).Err(); err != nil {
		return fmt.Errorf("clear published marker %s: %w", contentID, err)
	}
	return nil
}

// FlushAll removes every published marker. It scans for the marker pattern
// rather than flushing the database, which may hold other keys.
func (t *Tracker) FlushAll(ctx context.Context) (int, error) {
	var cursor uint64
	deleted := 0

	for {
		keys, next, err := t.client.Scan(ctx, cursor, keyPattern, scanBatchSize).Result()
		if err != nil {
			return deleted, fmt.Errorf("scan published markers: %w", err)
		}

		if len(keys) > 0 {
			if delErr := t.client.Del(ctx, keys...).Err(); delErr != nil {
				return deleted, fmt.Errorf("delete published markers: %w", delErr)
			}
			deleted += len(keys)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	t.log.Info("published markers flushed", logger.Int("deleted", deleted))
	return deleted, nil
}
