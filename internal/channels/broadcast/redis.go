// Package broadcast publishes outbox entries to Redis pub/sub channels so
// downstream consumers (site renderers, search indexers) react to new
// content without polling the database.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/logger"
)

// Publisher broadcasts entries on their content-type routing key.
type Publisher struct {
	client *redis.Client
	log    logger.Logger
}

// NewPublisher creates a Redis broadcast channel.
func NewPublisher(client *redis.Client, log logger.Logger) *Publisher {
	return &Publisher{client: client, log: log}
}

// Name implements channels.Channel.
func (p *Publisher) Name() string { return "broadcast" }

// Publish serializes the entry's publish message and sends it on the
// entry's routing key (content:posts, content:events, ...).
func (p *Publisher) Publish(ctx context.Context, entry *domain.OutboxEntry) error {
	payload, err := json.Marshal(entry.ToPublishMessage())
	if err != nil {
		return fmt.Errorf("marshal publish message: %w", err)
	}

	channel := entry.RoutingKey()
	receivers, pubErr := p.client.Publish(ctx, channel, payload).Result()
	if pubErr != nil {
		return fmt.Errorf("publish to %s: %w", channel, pubErr)
	}

	p.log.Debug("entry broadcast",
		logger.String("channel", channel),
		logger.String("content_id", entry.ContentID.String()),
		logger.Int64("receivers", receivers))

	return nil
}
