// Package channels defines the outbound publishing channels. Every channel
// receives the same outbox entry; the worker fans one entry out to all
// channels enabled for its site.
package channels

import (
	"context"

	"github.com/jonesrussell/curator/internal/domain"
)

// Channel publishes content to one external destination.
type Channel interface {
	// Name identifies the channel in logs, metrics and config.
	Name() string
	// Publish sends one outbox entry to the destination.
	Publish(ctx context.Context, entry *domain.OutboxEntry) error
}
