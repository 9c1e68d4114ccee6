package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/logger"
)

// ContentStore persists content discovered from feeds.
type ContentStore interface {
	Create(ctx context.Context, c *domain.Content) (*domain.Content, error)
	GetByURL(ctx context.Context, organisation, siteID, url string) (*domain.Content, error)
}

// FeedStateStore manages conditional-GET and error bookkeeping per source.
type FeedStateStore interface {
	GetOrCreateFeedState(ctx context.Context, sourceID uuid.UUID) (*domain.FeedState, error)
	UpdateFeedStateSuccess(ctx context.Context, sourceID uuid.UUID, etag, lastModified *string, itemCount int) error
	UpdateFeedStateError(ctx context.Context, sourceID uuid.UUID, errMsg string) error
}

// OutboxEnqueuer enqueues newly ingested content for publishing.
type OutboxEnqueuer interface {
	Enqueue(ctx context.Context, e *domain.OutboxEntry) error
}

// PollStats summarizes a single feed poll.
type PollStats struct {
	ItemsSeen     int  `json:"items_seen"`
	ItemsIngested int  `json:"items_ingested"`
	ItemsSkipped  int  `json:"items_skipped"`
	NotModified   bool `json:"not_modified"`
}

// Poller polls feed sources and ingests new items into the content store.
// Each new item is also enqueued on the outbox for downstream publishing.
type Poller struct {
	fetcher   Fetcher
	content   ContentStore
	feedState FeedStateStore
	outbox    OutboxEnqueuer
	log       logger.Logger
}

// NewPoller creates a feed poller.
func NewPoller(
	fetcher Fetcher,
	content ContentStore,
	feedState FeedStateStore,
	outbox OutboxEnqueuer,
	log logger.Logger,
) *Poller {
	return &Poller{
		fetcher:   fetcher,
		content:   content,
		feedState: feedState,
		outbox:    outbox,
		log:       log,
	}
}

// Poll polls a single feed source. It uses conditional GET headers from the
// previous poll to avoid re-processing unchanged feeds, ingests items whose
// URL is not yet stored, and records success or failure in the feed state.
func (p *Poller) Poll(ctx context.Context, source *domain.Source) (*PollStats, error) {
	if source.Kind != domain.SourceKindFeed {
		return nil, fmt.Errorf("%w: source %s is not a feed", domain.ErrInvalidSource, source.ID)
	}

	state, err := p.feedState.GetOrCreateFeedState(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("poll feed get state: %w", err)
	}

	resp, fetchErr := p.fetcher.Fetch(ctx, source.FeedURL, state.ETag, state.LastModified)
	if fetchErr != nil {
		p.recordError(ctx, source.ID, fetchErr)
		return nil, fmt.Errorf("poll feed fetch: %w", fetchErr)
	}

	if resp.StatusCode == http.StatusNotModified {
		p.log.Debug("feed not modified, skipping",
			logger.String("source_id", source.ID.String()),
			logger.String("feed_url", source.FeedURL))
		return &PollStats{NotModified: true}, nil
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("poll feed: unexpected status %d for %s", resp.StatusCode, source.FeedURL)
		p.recordError(ctx, source.ID, statusErr)
		return nil, statusErr
	}

	return p.processResponse(ctx, source, resp)
}

// processResponse parses the feed body, ingests the discovered items, and
// updates the feed state on success.
func (p *Poller) processResponse(
	ctx context.Context,
	source *domain.Source,
	resp *FetchResponse,
) (*PollStats, error) {
	items, parseErr := Parse(ctx, resp.Body)
	if parseErr != nil {
		p.recordError(ctx, source.ID, parseErr)
		return nil, fmt.Errorf("poll feed parse: %w", parseErr)
	}

	stats := &PollStats{ItemsSeen: len(items)}

	for i := range items {
		ingested, ingestErr := p.ingestItem(ctx, source, &items[i])
		if ingestErr != nil {
			p.log.Error("failed to ingest feed item",
				logger.String("source_id", source.ID.String()),
				logger.String("url", items[i].URL),
				logger.Error(ingestErr))
			stats.ItemsSkipped++
			continue
		}
		if ingested {
			stats.ItemsIngested++
		} else {
			stats.ItemsSkipped++
		}
	}

	if updateErr := p.feedState.UpdateFeedStateSuccess(
		ctx, source.ID, resp.ETag, resp.LastModified, stats.ItemsIngested,
	); updateErr != nil {
		return nil, fmt.Errorf("poll feed update state: %w", updateErr)
	}

	p.log.Info("feed polled",
		logger.String("source_id", source.ID.String()),
		logger.String("feed_url", source.FeedURL),
		logger.Int("items_seen", stats.ItemsSeen),
		logger.Int("items_ingested", stats.ItemsIngested))

	return stats, nil
}

// ingestItem stores one feed item unless its URL is already known. Returns
// true when new content was created and enqueued.
func (p *Poller) ingestItem(ctx context.Context, source *domain.Source, item *Item) (bool, error) {
	_, getErr := p.content.GetByURL(ctx, source.Organisation, source.SiteID, item.URL)
	if getErr == nil {
		return false, nil
	}
	if !errors.Is(getErr, domain.ErrNotFound) {
		return false, fmt.Errorf("ingest lookup: %w", getErr)
	}

	content, buildErr := domain.NewContent(
		source.Organisation, source.SiteID, source.ContentType, item.Title, item.URL,
	)
	if buildErr != nil {
		return false, fmt.Errorf("ingest build content: %w", buildErr)
	}

	content.Summary = item.Summary
	content.Author = item.Author
	content.ImageURL = item.ImageURL
	content.Tags = item.Categories
	content.PublishedDate = item.PublishedAt

	created, createErr := p.content.Create(ctx, content)
	if createErr != nil {
		// A concurrent poll of an overlapping feed may have stored it first
		if errors.Is(createErr, domain.ErrAlreadyExists) {
			return false, nil
		}
		return false, fmt.Errorf("ingest create: %w", createErr)
	}

	entry, entryErr := domain.NewOutboxEntry(created)
	if entryErr != nil {
		return false, fmt.Errorf("ingest build outbox entry: %w", entryErr)
	}

	if enqueueErr := p.outbox.Enqueue(ctx, entry); enqueueErr != nil {
		return false, fmt.Errorf("ingest enqueue: %w", enqueueErr)
	}

	return true, nil
}

// recordError logs and records a feed polling error in the feed state store.
func (p *Poller) recordError(ctx context.Context, sourceID uuid.UUID, originalErr error) {
	p.log.Error("feed poll failed",
		logger.String("source_id", sourceID.String()),
		logger.Error(originalErr))

	if updateErr := p.feedState.UpdateFeedStateError(ctx, sourceID, originalErr.Error()); updateErr != nil {
		p.log.Error("failed to record feed error",
			logger.String("source_id", sourceID.String()),
			logger.Error(updateErr))
	}
}
