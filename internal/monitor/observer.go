package monitor

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/feed"
	"github.com/jonesrussell/curator/internal/teasers"
)

// Observer observes what a source currently publishes.
type Observer interface {
	Observe(ctx context.Context, source *domain.Source) ([]domain.SnapshotItem, error)
}

// SourceObserver observes feed sources by fetching and parsing the feed, and
// page sources through the teaser provider. Going through the provider shares
// its cache, so a monitor pass does not re-crawl pages the API served
// recently, and keeps crawl accounting in one place.
type SourceObserver struct {
	fetcher feed.Fetcher
	teasers *teasers.Provider
}

// NewSourceObserver creates an observer over both source kinds.
func NewSourceObserver(fetcher feed.Fetcher, provider *teasers.Provider) *SourceObserver {
	return &SourceObserver{
		fetcher: fetcher,
		teasers: provider,
	}
}

// Observe returns the items currently visible on the source. The external
// key of every item is its URL.
func (o *SourceObserver) Observe(ctx context.Context, source *domain.Source) ([]domain.SnapshotItem, error) {
	switch source.Kind {
	case domain.SourceKindFeed:
		return o.observeFeed(ctx, source)
	case domain.SourceKindPage:
		return o.observePage(ctx, source)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidSource, source.Kind)
	}
}

// observeFeed fetches the full feed unconditionally. The monitor needs the
// complete current item list, so conditional GET state is not used here.
func (o *SourceObserver) observeFeed(ctx context.Context, source *domain.Source) ([]domain.SnapshotItem, error) {
	resp, err := o.fetcher.Fetch(ctx, source.FeedURL, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("observe feed fetch: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("observe feed: unexpected status %d for %s", resp.StatusCode, source.FeedURL)
	}

	items, parseErr := feed.Parse(ctx, resp.Body)
	if parseErr != nil {
		return nil, fmt.Errorf("observe feed parse: %w", parseErr)
	}

	observed := make([]domain.SnapshotItem, 0, len(items))
	for _, item := range items {
		observed = append(observed, domain.SnapshotItem{
			ExternalKey: item.URL,
			Title:       item.Title,
			URL:         item.URL,
		})
	}
	return observed, nil
}

func (o *SourceObserver) observePage(ctx context.Context, source *domain.Source) ([]domain.SnapshotItem, error) {
	list, err := o.teasers.Observe(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("observe page crawl: %w", err)
	}

	observed := make([]domain.SnapshotItem, 0, len(list))
	for _, teaser := range list {
		observed = append(observed, domain.SnapshotItem{
			ExternalKey: teaser.URL,
			Title:       teaser.Title,
			URL:         teaser.URL,
		})
	}
	return observed, nil
}
