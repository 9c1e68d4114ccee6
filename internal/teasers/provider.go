package teasers

import (
	"context"

	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/metrics"
)

// PageCrawler crawls a listing page into teasers.
type PageCrawler interface {
	Crawl(ctx context.Context, source *domain.Source) ([]domain.Teaser, error)
}

// Provider serves teaser lists for page sources, crawling on cache misses.
type Provider struct {
	crawler PageCrawler
	cache   *Cache
	metrics *metrics.Metrics
}

// NewProvider creates a cached teaser provider
func NewProvider(crawler PageCrawler, cache *Cache, m *metrics.Metrics) *Provider {
	return &Provider{crawler: crawler, cache: cache, metrics: m}
}

// Observe returns the teaser list for a source, from cache while fresh.
// Cache hits are not counted as crawls.
func (p *Provider) Observe(ctx context.Context, source *domain.Source) ([]domain.Teaser, error) {
	if items, ok := p.cache.Get(source.ID); ok {
		return items, nil
	}

	items, err := p.crawler.Crawl(ctx, source)
	if err != nil {
		p.recordCrawl("error")
		return nil, err
	}
	p.recordCrawl("ok")

	p.cache.Set(source.ID, items)
	return items, nil
}

func (p *Provider) recordCrawl(status string) {
	if p.metrics != nil {
		p.metrics.RecordPageCrawl(status)
	}
}
