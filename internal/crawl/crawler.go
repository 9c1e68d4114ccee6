// Package crawl extracts teaser lists from HTML listing pages for sources
// that do not expose a feed. Selectors come from the source definition.
package crawl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/logger"
)

const (
	defaultUserAgent      = "curator/1.0 (+https://github.com/jonesrussell/curator)"
	defaultRequestTimeout = 30 * time.Second
)

// dateLayouts are tried in order when parsing a teaser's date text.
var dateLayouts = []string{
	time.RFC3339,
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"02 Jan 2006",
}

// Crawler fetches a listing page and extracts one teaser per item element.
type Crawler struct {
	userAgent string
	timeout   time.Duration
	log       logger.Logger
}

// NewCrawler creates a listing-page crawler.
func NewCrawler(log logger.Logger) *Crawler {
	return &Crawler{
		userAgent: defaultUserAgent,
		timeout:   defaultRequestTimeout,
		log:       log,
	}
}

// Crawl visits the source's page URL and returns the teasers found under its
// item selector. Items without a resolvable link are skipped. The order of
// the returned teasers matches document order.
func (c *Crawler) Crawl(ctx context.Context, source *domain.Source) ([]domain.Teaser, error) {
	if source.Kind != domain.SourceKindPage {
		return nil, fmt.Errorf("%w: source %s is not a page", domain.ErrInvalidSource, source.ID)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("crawl: %w", err)
	}

	collector := colly.NewCollector(colly.UserAgent(c.userAgent))
	collector.SetRequestTimeout(c.timeout)

	teasers := make([]domain.Teaser, 0)

	collector.OnHTML(source.ItemSelector, func(e *colly.HTMLElement) {
		teaser, ok := c.extractTeaser(e, source)
		if !ok {
			return
		}
		teasers = append(teasers, teaser)
	})

	var visitErr error
	collector.OnError(func(_ *colly.Response, err error) {
		visitErr = err
	})

	if err := collector.Visit(source.PageURL); err != nil {
		return nil, fmt.Errorf("crawl visit %s: %w", source.PageURL, err)
	}
	collector.Wait()

	if visitErr != nil {
		return nil, fmt.Errorf("crawl %s: %w", source.PageURL, visitErr)
	}

	c.log.Debug("page crawled",
		logger.String("source_id", source.ID.String()),
		logger.String("page_url", source.PageURL),
		logger.Int("teasers", len(teasers)))

	return teasers, nil
}

// extractTeaser builds a teaser from one item element. The link selector is
// optional; without it the item's own href (or first descendant anchor) is
// used. Relative links are resolved against the page URL.
func (c *Crawler) extractTeaser(e *colly.HTMLElement, source *domain.Source) (domain.Teaser, bool) {
	link := extractLink(e, source.LinkSelector)
	if link == "" {
		return domain.Teaser{}, false
	}

	teaser := domain.Teaser{
		Title: extractText(e, source.TitleSelector),
		URL:   e.Request.AbsoluteURL(link),
	}

	if teaser.Title == "" {
		teaser.Title = strings.TrimSpace(e.DOM.Find("a").First().Text())
	}
	if teaser.Title == "" {
		return domain.Teaser{}, false
	}

	if img := e.ChildAttr("img", "src"); img != "" {
		teaser.ImageURL = e.Request.AbsoluteURL(img)
	}

	if source.DateSelector != "" {
		if parsed := parseDate(extractText(e, source.DateSelector)); parsed != nil {
			teaser.PublishedAt = parsed
		}
	}

	return teaser, true
}

// extractLink returns the item's target URL, unresolved. It prefers the link
// selector's href, then the item's own href, then the first anchor inside it.
func extractLink(e *colly.HTMLElement, linkSelector string) string {
	if linkSelector != "" {
		if href := e.ChildAttr(linkSelector, "href"); href != "" {
			return href
		}
	}
	if href := e.Attr("href"); href != "" {
		return href
	}
	return e.ChildAttr("a", "href")
}

// extractText returns trimmed text for the first match of the selector,
// searching the whole subtree. Empty selector or no match yields "".
func extractText(e *colly.HTMLElement, selector string) string {
	if selector == "" {
		return ""
	}
	if text := e.ChildText(selector); text != "" {
		return strings.TrimSpace(text)
	}
	found := e.DOM.Find(selector).First()
	if found.Length() > 0 {
		return strings.TrimSpace(found.Text())
	}
	return ""
}

// parseDate tries the known layouts against the trimmed text.
func parseDate(text string) *time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return &t
		}
	}
	return nil
}
