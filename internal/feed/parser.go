// Package feed ingests RSS and Atom feeds into the content store.
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// httpPrefix is the scheme prefix used to decide whether a GUID is a usable URL.
const httpPrefix = "http"

// Item represents a single entry extracted from an RSS or Atom feed.
type Item struct {
	URL         string
	Title       string
	Summary     string
	Author      string
	ImageURL    string
	Categories  []string
	PublishedAt *time.Time
}

// Parse parses an RSS or Atom feed body and returns the discovered items.
// Items without a usable link are silently skipped. An empty feed returns a
// non-nil empty slice.
func Parse(ctx context.Context, body string) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	parser := gofeed.NewParser()

	parsed, err := parser.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]Item, 0, len(parsed.Items))

	for _, entry := range parsed.Items {
		link := extractLink(entry)
		if link == "" {
			continue
		}

		items = append(items, Item{
			URL:         link,
			Title:       strings.TrimSpace(entry.Title),
			Summary:     strings.TrimSpace(entry.Description),
			Author:      extractAuthor(entry),
			ImageURL:    extractImage(entry),
			Categories:  entry.Categories,
			PublishedAt: entry.PublishedParsed,
		})
	}

	return items, nil
}

// extractLink returns the best available URL from a feed entry. It prefers
// the explicit Link field, falling back to the GUID if it looks like an
// HTTP URL.
func extractLink(entry *gofeed.Item) string {
	if entry.Link != "" {
		return entry.Link
	}

	if strings.HasPrefix(entry.GUID, httpPrefix) {
		return entry.GUID
	}

	return ""
}

// extractAuthor returns the first author name on the entry, if any.
func extractAuthor(entry *gofeed.Item) string {
	for _, author := range entry.Authors {
		if author != nil && author.Name != "" {
			return author.Name
		}
	}
	return ""
}

// extractImage returns the entry's image URL, if any.
func extractImage(entry *gofeed.Item) string {
	if entry.Image != nil {
		return entry.Image.URL
	}
	return ""
}
