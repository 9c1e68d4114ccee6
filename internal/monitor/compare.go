// Package monitor periodically re-observes sources and compares what they
// currently publish against the content already stored, raising alerts when
// the two drift apart.
package monitor

import (
	"strings"
	"unicode"

	"github.com/jonesrussell/curator/internal/database"
	"github.com/jonesrussell/curator/internal/domain"
)

// Result is the outcome of comparing an observation against stored content.
type Result struct {
	// NewItems are observed on the source but absent from stored content
	// and from the previous snapshot.
	NewItems []domain.SnapshotItem
	// MissingItems are stored content no longer observed on the source.
	MissingItems []database.ContentKey
}

// Compare diffs the currently observed items against stored content keys.
// An observed item counts as known when its URL or normalized title matches
// a stored row. Unknown items already present in one of the previous
// snapshots are suppressed so the same drift is not alerted twice. Stored
// rows matched by no observed item are reported missing.
func Compare(observed []domain.SnapshotItem, stored []database.ContentKey, previous ...*domain.Snapshot) Result {
	storedURLs := make(map[string]bool, len(stored))
	storedTitles := make(map[string]bool, len(stored))
	for _, key := range stored {
		storedURLs[key.URL] = true
		if norm := NormalizeTitle(key.Title); norm != "" {
			storedTitles[norm] = true
		}
	}

	previousKeys := make(map[string]bool)
	for _, snapshot := range previous {
		if snapshot == nil {
			continue
		}
		for _, item := range snapshot.Items {
			previousKeys[item.ExternalKey] = true
		}
	}

	var result Result

	observedURLs := make(map[string]bool, len(observed))
	observedTitles := make(map[string]bool, len(observed))
	for _, item := range observed {
		observedURLs[item.URL] = true
		if norm := NormalizeTitle(item.Title); norm != "" {
			observedTitles[norm] = true
		}

		if storedURLs[item.URL] || storedTitles[NormalizeTitle(item.Title)] {
			continue
		}
		if previousKeys[item.ExternalKey] {
			continue
		}
		result.NewItems = append(result.NewItems, item)
	}

	for _, key := range stored {
		if observedURLs[key.URL] || observedTitles[NormalizeTitle(key.Title)] {
			continue
		}
		result.MissingItems = append(result.MissingItems, key)
	}

	return result
}

// NormalizeTitle lowercases a title, strips punctuation and collapses
// whitespace so near-identical titles compare equal.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	lastSpace := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) && !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}

	return strings.TrimSpace(b.String())
}
