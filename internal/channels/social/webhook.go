// Package social posts published content to a social automation webhook
// (Zapier, IFTTT, Buffer or a self-hosted relay).
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/logger"
)

const (
	requestTimeout = 15 * time.Second
	maxMessageLen  = 240
)

// Webhook posts one JSON message per published item.
type Webhook struct {
	url       string
	token     string
	client    *http.Client
	shortener *Shortener
	log       logger.Logger
}

// message is the payload the automation endpoint receives.
type message struct {
	Text         string `json:"text"`
	URL          string `json:"url"`
	ImageURL     string `json:"image_url,omitempty"`
	Organisation string `json:"organisation"`
	SiteID       string `json:"site_id"`
	ContentType  string `json:"content_type"`
	ContentID    string `json:"content_id"`
}

// NewWebhook creates a social webhook channel.
func NewWebhook(url, token string, client *http.Client, log logger.Logger) (*Webhook, error) {
	if url == "" {
		return nil, errors.New("webhook URL is required")
	}
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}

	return &Webhook{
		url:    url,
		token:  token,
		client: client,
		log:    log,
	}, nil
}

// WithShortener enables bitly link shortening on posted URLs.
func (w *Webhook) WithShortener(s *Shortener) *Webhook {
	w.shortener = s
	return w
}

// Name implements channels.Channel.
func (w *Webhook) Name() string { return "social" }

// Publish posts the entry to the webhook. Non-2xx responses are errors so
// the outbox retries with backoff.
func (w *Webhook) Publish(ctx context.Context, entry *domain.OutboxEntry) error {
	postURL := entry.URL
	if w.shortener != nil {
		short, shortenErr := w.shortener.Shorten(ctx, entry.URL)
		if shortenErr != nil {
			// Post the long URL rather than losing the message
			w.log.Warn("link shortening failed",
				logger.String("url", entry.URL),
				logger.Error(shortenErr))
		} else {
			postURL = short
		}
	}

	payload, err := json.Marshal(message{
		Text:         composeText(entry.Title, postURL),
		URL:          postURL,
		ImageURL:     entry.ImageURL,
		Organisation: entry.Organisation,
		SiteID:       entry.SiteID,
		ContentType:  string(entry.ContentType),
		ContentID:    entry.ContentID.String(),
	})
	if err != nil {
		return fmt.Errorf("marshal social message: %w", err)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if reqErr != nil {
		return fmt.Errorf("create social request: %w", reqErr)
	}

	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", w.token))
	}

	resp, doErr := w.client.Do(req)
	if doErr != nil {
		return fmt.Errorf("post social message: %w", doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("social webhook error: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	w.log.Info("social message posted",
		logger.String("content_id", entry.ContentID.String()),
		logger.String("title", entry.Title))

	return nil
}

// composeText builds the post text, truncating long titles so the link
// always fits. Truncation counts runes, not bytes, so multi-byte titles are
// never cut mid-character.
func composeText(title, url string) string {
	if runes := []rune(title); len(runes) > maxMessageLen {
		title = string(runes[:maxMessageLen-1]) + "…"
	}
	return fmt.Sprintf("%s %s", title, url)
}
