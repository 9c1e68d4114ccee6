package social_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/curator/internal/channels/social"
	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/logger"
)

func testEntry() *domain.OutboxEntry {
	return &domain.OutboxEntry{
		ID:           uuid.NewString(),
		ContentID:    uuid.New(),
		Organisation: "opsmatters",
		SiteID:       "devops-daily",
		ContentType:  domain.ContentTypeVideo,
		Title:        "Intro to OpenTelemetry",
		URL:          "https://example.com/otel-intro",
	}
}

func TestWebhook_Publish(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	webhook, err := social.NewWebhook(server.URL, "hook-token", server.Client(), logger.NewNop())
	require.NoError(t, err)

	entry := testEntry()
	require.NoError(t, webhook.Publish(context.Background(), entry))

	assert.Equal(t, "Bearer hook-token", gotAuth)
	assert.Equal(t, "video", gotPayload["content_type"])
	assert.Equal(t, entry.URL, gotPayload["url"])
	assert.Contains(t, gotPayload["text"], entry.Title)
	assert.Contains(t, gotPayload["text"], entry.URL)
}

func TestWebhook_Publish_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	webhook, err := social.NewWebhook(server.URL, "", server.Client(), logger.NewNop())
	require.NoError(t, err)

	publishErr := webhook.Publish(context.Background(), testEntry())
	require.Error(t, publishErr)
	assert.Contains(t, publishErr.Error(), "502")
}

func TestWebhook_Publish_TruncatesLongTitles(t *testing.T) {
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
	}))
	defer server.Close()

	webhook, err := social.NewWebhook(server.URL, "", server.Client(), logger.NewNop())
	require.NoError(t, err)

	entry := testEntry()
	entry.Title = strings.Repeat("a", 500)
	require.NoError(t, webhook.Publish(context.Background(), entry))

	text := gotPayload["text"].(string)
	assert.Less(t, len(text), 500)
	assert.Contains(t, text, entry.URL)
}

func TestWebhook_Publish_TruncatesMultiByteTitlesCleanly(t *testing.T) {
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
	}))
	defer server.Close()

	webhook, err := social.NewWebhook(server.URL, "", server.Client(), logger.NewNop())
	require.NoError(t, err)

	// Three bytes per rune; byte-indexed truncation would cut mid-character.
	entry := testEntry()
	entry.Title = strings.Repeat("革", 300)
	require.NoError(t, webhook.Publish(context.Background(), entry))

	text := gotPayload["text"].(string)
	assert.True(t, utf8.ValidString(text))
	assert.Contains(t, text, "…")
	assert.Equal(t, 240, utf8.RuneCountInString(strings.TrimSuffix(text, " "+entry.URL)))
}

func TestNewWebhook_RequiresURL(t *testing.T) {
	_, err := social.NewWebhook("", "", nil, logger.NewNop())
	assert.Error(t, err)
}
