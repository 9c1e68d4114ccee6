package social_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/curator/internal/channels/social"
	"github.com/jonesrussell/curator/internal/logger"
)

func TestShortener_Shorten(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"link": "https://bit.ly/abc123"})
	}))
	defer server.Close()

	shortener := social.NewShortener(server.URL, "bitly-token", server.Client())

	short, err := shortener.Shorten(context.Background(), "https://example.com/very/long/path")
	require.NoError(t, err)

	assert.Equal(t, "https://bit.ly/abc123", short)
	assert.Equal(t, "Bearer bitly-token", gotAuth)
	assert.Equal(t, "https://example.com/very/long/path", gotBody["long_url"])
}

func TestShortener_Shorten_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"FORBIDDEN"}`))
	}))
	defer server.Close()

	shortener := social.NewShortener(server.URL, "bad-token", server.Client())

	_, err := shortener.Shorten(context.Background(), "https://example.com/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestWebhook_Publish_ShortensLinks(t *testing.T) {
	bitly := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"link": "https://bit.ly/short"})
	}))
	defer bitly.Close()

	var gotPayload map[string]any
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	webhook, err := social.NewWebhook(hook.URL, "", hook.Client(), logger.NewNop())
	require.NoError(t, err)
	webhook = webhook.WithShortener(social.NewShortener(bitly.URL, "tok", bitly.Client()))

	require.NoError(t, webhook.Publish(context.Background(), testEntry()))

	assert.Equal(t, "https://bit.ly/short", gotPayload["url"])
	assert.Contains(t, gotPayload["text"], "https://bit.ly/short")
}

func TestWebhook_Publish_ShortenerFailureFallsBack(t *testing.T) {
	bitly := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bitly.Close()

	var gotPayload map[string]any
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	webhook, err := social.NewWebhook(hook.URL, "", hook.Client(), logger.NewNop())
	require.NoError(t, err)
	webhook = webhook.WithShortener(social.NewShortener(bitly.URL, "tok", bitly.Client()))

	entry := testEntry()
	require.NoError(t, webhook.Publish(context.Background(), entry))

	assert.Equal(t, entry.URL, gotPayload["url"], "long URL posted when shortening fails")
}
