package crawl_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/curator/internal/crawl"
	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/logger"
)

const listingPage = `<!DOCTYPE html>
<html>
<body>
  <div class="events">
    <article class="event-card">
      <h3 class="event-title">KubeCon North America</h3>
      <a class="event-link" href="/events/kubecon-na">Details</a>
      <img src="/images/kubecon.png"/>
      <span class="event-date">2026-11-10</span>
    </article>
    <article class="event-card">
      <h3 class="event-title">SREcon EMEA</h3>
      <a class="event-link" href="https://example.org/srecon">Details</a>
      <span class="event-date">not a date</span>
    </article>
    <article class="event-card">
      <h3 class="event-title">No Link Event</h3>
    </article>
  </div>
</body>
</html>`

func pageSource(pageURL string) *domain.Source {
	return &domain.Source{
		ID:            uuid.New(),
		Organisation:  "opsmatters",
		SiteID:        "devops-daily",
		Name:          "events listing",
		Kind:          domain.SourceKindPage,
		ContentType:   domain.ContentTypeEvent,
		PageURL:       pageURL,
		ItemSelector:  "article.event-card",
		TitleSelector: ".event-title",
		LinkSelector:  "a.event-link",
		DateSelector:  ".event-date",
		Enabled:       true,
	}
}

func TestCrawler_Crawl(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(listingPage))
	}))
	defer server.Close()

	crawler := crawl.NewCrawler(logger.NewNop())
	teasers, err := crawler.Crawl(context.Background(), pageSource(server.URL))
	require.NoError(t, err)
	require.Len(t, teasers, 2, "item without a link is skipped")

	first := teasers[0]
	assert.Equal(t, "KubeCon North America", first.Title)
	assert.Equal(t, server.URL+"/events/kubecon-na", first.URL, "relative link resolved against page URL")
	assert.Equal(t, server.URL+"/images/kubecon.png", first.ImageURL)
	require.NotNil(t, first.PublishedAt)
	assert.Equal(t, 2026, first.PublishedAt.Year())

	second := teasers[1]
	assert.Equal(t, "https://example.org/srecon", second.URL, "absolute link kept as-is")
	assert.Nil(t, second.PublishedAt, "unparseable date text is dropped")
}

func TestCrawler_Crawl_EmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><p>nothing here</p></body></html>"))
	}))
	defer server.Close()

	crawler := crawl.NewCrawler(logger.NewNop())
	teasers, err := crawler.Crawl(context.Background(), pageSource(server.URL))
	require.NoError(t, err)
	assert.Empty(t, teasers)
}

func TestCrawler_Crawl_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	crawler := crawl.NewCrawler(logger.NewNop())
	_, err := crawler.Crawl(context.Background(), pageSource(server.URL))
	assert.Error(t, err)
}

func TestCrawler_Crawl_RejectsFeedSource(t *testing.T) {
	source := pageSource("https://example.com/list")
	source.Kind = domain.SourceKindFeed

	crawler := crawl.NewCrawler(logger.NewNop())
	_, err := crawler.Crawl(context.Background(), source)
	assert.ErrorIs(t, err, domain.ErrInvalidSource)
}

func TestCrawler_Crawl_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	crawler := crawl.NewCrawler(logger.NewNop())
	_, err := crawler.Crawl(ctx, pageSource("https://example.com/list"))
	assert.ErrorIs(t, err, context.Canceled)
}
