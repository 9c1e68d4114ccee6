package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>DevOps Daily</title>
    <item>
      <title>Kubernetes 1.30 Released</title>
      <link>https://example.com/k8s-130</link>
      <description>Release notes and highlights.</description>
      <category>kubernetes</category>
      <category>releases</category>
      <pubDate>Mon, 17 Aug 2026 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>GUID Only Item</title>
      <guid>https://example.com/guid-item</guid>
    </item>
    <item>
      <title>No Link At All</title>
      <guid isPermaLink="false">internal-id-42</guid>
    </item>
  </channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>SRE Weekly</title>
  <entry>
    <title>Postmortem Culture</title>
    <link href="https://example.com/postmortems"/>
    <author><name>Jordan Reyes</name></author>
    <updated>2026-08-16T08:00:00Z</updated>
  </entry>
</feed>`

func TestParse_RSS(t *testing.T) {
	items, err := Parse(context.Background(), rssFixture)
	require.NoError(t, err)
	require.Len(t, items, 2, "item without a usable link should be skipped")

	first := items[0]
	assert.Equal(t, "Kubernetes 1.30 Released", first.Title)
	assert.Equal(t, "https://example.com/k8s-130", first.URL)
	assert.Equal(t, "Release notes and highlights.", first.Summary)
	assert.Equal(t, []string{"kubernetes", "releases"}, first.Categories)
	require.NotNil(t, first.PublishedAt)

	assert.Equal(t, "https://example.com/guid-item", items[1].URL, "GUID used as link fallback")
}

func TestParse_Atom(t *testing.T) {
	items, err := Parse(context.Background(), atomFixture)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "Postmortem Culture", items[0].Title)
	assert.Equal(t, "https://example.com/postmortems", items[0].URL)
	assert.Equal(t, "Jordan Reyes", items[0].Author)
}

func TestParse_InvalidBody(t *testing.T) {
	_, err := Parse(context.Background(), "not a feed")
	assert.Error(t, err)
}

func TestParse_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Parse(ctx, rssFixture)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParse_EmptyFeed(t *testing.T) {
	items, err := Parse(context.Background(),
		`<?xml version="1.0"?><rss version="2.0"><channel><title>Empty</title></channel></rss>`)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}
