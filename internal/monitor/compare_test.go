package monitor

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/curator/internal/database"
	"github.com/jonesrussell/curator/internal/domain"
)

func observedItem(title, url string) domain.SnapshotItem {
	return domain.SnapshotItem{ExternalKey: url, Title: title, URL: url}
}

func storedKey(title, url string) database.ContentKey {
	return database.ContentKey{ID: uuid.New(), Title: title, URL: url}
}

func TestCompare_NoDrift(t *testing.T) {
	observed := []domain.SnapshotItem{
		observedItem("First Post", "https://example.com/1"),
		observedItem("Second Post", "https://example.com/2"),
	}
	stored := []database.ContentKey{
		storedKey("First Post", "https://example.com/1"),
		storedKey("Second Post", "https://example.com/2"),
	}

	result := Compare(observed, stored, nil)
	assert.Empty(t, result.NewItems)
	assert.Empty(t, result.MissingItems)
}

func TestCompare_NewItems(t *testing.T) {
	observed := []domain.SnapshotItem{
		observedItem("Known Post", "https://example.com/known"),
		observedItem("Brand New Post", "https://example.com/new"),
	}
	stored := []database.ContentKey{
		storedKey("Known Post", "https://example.com/known"),
	}

	result := Compare(observed, stored, nil)
	require.Len(t, result.NewItems, 1)
	assert.Equal(t, "https://example.com/new", result.NewItems[0].URL)
	assert.Empty(t, result.MissingItems)
}

func TestCompare_MissingItems(t *testing.T) {
	observed := []domain.SnapshotItem{
		observedItem("Still Here", "https://example.com/here"),
	}
	stored := []database.ContentKey{
		storedKey("Still Here", "https://example.com/here"),
		storedKey("Gone Post", "https://example.com/gone"),
	}

	result := Compare(observed, stored, nil)
	assert.Empty(t, result.NewItems)
	require.Len(t, result.MissingItems, 1)
	assert.Equal(t, "https://example.com/gone", result.MissingItems[0].URL)
}

func TestCompare_TitleMatchDespiteURLChange(t *testing.T) {
	// Providers sometimes rewrite URLs; a normalized title match still counts
	observed := []domain.SnapshotItem{
		observedItem("Kubernetes 1.30: Released!", "https://example.com/posts/k8s-130-v2"),
	}
	stored := []database.ContentKey{
		storedKey("kubernetes 1.30 released", "https://example.com/k8s-130"),
	}

	result := Compare(observed, stored, nil)
	assert.Empty(t, result.NewItems)
	assert.Empty(t, result.MissingItems)
}

func TestCompare_PreviousSnapshotSuppressesRepeatAlert(t *testing.T) {
	observed := []domain.SnapshotItem{
		observedItem("Unstored Post", "https://example.com/unstored"),
	}
	previous := &domain.Snapshot{
		Items: []domain.SnapshotItem{
			observedItem("Unstored Post", "https://example.com/unstored"),
		},
	}

	result := Compare(observed, nil, previous)
	assert.Empty(t, result.NewItems, "item already seen in the previous snapshot is not re-alerted")
}

func TestCompare_EmptyObservation(t *testing.T) {
	stored := []database.ContentKey{
		storedKey("Everything", "https://example.com/everything"),
	}

	result := Compare(nil, stored, nil)
	assert.Empty(t, result.NewItems)
	assert.Len(t, result.MissingItems, 1)
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercases", input: "Hello World", want: "hello world"},
		{name: "strips punctuation", input: "Kubernetes 1.30: Released!", want: "kubernetes 130 released"},
		{name: "collapses whitespace", input: "  a \t b \n c  ", want: "a b c"},
		{name: "empty", input: "", want: ""},
		{name: "punctuation only", input: "?!...", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.input))
		})
	}
}
