package dedup_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/curator/internal/dedup"
	"github.com/jonesrussell/curator/internal/logger"
)

func newTracker(t *testing.T, ttl time.Duration) (*dedup.Tracker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return dedup.NewTracker(client, ttl, logger.NewNop()), mr
}

func TestTracker_MarkAndCheck(t *testing.T) {
	tracker, _ := newTracker(t, time.Hour)
	ctx := context.Background()

	assert.False(t, tracker.HasPublished(ctx, "content-1"))

	require.NoError(t, tracker.MarkPublished(ctx, "content-1"))
	assert.True(t, tracker.HasPublished(ctx, "content-1"))
	assert.False(t, tracker.HasPublished(ctx, "content-2"))
}

func TestTracker_TTLExpiry(t *testing.T) {
	tracker, mr := newTracker(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, tracker.MarkPublished(ctx, "content-1"))
	assert.True(t, tracker.HasPublished(ctx, "content-1"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, tracker.HasPublished(ctx, "content-1"))
}

func TestTracker_Clear(t *testing.T) {
	tracker, _ := newTracker(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, tracker.MarkPublished(ctx, "content-1"))
	require.NoError(t, tracker.Clear(ctx, "content-1"))
	assert.False(t, tracker.HasPublished(ctx, "content-1"))
}

func TestTracker_FlushAll(t *testing.T) {
	tracker, mr := newTracker(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, tracker.MarkPublished(ctx, "content-1"))
	require.NoError(t, tracker.MarkPublished(ctx, "content-2"))

	// An unrelated key must survive the flush
	mr.Set("other:key", "keep")

	deleted, err := tracker.FlushAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.False(t, tracker.HasPublished(ctx, "content-1"))

	got, getErr := mr.Get("other:key")
	require.NoError(t, getErr)
	assert.Equal(t, "keep", got)
}
