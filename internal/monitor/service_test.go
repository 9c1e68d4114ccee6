package monitor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/curator/internal/database"
	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/logger"
	"github.com/jonesrussell/curator/internal/monitor"
)

type stubObserver struct {
	items []domain.SnapshotItem
	err   error
}

func (s *stubObserver) Observe(_ context.Context, _ *domain.Source) ([]domain.SnapshotItem, error) {
	return s.items, s.err
}

// ctxCheckObserver records the state of the context each observation
// arrives on.
type ctxCheckObserver struct {
	mu   sync.Mutex
	errs []error
}

func (o *ctxCheckObserver) Observe(ctx context.Context, _ *domain.Source) ([]domain.SnapshotItem, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, ctx.Err())
	return nil, nil
}

func (o *ctxCheckObserver) ctxErrs() []error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]error(nil), o.errs...)
}

type stubSnapshotStore struct {
	mu        sync.Mutex
	latest    *domain.Snapshot
	previous  *domain.Snapshot
	saved     []*domain.Snapshot
	alerts    []*domain.MonitorAlert
	pruned    int
	saveErr   error
	latestErr error
}

func (s *stubSnapshotStore) SaveSnapshot(_ context.Context, snapshot *domain.Snapshot) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, snapshot)
	return nil
}

func (s *stubSnapshotStore) GetLatestSnapshot(_ context.Context, _ uuid.UUID) (*domain.Snapshot, error) {
	if s.latestErr != nil {
		return nil, s.latestErr
	}
	if s.latest == nil {
		return nil, domain.ErrNotFound
	}
	return s.latest, nil
}

func (s *stubSnapshotStore) GetPreviousSnapshot(_ context.Context, _ uuid.UUID) (*domain.Snapshot, error) {
	if s.previous == nil {
		return nil, domain.ErrNotFound
	}
	return s.previous, nil
}

func (s *stubSnapshotStore) DeleteOldSnapshots(_ context.Context, _ uuid.UUID, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruned++
	return 0, nil
}

func (s *stubSnapshotStore) CreateAlert(_ context.Context, alert *domain.MonitorAlert) (*domain.MonitorAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return alert, nil
}

type stubContentLister struct {
	keys []database.ContentKey
	err  error
}

func (s *stubContentLister) ListRecentKeys(_ context.Context, _, _ string, _ domain.ContentType, _ int) ([]database.ContentKey, error) {
	return s.keys, s.err
}

type stubSourceProvider struct {
	sources []domain.Source
}

func (s *stubSourceProvider) Enabled() []domain.Source { return s.sources }

func monitoredSource() *domain.Source {
	return &domain.Source{
		ID:           uuid.New(),
		Organisation: "opsmatters",
		SiteID:       "devops-daily",
		Kind:         domain.SourceKindFeed,
		ContentType:  domain.ContentTypePost,
		FeedURL:      "https://example.com/feed.xml",
		Enabled:      true,
	}
}

func newService(obs monitor.Observer, store *stubSnapshotStore, lister *stubContentLister, provider *stubSourceProvider) *monitor.Service {
	return monitor.NewService(obs, store, lister, provider, nil, logger.NewNop(), monitor.Options{})
}

func TestService_CheckSource_NoDrift(t *testing.T) {
	obs := &stubObserver{items: []domain.SnapshotItem{
		{ExternalKey: "https://example.com/1", Title: "Post One", URL: "https://example.com/1"},
	}}
	store := &stubSnapshotStore{}
	lister := &stubContentLister{keys: []database.ContentKey{
		{ID: uuid.New(), Title: "Post One", URL: "https://example.com/1"},
	}}

	svc := newService(obs, store, lister, &stubSourceProvider{})
	result, err := svc.CheckSource(context.Background(), monitoredSource())
	require.NoError(t, err)

	assert.Empty(t, result.NewItems)
	assert.Empty(t, result.MissingItems)
	assert.Empty(t, store.alerts)
	require.Len(t, store.saved, 1, "snapshot saved even without drift")
	assert.Equal(t, 1, store.pruned)
}

func TestService_CheckSource_RaisesDriftAlerts(t *testing.T) {
	obs := &stubObserver{items: []domain.SnapshotItem{
		{ExternalKey: "https://example.com/new", Title: "New Post", URL: "https://example.com/new"},
	}}
	store := &stubSnapshotStore{}
	lister := &stubContentLister{keys: []database.ContentKey{
		{ID: uuid.New(), Title: "Vanished Post", URL: "https://example.com/gone"},
	}}

	svc := newService(obs, store, lister, &stubSourceProvider{})
	result, err := svc.CheckSource(context.Background(), monitoredSource())
	require.NoError(t, err)

	assert.Len(t, result.NewItems, 1)
	assert.Len(t, result.MissingItems, 1)
	require.Len(t, store.alerts, 2)

	kinds := []domain.AlertKind{store.alerts[0].Kind, store.alerts[1].Kind}
	assert.Contains(t, kinds, domain.AlertKindNewItems)
	assert.Contains(t, kinds, domain.AlertKindMissingItems)
	assert.NotEmpty(t, store.alerts[0].Details)
}

func TestService_CheckSource_ObserveErrorRaisesAlert(t *testing.T) {
	obs := &stubObserver{err: errors.New("connection refused")}
	store := &stubSnapshotStore{}

	svc := newService(obs, store, &stubContentLister{}, &stubSourceProvider{})
	_, err := svc.CheckSource(context.Background(), monitoredSource())
	require.Error(t, err)

	require.Len(t, store.alerts, 1)
	assert.Equal(t, domain.AlertKindSourceError, store.alerts[0].Kind)
	assert.Empty(t, store.saved, "no snapshot on observation failure")
}

func TestService_CheckSource_UsesPreviousSnapshot(t *testing.T) {
	item := domain.SnapshotItem{
		ExternalKey: "https://example.com/seen", Title: "Seen Before", URL: "https://example.com/seen",
	}
	obs := &stubObserver{items: []domain.SnapshotItem{item}}
	store := &stubSnapshotStore{latest: &domain.Snapshot{Items: []domain.SnapshotItem{item}}}

	svc := newService(obs, store, &stubContentLister{}, &stubSourceProvider{})
	result, err := svc.CheckSource(context.Background(), monitoredSource())
	require.NoError(t, err)

	assert.Empty(t, result.NewItems)
	assert.Empty(t, store.alerts)
}

func TestService_CheckSource_LooksBackTwoSnapshots(t *testing.T) {
	item := domain.SnapshotItem{
		ExternalKey: "https://example.com/flicker", Title: "Flickering Post", URL: "https://example.com/flicker",
	}
	obs := &stubObserver{items: []domain.SnapshotItem{item}}

	// The item dropped out of the latest crawl but was seen the check before;
	// its reappearance is not new content.
	store := &stubSnapshotStore{
		latest:   &domain.Snapshot{},
		previous: &domain.Snapshot{Items: []domain.SnapshotItem{item}},
	}

	svc := newService(obs, store, &stubContentLister{}, &stubSourceProvider{})
	result, err := svc.CheckSource(context.Background(), monitoredSource())
	require.NoError(t, err)

	assert.Empty(t, result.NewItems)
	assert.Empty(t, store.alerts)
}

func TestService_ReloadKeepsCheckContextAlive(t *testing.T) {
	src := monitoredSource()
	src.Schedule = "@every 1s"

	obs := &ctxCheckObserver{}
	svc := monitor.NewService(obs, &stubSnapshotStore{}, &stubContentLister{},
		&stubSourceProvider{sources: []domain.Source{*src}}, nil, logger.NewNop(), monitor.Options{})

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	// Reloads arrive on request contexts that end as soon as the handler
	// returns; checks registered during the reload must outlive them.
	reqCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, svc.Reload(reqCtx))
	cancel()

	require.Eventually(t, func() bool {
		return len(obs.ctxErrs()) > 0
	}, 3*time.Second, 50*time.Millisecond, "expected a scheduled check to fire")

	for _, err := range obs.ctxErrs() {
		assert.NoError(t, err, "scheduled check ran on a dead context")
	}
}

func TestService_CheckAll(t *testing.T) {
	src := monitoredSource()
	obs := &stubObserver{}
	store := &stubSnapshotStore{}

	svc := newService(obs, store, &stubContentLister{}, &stubSourceProvider{sources: []domain.Source{*src}})
	require.NoError(t, svc.CheckAll(context.Background()))
	assert.Len(t, store.saved, 1)
}

func TestService_StartStop(t *testing.T) {
	src := monitoredSource()
	src.Schedule = "@every 1h"

	svc := newService(&stubObserver{}, &stubSnapshotStore{}, &stubContentLister{},
		&stubSourceProvider{sources: []domain.Source{*src}})

	require.NoError(t, svc.Start(context.Background()))
	svc.Stop()
}

func TestService_Start_InvalidSchedule(t *testing.T) {
	src := monitoredSource()
	src.Schedule = "not a cron expression"

	svc := newService(&stubObserver{}, &stubSnapshotStore{}, &stubContentLister{},
		&stubSourceProvider{sources: []domain.Source{*src}})

	assert.Error(t, svc.Start(context.Background()))
}
