package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/curator/internal/database"
	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/logger"
	"github.com/jonesrussell/curator/internal/metrics"
)

const (
	// DefaultSchedule is used for sources without their own cron expression
	DefaultSchedule = "@every 1h"
	// DefaultRecentLimit bounds how many stored rows a check compares against
	DefaultRecentLimit = 100
	// DefaultSnapshotRetention is how long old snapshots are kept
	DefaultSnapshotRetention = 7 * 24 * time.Hour
	// DefaultCheckTimeout bounds one monitor check
	DefaultCheckTimeout = 2 * time.Minute
)

// SnapshotStore persists snapshots and alerts.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot) error
	GetLatestSnapshot(ctx context.Context, sourceID uuid.UUID) (*domain.Snapshot, error)
	GetPreviousSnapshot(ctx context.Context, sourceID uuid.UUID) (*domain.Snapshot, error)
	DeleteOldSnapshots(ctx context.Context, sourceID uuid.UUID, olderThan time.Duration) (int64, error)
	CreateAlert(ctx context.Context, alert *domain.MonitorAlert) (*domain.MonitorAlert, error)
}

// ContentKeyLister lists stored content keys for drift comparison.
type ContentKeyLister interface {
	ListRecentKeys(ctx context.Context, organisation, siteID string, contentType domain.ContentType, limit int) ([]database.ContentKey, error)
}

// SourceProvider yields the sources to monitor.
type SourceProvider interface {
	Enabled() []domain.Source
}

// Options tunes the monitor service.
type Options struct {
	RecentLimit       int
	SnapshotRetention time.Duration
	CheckTimeout      time.Duration
}

func (o *Options) withDefaults() {
	if o.RecentLimit <= 0 {
		o.RecentLimit = DefaultRecentLimit
	}
	if o.SnapshotRetention <= 0 {
		o.SnapshotRetention = DefaultSnapshotRetention
	}
	if o.CheckTimeout <= 0 {
		o.CheckTimeout = DefaultCheckTimeout
	}
}

// Service schedules per-source drift checks. Each check observes the source,
// compares the observation against stored content, persists a snapshot and
// raises alerts for anything new or missing.
type Service struct {
	observer  Observer
	snapshots SnapshotStore
	content   ContentKeyLister
	sources   SourceProvider
	metrics   *metrics.Metrics
	log       logger.Logger
	opts      Options

	mu      sync.Mutex
	runCtx  context.Context
	cron    *cron.Cron
	entries map[uuid.UUID]cron.EntryID
}

// NewService creates a monitor service.
func NewService(
	observer Observer,
	snapshots SnapshotStore,
	content ContentKeyLister,
	sources SourceProvider,
	m *metrics.Metrics,
	log logger.Logger,
	opts Options,
) *Service {
	opts.withDefaults()
	return &Service{
		observer:  observer,
		snapshots: snapshots,
		content:   content,
		sources:   sources,
		metrics:   m,
		log:       log,
		opts:      opts,
		cron:      cron.New(),
		entries:   make(map[uuid.UUID]cron.EntryID),
	}
}

// Start registers a cron entry per enabled source and begins scheduling.
// Sources without a schedule fall back to DefaultSchedule. Scheduled checks
// run against ctx for the service's whole lifetime.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runCtx = ctx
	for _, source := range s.sources.Enabled() {
		if err := s.scheduleLocked(source); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.log.Info("monitor started", logger.Int("sources", len(s.entries)))
	return nil
}

// Reload re-registers cron entries after the source registry changed. The
// re-registered checks keep running on the context passed to Start, not on
// the caller's: reloads typically arrive on short-lived request contexts.
func (s *Service) Reload(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entryID := range s.entries {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}

	for _, source := range s.sources.Enabled() {
		if err := s.scheduleLocked(source); err != nil {
			return err
		}
	}

	s.log.Info("monitor schedules reloaded", logger.Int("sources", len(s.entries)))
	return nil
}

func (s *Service) scheduleLocked(source domain.Source) error {
	runCtx := s.runCtx
	if runCtx == nil {
		runCtx = context.Background()
	}

	schedule := source.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}

	src := source
	entryID, err := s.cron.AddFunc(schedule, func() {
		checkCtx, cancel := context.WithTimeout(runCtx, s.opts.CheckTimeout)
		defer cancel()

		if _, err := s.CheckSource(checkCtx, &src); err != nil {
			s.log.Error("monitor check failed",
				logger.String("source_id", src.ID.String()),
				logger.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule source %s (%q): %w", source.ID, schedule, err)
	}

	s.entries[source.ID] = entryID
	return nil
}

// Stop halts scheduling and waits for any running check to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info("monitor stopped")
}

// CheckAll runs a check for every enabled source immediately.
func (s *Service) CheckAll(ctx context.Context) error {
	var firstErr error
	for _, source := range s.sources.Enabled() {
		src := source
		if _, err := s.CheckSource(ctx, &src); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CheckSource runs a single drift check against one source.
func (s *Service) CheckSource(ctx context.Context, source *domain.Source) (*Result, error) {
	observed, observeErr := s.observer.Observe(ctx, source)
	if observeErr != nil {
		s.recordCheck("error")
		s.raiseErrorAlert(ctx, source, observeErr)
		return nil, fmt.Errorf("monitor observe: %w", observeErr)
	}

	stored, listErr := s.content.ListRecentKeys(
		ctx, source.Organisation, source.SiteID, source.ContentType, s.opts.RecentLimit,
	)
	if listErr != nil {
		s.recordCheck("error")
		return nil, fmt.Errorf("monitor list stored: %w", listErr)
	}

	latest, latestErr := s.snapshots.GetLatestSnapshot(ctx, source.ID)
	if latestErr != nil && !errors.Is(latestErr, domain.ErrNotFound) {
		s.recordCheck("error")
		return nil, fmt.Errorf("monitor latest snapshot: %w", latestErr)
	}

	// Look back two checks: an item that flickers out of one crawl and back
	// into the next would otherwise be re-alerted as new.
	previous, prevErr := s.snapshots.GetPreviousSnapshot(ctx, source.ID)
	if prevErr != nil && !errors.Is(prevErr, domain.ErrNotFound) {
		s.recordCheck("error")
		return nil, fmt.Errorf("monitor previous snapshot: %w", prevErr)
	}

	result := Compare(observed, stored, latest, previous)

	if saveErr := s.saveSnapshot(ctx, source.ID, observed); saveErr != nil {
		s.recordCheck("error")
		return nil, saveErr
	}

	if err := s.raiseDriftAlerts(ctx, source, &result); err != nil {
		return nil, err
	}

	if _, pruneErr := s.snapshots.DeleteOldSnapshots(ctx, source.ID, s.opts.SnapshotRetention); pruneErr != nil {
		s.log.Warn("failed to prune old snapshots",
			logger.String("source_id", source.ID.String()),
			logger.Error(pruneErr))
	}

	if len(result.NewItems) == 0 && len(result.MissingItems) == 0 {
		s.recordCheck("ok")
	} else {
		s.recordCheck("drift")
	}

	s.log.Info("monitor check complete",
		logger.String("source_id", source.ID.String()),
		logger.Int("observed", len(observed)),
		logger.Int("new", len(result.NewItems)),
		logger.Int("missing", len(result.MissingItems)))

	return &result, nil
}

func (s *Service) saveSnapshot(ctx context.Context, sourceID uuid.UUID, observed []domain.SnapshotItem) error {
	snapshot := &domain.Snapshot{
		ID:        uuid.New(),
		SourceID:  sourceID,
		CrawledAt: time.Now().UTC(),
		Items:     observed,
	}
	if err := s.snapshots.SaveSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("monitor save snapshot: %w", err)
	}
	return nil
}

func (s *Service) raiseDriftAlerts(ctx context.Context, source *domain.Source, result *Result) error {
	if len(result.NewItems) > 0 {
		details, _ := json.Marshal(result.NewItems)
		if err := s.createAlert(ctx, source.ID, domain.AlertKindNewItems, len(result.NewItems), details); err != nil {
			return err
		}
	}

	if len(result.MissingItems) > 0 {
		details, _ := json.Marshal(result.MissingItems)
		if err := s.createAlert(ctx, source.ID, domain.AlertKindMissingItems, len(result.MissingItems), details); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) raiseErrorAlert(ctx context.Context, source *domain.Source, cause error) {
	details, _ := json.Marshal(map[string]string{"error": cause.Error()})
	if err := s.createAlert(ctx, source.ID, domain.AlertKindSourceError, 1, details); err != nil {
		s.log.Error("failed to raise source error alert",
			logger.String("source_id", source.ID.String()),
			logger.Error(err))
	}
}

func (s *Service) createAlert(ctx context.Context, sourceID uuid.UUID, kind domain.AlertKind, count int, details []byte) error {
	alert := &domain.MonitorAlert{
		SourceID:  sourceID,
		Kind:      kind,
		ItemCount: count,
		Details:   details,
	}
	if _, err := s.snapshots.CreateAlert(ctx, alert); err != nil {
		return fmt.Errorf("monitor create %s alert: %w", kind, err)
	}

	if s.metrics != nil {
		s.metrics.RecordMonitorAlert(string(kind))
	}
	return nil
}

func (s *Service) recordCheck(status string) {
	if s.metrics != nil {
		s.metrics.RecordMonitorCheck(status)
	}
}
