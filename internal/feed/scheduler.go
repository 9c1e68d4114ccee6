package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/logger"
	"github.com/jonesrussell/curator/internal/metrics"
)

const (
	// DefaultPollSchedule is used for feed sources without a cron expression
	DefaultPollSchedule = "@every 15m"
	// DefaultPollTimeout bounds one feed poll
	DefaultPollTimeout = 2 * time.Minute
)

// SourceProvider yields the sources to poll.
type SourceProvider interface {
	Enabled() []domain.Source
}

// Scheduler runs the poller on each feed source's cron schedule.
type Scheduler struct {
	poller  *Poller
	sources SourceProvider
	metrics *metrics.Metrics
	log     logger.Logger
	timeout time.Duration

	mu      sync.Mutex
	runCtx  context.Context
	cron    *cron.Cron
	entries map[uuid.UUID]cron.EntryID
}

// NewScheduler creates a feed polling scheduler. A non-positive pollTimeout
// falls back to DefaultPollTimeout.
func NewScheduler(poller *Poller, sources SourceProvider, m *metrics.Metrics, log logger.Logger, pollTimeout time.Duration) *Scheduler {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Scheduler{
		poller:  poller,
		sources: sources,
		metrics: m,
		log:     log,
		timeout: pollTimeout,
		cron:    cron.New(),
		entries: make(map[uuid.UUID]cron.EntryID),
	}
}

// Start registers a cron entry per enabled feed source and begins polling.
// Scheduled polls run against ctx for the scheduler's whole lifetime.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runCtx = ctx
	if err := s.registerLocked(); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("feed scheduler started", logger.Int("sources", len(s.entries)))
	return nil
}

// Reload re-registers cron entries after the source registry changed. The
// re-registered polls keep running on the context passed to Start, not on
// the caller's: reloads typically arrive on short-lived request contexts.
func (s *Scheduler) Reload(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entryID := range s.entries {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}

	if err := s.registerLocked(); err != nil {
		return err
	}

	s.log.Info("feed schedules reloaded", logger.Int("sources", len(s.entries)))
	return nil
}

func (s *Scheduler) registerLocked() error {
	runCtx := s.runCtx
	if runCtx == nil {
		runCtx = context.Background()
	}

	for _, source := range s.sources.Enabled() {
		if source.Kind != domain.SourceKindFeed {
			continue
		}

		schedule := source.Schedule
		if schedule == "" {
			schedule = DefaultPollSchedule
		}

		src := source
		entryID, err := s.cron.AddFunc(schedule, func() {
			s.pollOne(runCtx, &src)
		})
		if err != nil {
			return fmt.Errorf("schedule feed %s (%q): %w", source.ID, schedule, err)
		}
		s.entries[source.ID] = entryID
	}
	return nil
}

// Stop halts scheduling and waits for running polls to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info("feed scheduler stopped")
}

// PollAll polls every enabled feed source immediately.
func (s *Scheduler) PollAll(ctx context.Context) {
	for _, source := range s.sources.Enabled() {
		if source.Kind != domain.SourceKindFeed {
			continue
		}
		src := source
		s.pollOne(ctx, &src)
	}
}

func (s *Scheduler) pollOne(ctx context.Context, source *domain.Source) {
	pollCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	stats, err := s.poller.Poll(pollCtx, source)

	if s.metrics != nil {
		s.metrics.IngestDurationSecs.WithLabelValues(string(source.Kind)).
			Observe(time.Since(start).Seconds())

		switch {
		case err != nil:
			s.metrics.RecordFeedPoll("error")
		case stats.NotModified:
			s.metrics.RecordFeedPoll("not_modified")
		default:
			s.metrics.RecordFeedPoll("ok")
			s.metrics.RecordIngested(source.Organisation, string(source.ContentType), stats.ItemsIngested)
		}
	}

	if err != nil {
		s.log.Error("scheduled feed poll failed",
			logger.String("source_id", source.ID.String()),
			logger.Error(err))
	}
}
