// Package worker provides the background workers that drain the content
// outbox into the publishing channels.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/curator/internal/channels"
	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/logger"
	"github.com/jonesrussell/curator/internal/metrics"
)

const (
	defaultPollInterval   = 5 * time.Second
	defaultBatchSize      = 100
	defaultPublishTimeout = 10 * time.Second
	stalePublishingAge    = 5 * time.Minute
	cleanupRetention      = 7 * 24 * time.Hour
	cleanupInterval       = 1 * time.Hour
	recoveryInterval      = 1 * time.Minute
	retryBatchDivisor     = 2 // retry batch = batchSize / divisor, new content goes first
)

// OutboxStore is the outbox persistence the worker drives.
type OutboxStore interface {
	FetchPending(ctx context.Context, limit int) ([]domain.OutboxEntry, error)
	FetchRetryable(ctx context.Context, limit int) ([]domain.OutboxEntry, error)
	MarkPublished(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errorMsg string) error
	ResetToPending(ctx context.Context, olderThan time.Duration) (int64, error)
	CleanupPublished(ctx context.Context, olderThan time.Duration) (int64, error)
	GetStats(ctx context.Context) (*domain.OutboxStats, error)
	Count(ctx context.Context, status domain.OutboxStatus) (int64, error)
}

// ContentStore lets the worker finalize and archive published content.
type ContentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Content, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ContentStatus) error
}

// DedupTracker guards against double publishing across worker restarts.
type DedupTracker interface {
	HasPublished(ctx context.Context, contentID string) bool
	MarkPublished(ctx context.Context, contentID string) error
}

// Archiver stores published content durably.
type Archiver interface {
	Archive(ctx context.Context, content *domain.Content) error
}

// DigestSender summarises the entries published in one pass, one message per
// site. Used instead of a per-entry channel when digest mode is configured.
type DigestSender interface {
	SendDigest(ctx context.Context, siteID string, entries []domain.OutboxEntry) error
}

// OutboxWorker polls the outbox and fans each entry out to every channel.
type OutboxWorker struct {
	outbox   OutboxStore
	content  ContentStore
	channels []channels.Channel
	dedup    DedupTracker
	archiver Archiver
	digest   DigestSender
	metrics  *metrics.Metrics
	log      logger.Logger
	tracer   trace.Tracer

	pollInterval   time.Duration
	batchSize      int
	publishTimeout time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// Config holds worker tuning options.
type Config struct {
	PollInterval   time.Duration
	BatchSize      int
	PublishTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:   defaultPollInterval,
		BatchSize:      defaultBatchSize,
		PublishTimeout: defaultPublishTimeout,
	}
}

// NewOutboxWorker creates an outbox worker.
func NewOutboxWorker(
	outbox OutboxStore,
	content ContentStore,
	chans []channels.Channel,
	dedup DedupTracker,
	archiver Archiver,
	m *metrics.Metrics,
	cfg Config,
	log logger.Logger,
) *OutboxWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}

	return &OutboxWorker{
		outbox:         outbox,
		content:        content,
		channels:       chans,
		dedup:          dedup,
		archiver:       archiver,
		metrics:        m,
		log:            log,
		tracer:         otel.Tracer("outbox-worker"),
		pollInterval:   cfg.PollInterval,
		batchSize:      cfg.BatchSize,
		publishTimeout: cfg.PublishTimeout,
		stopChan:       make(chan struct{}),
	}
}

// WithDigest enables per-site digest emails covering each processing pass.
func (w *OutboxWorker) WithDigest(d DigestSender) *OutboxWorker {
	w.digest = d
	return w
}

// Start begins the polling, cleanup and recovery loops.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	w.wg.Add(1)
	go w.runCleanup(ctx)

	w.wg.Add(1)
	go w.runRecovery(ctx)

	w.log.Info("outbox worker started",
		logger.Duration("poll_interval", w.pollInterval),
		logger.Int("batch_size", w.batchSize),
		logger.Int("channels", len(w.channels)))
}

// Stop gracefully stops the worker.
func (w *OutboxWorker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()
	w.log.Info("outbox worker stopped")
}

// IsRunning returns whether the worker has been started.
func (w *OutboxWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

func (w *OutboxWorker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Process immediately on start
	w.ProcessOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.ProcessOnce(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ProcessOnce drains one batch of pending and retryable entries.
func (w *OutboxWorker) ProcessOnce(ctx context.Context) {
	var published []domain.OutboxEntry

	pending, err := w.outbox.FetchPending(ctx, w.batchSize)
	if err != nil {
		w.log.Error("failed to fetch pending outbox entries", logger.Error(err))
	} else if len(pending) > 0 {
		w.log.Debug("processing pending entries", logger.Int("count", len(pending)))
		published = append(published, w.publishBatch(ctx, pending)...)
	}

	retryable, err := w.outbox.FetchRetryable(ctx, w.batchSize/retryBatchDivisor)
	if err != nil {
		w.log.Error("failed to fetch retryable outbox entries", logger.Error(err))
	} else if len(retryable) > 0 {
		w.log.Debug("processing retryable entries", logger.Int("count", len(retryable)))
		published = append(published, w.publishBatch(ctx, retryable)...)
	}

	w.sendDigests(ctx, published)

	if w.metrics != nil {
		if depth, countErr := w.outbox.Count(ctx, domain.OutboxStatusPending); countErr == nil {
			w.metrics.SetOutboxPending(depth)
		}
	}
}

// publishBatch publishes every entry in the batch and returns the ones that
// made it out.
func (w *OutboxWorker) publishBatch(ctx context.Context, entries []domain.OutboxEntry) []domain.OutboxEntry {
	var published []domain.OutboxEntry
	for i := range entries {
		if w.publishOne(ctx, &entries[i]) {
			published = append(published, entries[i])
		}
	}
	return published
}

// sendDigests sends one summary per site covering the entries published in
// this pass. Digest failures are logged only: the entries are already out.
func (w *OutboxWorker) sendDigests(ctx context.Context, published []domain.OutboxEntry) {
	if w.digest == nil || len(published) == 0 {
		return
	}

	bySite := make(map[string][]domain.OutboxEntry)
	for _, entry := range published {
		bySite[entry.SiteID] = append(bySite[entry.SiteID], entry)
	}

	for siteID, entries := range bySite {
		if err := w.digest.SendDigest(ctx, siteID, entries); err != nil {
			w.log.Warn("failed to send digest",
				logger.String("site_id", siteID),
				logger.Int("entries", len(entries)),
				logger.Error(err))
		}
	}
}

// publishOne fans a single entry out to every channel and reports whether the
// entry was published. The entry only counts as published when all channels
// accept it; any failure marks it failed so the retry backoff re-claims it
// later.
func (w *OutboxWorker) publishOne(ctx context.Context, entry *domain.OutboxEntry) bool {
	ctx, span := w.tracer.Start(ctx, "outbox.publish",
		trace.WithAttributes(
			attribute.String("content_id", entry.ContentID.String()),
			attribute.String("site_id", entry.SiteID),
			attribute.String("routing_key", entry.RoutingKey()),
		))
	defer span.End()

	contentID := entry.ContentID.String()

	if w.dedup != nil && w.dedup.HasPublished(ctx, contentID) {
		w.log.Info("content already published, skipping channels",
			logger.String("content_id", contentID))
		w.finalize(ctx, entry)
		return false
	}

	for _, ch := range w.channels {
		if err := w.publishToChannel(ctx, ch, entry); err != nil {
			w.handlePublishError(ctx, entry, fmt.Errorf("channel %s: %w", ch.Name(), err))
			return false
		}
	}

	if w.dedup != nil {
		if err := w.dedup.MarkPublished(ctx, contentID); err != nil {
			// The entry is published; a missing marker only risks one extra
			// dedup lookup, not a duplicate publish within this process
			w.log.Warn("failed to set published marker",
				logger.String("content_id", contentID),
				logger.Error(err))
		}
	}

	w.finalize(ctx, entry)
	return true
}

func (w *OutboxWorker) publishToChannel(ctx context.Context, ch channels.Channel, entry *domain.OutboxEntry) error {
	pubCtx, cancel := context.WithTimeout(ctx, w.publishTimeout)
	defer cancel()

	start := time.Now()
	err := ch.Publish(pubCtx, entry)
	if w.metrics != nil {
		w.metrics.RecordPublish(ch.Name(), err == nil, time.Since(start).Seconds())
	}
	return err
}

// finalize marks the entry published, flips the content row's status and
// archives the content document. Failures past the channel fan-out are
// logged, not retried: the external side effects already happened.
func (w *OutboxWorker) finalize(ctx context.Context, entry *domain.OutboxEntry) {
	if err := w.outbox.MarkPublished(ctx, entry.ID); err != nil {
		w.log.Error("failed to mark outbox entry as published",
			logger.String("outbox_id", entry.ID),
			logger.Error(err))
	}

	if err := w.content.UpdateStatus(ctx, entry.ContentID, domain.ContentStatusPublished); err != nil &&
		!errors.Is(err, domain.ErrNotFound) {
		w.log.Error("failed to update content status",
			logger.String("content_id", entry.ContentID.String()),
			logger.Error(err))
	}

	if w.archiver != nil {
		w.archive(ctx, entry.ContentID)
	}

	w.log.Debug("outbox entry published",
		logger.String("content_id", entry.ContentID.String()),
		logger.String("routing_key", entry.RoutingKey()),
		logger.Int("retry_count", entry.RetryCount))
}

func (w *OutboxWorker) archive(ctx context.Context, contentID uuid.UUID) {
	content, err := w.content.GetByID(ctx, contentID)
	if err != nil {
		w.log.Warn("failed to load content for archiving",
			logger.String("content_id", contentID.String()),
			logger.Error(err))
		return
	}

	if archiveErr := w.archiver.Archive(ctx, content); archiveErr != nil {
		w.log.Warn("failed to archive content",
			logger.String("content_id", contentID.String()),
			logger.Error(archiveErr))
	}
}

func (w *OutboxWorker) handlePublishError(ctx context.Context, entry *domain.OutboxEntry, err error) {
	w.log.Error("failed to publish outbox entry",
		logger.String("outbox_id", entry.ID),
		logger.String("content_id", entry.ContentID.String()),
		logger.Int("retry_count", entry.RetryCount),
		logger.Error(err))

	if markErr := w.outbox.MarkFailed(ctx, entry.ID, err.Error()); markErr != nil {
		w.log.Error("failed to mark outbox entry as failed",
			logger.String("outbox_id", entry.ID),
			logger.Error(markErr))
	}
}

// runCleanup periodically removes old published entries.
func (w *OutboxWorker) runCleanup(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deleted, err := w.outbox.CleanupPublished(ctx, cleanupRetention)
			if err != nil {
				w.log.Error("outbox cleanup failed", logger.Error(err))
			} else if deleted > 0 {
				w.log.Info("cleaned up old outbox entries", logger.Int64("deleted", deleted))
			}
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runRecovery resets stale "publishing" entries back to "pending". This
// handles entries claimed by a worker that crashed mid-publish.
func (w *OutboxWorker) runRecovery(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(recoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reset, err := w.outbox.ResetToPending(ctx, stalePublishingAge)
			if err != nil {
				w.log.Error("outbox recovery failed", logger.Error(err))
			} else if reset > 0 {
				w.log.Warn("recovered stale outbox entries", logger.Int64("reset", reset))
			}
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// GetStats returns current worker statistics.
func (w *OutboxWorker) GetStats(ctx context.Context) (map[string]any, error) {
	stats, err := w.outbox.GetStats(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(w.channels))
	for i, ch := range w.channels {
		names[i] = ch.Name()
	}

	return map[string]any{
		"pending":                 stats.Pending,
		"publishing":              stats.Publishing,
		"published":               stats.Published,
		"failed_retryable":        stats.FailedRetryable,
		"failed_exhausted":        stats.FailedExhausted,
		"avg_publish_lag_seconds": stats.AvgPublishLagSeconds,
		"poll_interval":           w.pollInterval.String(),
		"batch_size":              w.batchSize,
		"channels":                names,
		"running":                 w.IsRunning(),
	}, nil
}
