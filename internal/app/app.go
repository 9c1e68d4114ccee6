// Package app wires the curator service together: database, Redis,
// registries, ingestion schedulers, the drift monitor, the outbox worker
// and the HTTP API, with graceful shutdown across all of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jonesrussell/curator/internal/api"
	"github.com/jonesrussell/curator/internal/archive"
	"github.com/jonesrussell/curator/internal/channels"
	"github.com/jonesrussell/curator/internal/channels/broadcast"
	"github.com/jonesrussell/curator/internal/channels/drupal"
	"github.com/jonesrussell/curator/internal/channels/email"
	"github.com/jonesrussell/curator/internal/channels/social"
	"github.com/jonesrussell/curator/internal/config"
	"github.com/jonesrussell/curator/internal/crawl"
	"github.com/jonesrussell/curator/internal/database"
	"github.com/jonesrussell/curator/internal/dedup"
	"github.com/jonesrussell/curator/internal/feed"
	"github.com/jonesrussell/curator/internal/logger"
	"github.com/jonesrussell/curator/internal/metrics"
	"github.com/jonesrussell/curator/internal/monitor"
	"github.com/jonesrussell/curator/internal/redis"
	"github.com/jonesrussell/curator/internal/registry"
	"github.com/jonesrussell/curator/internal/teasers"
	"github.com/jonesrussell/curator/internal/worker"
)

// App represents the curator application with all its dependencies
type App struct {
	config      *config.Config
	logger      logger.Logger
	db          *sqlx.DB
	redisClient *goredis.Client
	registries  *registry.Registries

	feedScheduler *feed.Scheduler
	monitorSvc    *monitor.Service
	outboxWorker  *worker.OutboxWorker
	dedupTracker  *dedup.Tracker
	httpServer    *http.Server

	version string
}

// Options contains configuration for creating a new App
type Options struct {
	ConfigPath string
	Version    string
}

// New creates a new App instance with all dependencies initialized
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	log = log.With(
		logger.String("service", "curator"),
		logger.String("version", opts.Version),
	)

	db, err := database.NewPostgresConnection(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		_ = db.Close()
		_ = log.Sync()
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}

	a := &App{
		config:      cfg,
		logger:      log,
		db:          db,
		redisClient: redisClient,
		version:     opts.Version,
	}

	if buildErr := a.build(); buildErr != nil {
		_ = redisClient.Close()
		_ = db.Close()
		_ = log.Sync()
		return nil, buildErr
	}

	return a, nil
}

// build constructs the service graph on top of the open connections.
func (a *App) build() error {
	cfg := a.config
	log := a.logger

	contentRepo := database.NewContentRepository(a.db)
	sourceRepo := database.NewSourceRepository(a.db)
	orgRepo := database.NewOrganisationRepository(a.db)
	monitorRepo := database.NewMonitorRepository(a.db)
	outboxRepo := database.NewOutboxRepository(a.db.DB)

	registries := &registry.Registries{
		Organisations: registry.NewOrganisations(orgRepo),
		Sites:         registry.NewSites(orgRepo),
		Sources:       registry.NewSources(sourceRepo),
	}
	a.registries = registries

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	// Ingestion
	fetcher := feed.NewHTTPFetcher(&http.Client{Timeout: cfg.Ingest.PollTimeout})
	poller := feed.NewPoller(fetcher, contentRepo, sourceRepo, outboxRepo, log)
	a.feedScheduler = feed.NewScheduler(poller, registries.Sources, m, log, cfg.Ingest.PollTimeout)

	crawler := crawl.NewCrawler(log)
	teaserCache := teasers.NewCache(cfg.Ingest.TeaserTTL)
	teaserProvider := teasers.NewProvider(crawler, teaserCache, m)

	// Monitoring
	observer := monitor.NewSourceObserver(fetcher, teaserProvider)
	a.monitorSvc = monitor.NewService(observer, monitorRepo, contentRepo, registries.Sources, m, log, monitor.Options{
		RecentLimit:       cfg.Monitor.RecentLimit,
		SnapshotRetention: cfg.Monitor.SnapshotRetention,
	})

	// Publishing
	chans, digest, err := buildChannels(cfg, a.redisClient, log)
	if err != nil {
		return err
	}

	tracker := dedup.NewTracker(a.redisClient, cfg.Worker.DedupTTL, log)
	a.dedupTracker = tracker

	// Leave the archiver nil when archiving is off so the worker skips the
	// per-publish content load entirely.
	var archiver worker.Archiver
	if cfg.Archive.Enabled {
		minioArchiver, archiveErr := archive.NewArchiver(cfg.Archive, log)
		if archiveErr != nil {
			return fmt.Errorf("create archiver: %w", archiveErr)
		}
		archiver = minioArchiver
	}

	a.outboxWorker = worker.NewOutboxWorker(outboxRepo, contentRepo, chans, tracker, archiver, m, worker.Config{
		PollInterval:   cfg.Worker.PollInterval,
		BatchSize:      cfg.Worker.BatchSize,
		PublishTimeout: cfg.Worker.PublishTimeout,
	}, log)
	if digest != nil {
		a.outboxWorker = a.outboxWorker.WithDigest(digest)
	}

	// HTTP API
	router := api.NewRouter(api.RouterDeps{
		Content:   contentRepo,
		Sources:   sourceRepo,
		Orgs:      orgRepo,
		Alerts:    monitorRepo,
		Outbox:    outboxRepo,
		Teasers:   teaserProvider,
		Registry:  registries,
		Reloaders: []api.Reloader{a.feedScheduler, a.monitorSvc},
		DB:        a.db,
		Redis:     a.redisClient,
		Gatherer:  reg,
		Debug:     cfg.Debug,
		Log:       log,
	})

	a.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return nil
}

// buildChannels constructs the enabled publishing channels. In digest mode
// the email sender is returned separately instead of joining the per-entry
// fan-out: the worker then sends one summary per site per pass.
func buildChannels(cfg *config.Config, redisClient *goredis.Client, log logger.Logger) ([]channels.Channel, worker.DigestSender, error) {
	var chans []channels.Channel
	var digest worker.DigestSender

	if cfg.Channels.Drupal.Enabled {
		client, err := drupal.NewClient(
			cfg.Channels.Drupal.URL,
			cfg.Channels.Drupal.Username,
			cfg.Channels.Drupal.Token,
			cfg.Channels.Drupal.AuthMethod,
			cfg.Channels.Drupal.SkipTLSVerify,
			log,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("create drupal channel: %w", err)
		}
		chans = append(chans, client)
	}

	if cfg.Channels.Email.Enabled {
		sender, err := email.NewSender(email.Config{
			Region:     cfg.Channels.Email.Region,
			From:       cfg.Channels.Email.From,
			Recipients: cfg.Channels.Email.Recipients,
		}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("create email channel: %w", err)
		}
		if cfg.Channels.Email.Digest {
			digest = sender
		} else {
			chans = append(chans, sender)
		}
	}

	if cfg.Channels.Social.Enabled {
		webhook, err := social.NewWebhook(cfg.Channels.Social.WebhookURL, cfg.Channels.Social.Token, nil, log)
		if err != nil {
			return nil, nil, fmt.Errorf("create social channel: %w", err)
		}
		if cfg.Channels.Social.BitlyToken != "" {
			webhook = webhook.WithShortener(social.NewShortener("", cfg.Channels.Social.BitlyToken, nil))
		}
		chans = append(chans, webhook)
	}

	if cfg.Channels.Broadcast.Enabled {
		chans = append(chans, broadcast.NewPublisher(redisClient, log))
	}

	return chans, digest, nil
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	if err := a.registries.LoadAll(ctx); err != nil {
		return fmt.Errorf("load registries: %w", err)
	}
	a.logger.Info("registries loaded",
		logger.Int("organisations", a.registries.Organisations.Len()),
		logger.Int("sites", a.registries.Sites.Len()),
		logger.Int("sources", a.registries.Sources.Len()),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.feedScheduler.Start(runCtx); err != nil {
		return fmt.Errorf("start feed scheduler: %w", err)
	}

	if a.config.Monitor.Enabled {
		if err := a.monitorSvc.Start(runCtx); err != nil {
			a.feedScheduler.Stop()
			return fmt.Errorf("start monitor: %w", err)
		}
	}

	a.outboxWorker.Start(runCtx)

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", logger.String("address", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	return a.waitForShutdown(ctx, cancel, serverErr)
}

// RunAPI starts only the HTTP API, for deployments that run the schedulers
// and the worker in a separate process.
func (a *App) RunAPI(ctx context.Context) error {
	if err := a.registries.LoadAll(ctx); err != nil {
		return fmt.Errorf("load registries: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", logger.String("address", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		a.logger.Info("shutting down gracefully", logger.String("signal", sig.String()))
	case <-runCtx.Done():
	case err := <-serverErr:
		if err != nil {
			a.logger.Error("HTTP server error", logger.Error(err))
			runErr = err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error", logger.Error(err))
	}

	a.logger.Info("API server stopped")
	return runErr
}

// waitForShutdown blocks until a signal, context cancellation or server
// error, then stops every component in reverse start order.
func (a *App) waitForShutdown(ctx context.Context, cancel context.CancelFunc, serverErr chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error

	select {
	case sig := <-sigChan:
		a.logger.Info("shutting down gracefully", logger.String("signal", sig.String()))
	case <-ctx.Done():
		a.logger.Info("shutting down", logger.Error(ctx.Err()))
	case err := <-serverErr:
		if err != nil {
			a.logger.Error("HTTP server error", logger.Error(err))
			runErr = err
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error", logger.Error(err))
	}

	a.outboxWorker.Stop()
	if a.config.Monitor.Enabled {
		a.monitorSvc.Stop()
	}
	a.feedScheduler.Stop()

	a.logger.Info("service stopped")
	return runErr
}

// FlushCache clears the Redis publish-deduplication markers
func (a *App) FlushCache(ctx context.Context) error {
	removed, err := a.dedupTracker.FlushAll(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("dedup cache flushed", logger.Int("removed", removed))
	return nil
}

// Close cleans up resources
func (a *App) Close() error {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close Redis client", logger.Error(err))
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.logger.Warn("failed to close database", logger.Error(err))
		}
	}
	return a.logger.Sync()
}

// Logger returns the application logger
func (a *App) Logger() logger.Logger {
	return a.logger
}
