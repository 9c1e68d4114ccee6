// Package api exposes the HTTP management API: CRUD for organisations,
// sites and sources, content queries, teaser previews, monitor alerts,
// outbox statistics and registry reloads.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/logger"
)

const (
	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
	healthCheckTimeout   = 2 * time.Second
	serviceVersion       = "1.0.0"
)

// ContentStore is the content persistence surface the API needs.
type ContentStore interface {
	List(ctx context.Context, filter domain.ContentFilter) ([]domain.Content, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Content, error)
	Update(ctx context.Context, id uuid.UUID, req *domain.ContentUpdateRequest) (*domain.Content, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SourceStore is the source persistence surface the API needs.
type SourceStore interface {
	Create(ctx context.Context, req *domain.SourceCreateRequest) (*domain.Source, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Source, error)
	List(ctx context.Context, organisation string, enabledOnly bool) ([]domain.Source, error)
	Update(ctx context.Context, id uuid.UUID, req *domain.SourceUpdateRequest) (*domain.Source, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// OrganisationStore is the organisation and site persistence surface.
type OrganisationStore interface {
	CreateOrganisation(ctx context.Context, req *domain.OrganisationCreateRequest) (*domain.Organisation, error)
	GetOrganisation(ctx context.Context, code string) (*domain.Organisation, error)
	ListOrganisations(ctx context.Context, enabledOnly bool) ([]domain.Organisation, error)
	UpdateOrganisation(ctx context.Context, code string, req *domain.OrganisationUpdateRequest) (*domain.Organisation, error)
	DeleteOrganisation(ctx context.Context, code string) error

	CreateSite(ctx context.Context, req *domain.SiteCreateRequest) (*domain.Site, error)
	GetSite(ctx context.Context, id string) (*domain.Site, error)
	ListSites(ctx context.Context, organisation string, enabledOnly bool) ([]domain.Site, error)
	UpdateSite(ctx context.Context, id string, req *domain.SiteUpdateRequest) (*domain.Site, error)
	DeleteSite(ctx context.Context, id string) error
}

// AlertStore is the monitor alert surface the API needs.
type AlertStore interface {
	ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.MonitorAlert, error)
	ResolveAlert(ctx context.Context, id uuid.UUID) error
}

// OutboxStatsProvider reports outbox queue depths.
type OutboxStatsProvider interface {
	GetStats(ctx context.Context) (*domain.OutboxStats, error)
}

// TeaserProvider returns the current teaser list for a page source,
// served from cache when fresh.
type TeaserProvider interface {
	Observe(ctx context.Context, source *domain.Source) ([]domain.Teaser, error)
}

// Reloader re-reads schedules after registry contents change.
type Reloader interface {
	Reload(ctx context.Context) error
}

// RegistryLoader reloads the in-memory lookup caches from the database.
type RegistryLoader interface {
	LoadAll(ctx context.Context) error
}

// Pinger reports database connectivity.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Router holds the API dependencies.
type Router struct {
	content   ContentStore
	sources   SourceStore
	orgs      OrganisationStore
	alerts    AlertStore
	outbox    OutboxStatsProvider
	teasers   TeaserProvider
	registry  RegistryLoader
	reloaders []Reloader
	db        Pinger
	redis     *redis.Client
	gatherer  prometheus.Gatherer
	debug     bool
	log       logger.Logger
}

// RouterDeps bundles the Router's constructor dependencies.
type RouterDeps struct {
	Content   ContentStore
	Sources   SourceStore
	Orgs      OrganisationStore
	Alerts    AlertStore
	Outbox    OutboxStatsProvider
	Teasers   TeaserProvider
	Registry  RegistryLoader
	Reloaders []Reloader
	DB        Pinger
	Redis     *redis.Client
	Gatherer  prometheus.Gatherer
	Debug     bool
	Log       logger.Logger
}

// NewRouter creates a new API router.
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		content:   deps.Content,
		sources:   deps.Sources,
		orgs:      deps.Orgs,
		alerts:    deps.Alerts,
		outbox:    deps.Outbox,
		teasers:   deps.Teasers,
		registry:  deps.Registry,
		reloaders: deps.Reloaders,
		db:        deps.DB,
		redis:     deps.Redis,
		gatherer:  deps.Gatherer,
		debug:     deps.Debug,
		log:       deps.Log,
	}
}

// Engine builds the gin engine with all routes registered.
func (r *Router) Engine() *gin.Engine {
	if !r.debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	engine.GET("/health", r.healthCheck)
	engine.GET("/healthz", r.healthCheck)
	if r.gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))
	}

	r.setupServiceRoutes(engine)
	return engine
}

func (r *Router) setupServiceRoutes(engine *gin.Engine) {
	v1 := engine.Group("/api/v1")

	orgs := v1.Group("/organisations")
	orgs.GET("", r.listOrganisations)
	orgs.POST("", r.createOrganisation)
	orgs.GET("/:code", r.getOrganisation)
	orgs.PUT("/:code", r.updateOrganisation)
	orgs.DELETE("/:code", r.deleteOrganisation)

	sites := v1.Group("/sites")
	sites.GET("", r.listSites)
	sites.POST("", r.createSite)
	sites.GET("/:id", r.getSite)
	sites.PUT("/:id", r.updateSite)
	sites.DELETE("/:id", r.deleteSite)

	sources := v1.Group("/sources")
	sources.GET("", r.listSources)
	sources.POST("", r.createSource)
	sources.GET("/:id/teasers", r.getTeasers) // More specific route before :id
	sources.GET("/:id", r.getSource)
	sources.PUT("/:id", r.updateSource)
	sources.DELETE("/:id", r.deleteSource)

	content := v1.Group("/content")
	content.GET("", r.listContent)
	content.GET("/:id", r.getContent)
	content.PUT("/:id", r.updateContent)
	content.DELETE("/:id", r.deleteContent)

	alerts := v1.Group("/alerts")
	alerts.GET("", r.listAlerts)
	alerts.POST("/:id/resolve", r.resolveAlert)

	v1.GET("/outbox/stats", r.getOutboxStats)
	v1.POST("/registry/reload", r.reloadRegistry)
}

// healthCheck returns the service health status.
func (r *Router) healthCheck(c *gin.Context) {
	health := gin.H{
		"status":  healthStatusHealthy,
		"service": "curator",
		"version": serviceVersion,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	dbConnected := true
	if r.db != nil {
		if err := r.db.PingContext(ctx); err != nil {
			dbConnected = false
			health["status"] = healthStatusDegraded
		}
	}
	health["database"] = gin.H{"connected": dbConnected}

	if r.redis != nil {
		redisConnected := true
		if err := r.redis.Ping(ctx).Err(); err != nil {
			redisConnected = false
			if health["status"] == healthStatusHealthy {
				health["status"] = healthStatusDegraded
			}
		}
		health["redis"] = gin.H{"connected": redisConnected}
	}

	c.JSON(http.StatusOK, health)
}

// reloadRegistry reloads the lookup caches and reschedules the pollers.
// POST /api/v1/registry/reload
func (r *Router) reloadRegistry(c *gin.Context) {
	ctx := c.Request.Context()

	if err := r.registry.LoadAll(ctx); err != nil {
		r.log.Error("registry reload failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to reload registries",
		})
		return
	}

	for _, reloader := range r.reloaders {
		if err := reloader.Reload(ctx); err != nil {
			r.log.Error("schedule reload failed", logger.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Registries reloaded but rescheduling failed",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Registries reloaded successfully",
	})
}

// getOutboxStats returns outbox queue depths.
// GET /api/v1/outbox/stats
func (r *Router) getOutboxStats(c *gin.Context) {
	stats, err := r.outbox.GetStats(c.Request.Context())
	if err != nil {
		r.log.Error("failed to get outbox stats", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve outbox statistics",
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}
