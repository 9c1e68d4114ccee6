// Package registry provides process-wide lookup caches for organisations,
// sites and sources. Each registry is loaded from the database once at
// startup and reloaded on demand; reads never touch the database.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jonesrussell/curator/internal/domain"
)

// OrganisationLister loads organisations from the store
type OrganisationLister interface {
	ListOrganisations(ctx context.Context, enabledOnly bool) ([]domain.Organisation, error)
}

// SiteLister loads sites from the store
type SiteLister interface {
	ListSites(ctx context.Context, organisation string, enabledOnly bool) ([]domain.Site, error)
}

// SourceLister loads sources from the store
type SourceLister interface {
	List(ctx context.Context, organisation string, enabledOnly bool) ([]domain.Source, error)
}

// Organisations is a reloadable cache of organisations keyed by code
type Organisations struct {
	mu     sync.RWMutex
	byCode map[string]domain.Organisation
	lister OrganisationLister
}

// NewOrganisations creates an empty organisations registry
func NewOrganisations(lister OrganisationLister) *Organisations {
	return &Organisations{
		byCode: make(map[string]domain.Organisation),
		lister: lister,
	}
}

// Load replaces the cache contents from the store
func (r *Organisations) Load(ctx context.Context) error {
	orgs, err := r.lister.ListOrganisations(ctx, false)
	if err != nil {
		return fmt.Errorf("load organisations: %w", err)
	}

	byCode := make(map[string]domain.Organisation, len(orgs))
	for _, org := range orgs {
		byCode[org.Code] = org
	}

	r.mu.Lock()
	r.byCode = byCode
	r.mu.Unlock()

	return nil
}

// Get returns the organisation with the given code
func (r *Organisations) Get(code string) (domain.Organisation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	org, ok := r.byCode[code]
	return org, ok
}

// Exists reports whether an organisation with the given code is cached
func (r *Organisations) Exists(code string) bool {
	_, ok := r.Get(code)
	return ok
}

// List returns all cached organisations
func (r *Organisations) List() []domain.Organisation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orgs := make([]domain.Organisation, 0, len(r.byCode))
	for _, org := range r.byCode {
		orgs = append(orgs, org)
	}
	return orgs
}

// Len returns the number of cached organisations
func (r *Organisations) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCode)
}

// Sites is a reloadable cache of sites keyed by ID
type Sites struct {
	mu     sync.RWMutex
	byID   map[string]domain.Site
	byOrg  map[string][]domain.Site
	lister SiteLister
}

// NewSites creates an empty sites registry
func NewSites(lister SiteLister) *Sites {
	return &Sites{
		byID:   make(map[string]domain.Site),
		byOrg:  make(map[string][]domain.Site),
		lister: lister,
	}
}

// Load replaces the cache contents from the store
func (r *Sites) Load(ctx context.Context) error {
	sites, err := r.lister.ListSites(ctx, "", false)
	if err != nil {
		return fmt.Errorf("load sites: %w", err)
	}

	byID := make(map[string]domain.Site, len(sites))
	byOrg := make(map[string][]domain.Site)
	for _, site := range sites {
		byID[site.ID] = site
		byOrg[site.Organisation] = append(byOrg[site.Organisation], site)
	}

	r.mu.Lock()
	r.byID = byID
	r.byOrg = byOrg
	r.mu.Unlock()

	return nil
}

// Get returns the site with the given ID
func (r *Sites) Get(id string) (domain.Site, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	site, ok := r.byID[id]
	return site, ok
}

// ForOrganisation returns all cached sites for an organisation
func (r *Sites) ForOrganisation(code string) []domain.Site {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sites := r.byOrg[code]
	out := make([]domain.Site, len(sites))
	copy(out, sites)
	return out
}

// Len returns the number of cached sites
func (r *Sites) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Sources is a reloadable cache of sources keyed by ID
type Sources struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]domain.Source
	lister SourceLister
}

// NewSources creates an empty sources registry
func NewSources(lister SourceLister) *Sources {
	return &Sources{
		byID:   make(map[uuid.UUID]domain.Source),
		lister: lister,
	}
}

// Load replaces the cache contents from the store
func (r *Sources) Load(ctx context.Context) error {
	sources, err := r.lister.List(ctx, "", false)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}

	byID := make(map[uuid.UUID]domain.Source, len(sources))
	for _, source := range sources {
		byID[source.ID] = source
	}

	r.mu.Lock()
	r.byID = byID
	r.mu.Unlock()

	return nil
}

// Get returns the source with the given ID
func (r *Sources) Get(id uuid.UUID) (domain.Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	source, ok := r.byID[id]
	return source, ok
}

// Enabled returns all cached sources that are enabled
func (r *Sources) Enabled() []domain.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]domain.Source, 0, len(r.byID))
	for _, source := range r.byID {
		if source.Enabled {
			sources = append(sources, source)
		}
	}
	return sources
}

// Len returns the number of cached sources
func (r *Sources) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Registries bundles the lookup caches for one-shot loading at startup
type Registries struct {
	Organisations *Organisations
	Sites         *Sites
	Sources       *Sources
}

// LoadAll loads every registry, failing on the first error
func (r *Registries) LoadAll(ctx context.Context) error {
	if err := r.Organisations.Load(ctx); err != nil {
		return err
	}
	if err := r.Sites.Load(ctx); err != nil {
		return err
	}
	return r.Sources.Load(ctx)
}
