//nolint:dupl // Similar structure to organisations_handler.go
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/curator/internal/domain"
)

// listSites returns all sites, optionally scoped to an organisation
// GET /api/v1/sites?organisation=opsmatters&enabled_only=true
func (r *Router) listSites(c *gin.Context) {
	ctx := c.Request.Context()

	organisation := c.Query("organisation")
	enabledOnly := c.Query("enabled_only") == queryTrue

	sites, err := r.orgs.ListSites(ctx, organisation, enabledOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list sites",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sites": sites,
		"count": len(sites),
	})
}

// createSite creates a new site
// POST /api/v1/sites
func (r *Router) createSite(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.SiteCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	site, err := r.orgs.CreateSite(ctx, &req)
	if err != nil {
		handleRepositoryError(c, err, "site", "create")
		return
	}

	c.JSON(http.StatusCreated, site)
}

// getSite retrieves a site by ID
// GET /api/v1/sites/:id
func (r *Router) getSite(c *gin.Context) {
	ctx := c.Request.Context()

	site, err := r.orgs.GetSite(ctx, c.Param("id"))
	if err != nil {
		handleRepositoryError(c, err, "site", "get")
		return
	}

	c.JSON(http.StatusOK, site)
}

// updateSite updates a site
// PUT /api/v1/sites/:id
func (r *Router) updateSite(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.SiteUpdateRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": bindErr.Error(),
		})
		return
	}

	if validateErr := req.Validate(); validateErr != nil {
		handleValidationError(c, validateErr)
		return
	}

	site, err := r.orgs.UpdateSite(ctx, c.Param("id"), &req)
	if err != nil {
		handleRepositoryError(c, err, "site", "update")
		return
	}

	c.JSON(http.StatusOK, site)
}

// deleteSite deletes a site
// DELETE /api/v1/sites/:id
func (r *Router) deleteSite(c *gin.Context) {
	ctx := c.Request.Context()

	if err := r.orgs.DeleteSite(ctx, c.Param("id")); err != nil {
		handleRepositoryError(c, err, "site", "delete")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Site deleted successfully",
	})
}
