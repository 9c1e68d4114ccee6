package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/logger"
)

// listSources returns all sources, optionally scoped to an organisation
// GET /api/v1/sources?organisation=opsmatters&enabled_only=true
func (r *Router) listSources(c *gin.Context) {
	ctx := c.Request.Context()

	organisation := c.Query("organisation")
	enabledOnly := c.Query("enabled_only") == queryTrue

	sources, err := r.sources.List(ctx, organisation, enabledOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list sources",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"count":   len(sources),
	})
}

// createSource creates a new source
// POST /api/v1/sources
func (r *Router) createSource(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.SourceCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	source, err := r.sources.Create(ctx, &req)
	if err != nil {
		handleRepositoryError(c, err, "source", "create")
		return
	}

	c.JSON(http.StatusCreated, source)
}

// getSource retrieves a source by ID
// GET /api/v1/sources/:id
func (r *Router) getSource(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseUUID(c, "id", "source")
	if !ok {
		return
	}

	source, err := r.sources.GetByID(ctx, id)
	if err != nil {
		handleRepositoryError(c, err, "source", "get")
		return
	}

	c.JSON(http.StatusOK, source)
}

// updateSource updates a source
// PUT /api/v1/sources/:id
func (r *Router) updateSource(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseUUID(c, "id", "source")
	if !ok {
		return
	}

	var req domain.SourceUpdateRequest
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

	source, err := r.sources.Update(ctx, id, &req)
	if err != nil {
		handleRepositoryError(c, err, "source", "update")
		return
	}

	c.JSON(http.StatusOK, source)
}

// deleteSource deletes a source
// DELETE /api/v1/sources/:id
func (r *Router) deleteSource(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseUUID(c, "id", "source")
	if !ok {
		return
	}

	if err := r.sources.Delete(ctx, id); err != nil {
		handleRepositoryError(c, err, "source", "delete")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Source deleted successfully",
	})
}

// getTeasers returns the current teaser list for a page source
// GET /api/v1/sources/:id/teasers
func (r *Router) getTeasers(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseUUID(c, "id", "source")
	if !ok {
		return
	}

	source, err := r.sources.GetByID(ctx, id)
	if err != nil {
		handleRepositoryError(c, err, "source", "get")
		return
	}

	if source.Kind != domain.SourceKindPage {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Teasers are only available for page sources",
		})
		return
	}

	items, err := r.teasers.Observe(ctx, source)
	if err != nil {
		r.log.Error("teaser crawl failed",
			logger.String("source_id", source.ID.String()),
			logger.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to crawl source",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"teasers": items,
		"count":   len(items),
	})
}
