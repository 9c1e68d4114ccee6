//nolint:dupl // Similar structure to sources_handler.go
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/curator/internal/domain"
)

// listOrganisations returns all organisations
// GET /api/v1/organisations?enabled_only=true
func (r *Router) listOrganisations(c *gin.Context) {
	ctx := c.Request.Context()

	enabledOnly := c.Query("enabled_only") == queryTrue

	orgs, err := r.orgs.ListOrganisations(ctx, enabledOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list organisations",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"organisations": orgs,
		"count":         len(orgs),
	})
}

// createOrganisation creates a new organisation
// POST /api/v1/organisations
func (r *Router) createOrganisation(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.OrganisationCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	org, err := r.orgs.CreateOrganisation(ctx, &req)
	if err != nil {
		handleRepositoryError(c, err, "organisation", "create")
		return
	}

	c.JSON(http.StatusCreated, org)
}

// getOrganisation retrieves an organisation by code
// GET /api/v1/organisations/:code
func (r *Router) getOrganisation(c *gin.Context) {
	ctx := c.Request.Context()

	org, err := r.orgs.GetOrganisation(ctx, c.Param("code"))
	if err != nil {
		handleRepositoryError(c, err, "organisation", "get")
		return
	}

	c.JSON(http.StatusOK, org)
}

// updateOrganisation updates an organisation
// PUT /api/v1/organisations/:code
func (r *Router) updateOrganisation(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.OrganisationUpdateRequest
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

	org, err := r.orgs.UpdateOrganisation(ctx, c.Param("code"), &req)
	if err != nil {
		handleRepositoryError(c, err, "organisation", "update")
		return
	}

	c.JSON(http.StatusOK, org)
}

// deleteOrganisation deletes an organisation
// DELETE /api/v1/organisations/:code
func (r *Router) deleteOrganisation(c *gin.Context) {
	ctx := c.Request.Context()

	if err := r.orgs.DeleteOrganisation(ctx, c.Param("code")); err != nil {
		handleRepositoryError(c, err, "organisation", "delete")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Organisation deleted successfully",
	})
}
