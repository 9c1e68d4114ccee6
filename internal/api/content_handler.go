package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/curator/internal/domain"
)

// listContent returns content matching the filter
// GET /api/v1/content?organisation=opsmatters&site_id=devops-daily&type=post&status=new&limit=50
func (r *Router) listContent(c *gin.Context) {
	ctx := c.Request.Context()

	var filter domain.ContentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid filter parameters",
			"details": err.Error(),
		})
		return
	}

	items, err := r.content.List(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list content",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"content": items,
		"count":   len(items),
	})
}

// getContent retrieves a content item by ID
// GET /api/v1/content/:id
func (r *Router) getContent(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseUUID(c, "id", "content")
	if !ok {
		return
	}

	item, err := r.content.GetByID(ctx, id)
	if err != nil {
		handleRepositoryError(c, err, "content", "get")
		return
	}

	c.JSON(http.StatusOK, item)
}

// updateContent updates a content item, including status transitions
// PUT /api/v1/content/:id
func (r *Router) updateContent(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseUUID(c, "id", "content")
	if !ok {
		return
	}

	var req domain.ContentUpdateRequest
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

	item, err := r.content.Update(ctx, id, &req)
	if err != nil {
		handleRepositoryError(c, err, "content", "update")
		return
	}

	c.JSON(http.StatusOK, item)
}

// deleteContent deletes a content item
// DELETE /api/v1/content/:id
func (r *Router) deleteContent(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseUUID(c, "id", "content")
	if !ok {
		return
	}

	if err := r.content.Delete(ctx, id); err != nil {
		handleRepositoryError(c, err, "content", "delete")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Content deleted successfully",
	})
}
