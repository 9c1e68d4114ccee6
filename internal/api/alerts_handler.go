package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/curator/internal/domain"
)

// listAlerts returns monitor alerts matching the filter
// GET /api/v1/alerts?source_id=<uuid>&kind=new_items&unresolved=true
func (r *Router) listAlerts(c *gin.Context) {
	ctx := c.Request.Context()

	var filter domain.AlertFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid filter parameters",
			"details": err.Error(),
		})
		return
	}

	alerts, err := r.alerts.ListAlerts(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list alerts",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// resolveAlert marks an alert as resolved
// POST /api/v1/alerts/:id/resolve
func (r *Router) resolveAlert(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseUUID(c, "id", "alert")
	if !ok {
		return
	}

	if err := r.alerts.ResolveAlert(ctx, id); err != nil {
		handleRepositoryError(c, err, "alert", "resolve")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Alert resolved",
	})
}
