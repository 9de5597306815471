package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/jobharvest/models"
)

// Version is reported by the health endpoint.
const Version = "0.2.0"

// Health returns a handler for GET /api/v1/health. The status is "busy"
// while a harvest holds the browser session.
func Health(h Harvester, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := h.Status()

		status := "healthy"
		if info.Busy {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Session: info,
			Version: Version,
		})
	}
}
