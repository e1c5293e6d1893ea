package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	logger "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Logger"
	interfaces "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Repository/Interfaces"
)

// HealthController handles liveness and health requests
type HealthController struct {
	readingRepo interfaces.ReadingRepository
	logger      *logger.Logger
}

// NewHealthController creates a new health controller
func NewHealthController(readingRepo interfaces.ReadingRepository, logger *logger.Logger) *HealthController {
	return &HealthController{
		readingRepo: readingRepo,
		logger:      logger,
	}
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/", c.Liveness)
	router.GET("/health", c.Health)
}

// Liveness answers the dashboard's plain connectivity probe
func (c *HealthController) Liveness(ctx *gin.Context) {
	ctx.String(http.StatusOK, "Backend is running!")
}

// Health reports overall status including a storage round trip
func (c *HealthController) Health(ctx *gin.Context) {
	checks := gin.H{"storage": "ok"}
	status := "ok"
	code := http.StatusOK

	if _, err := c.readingRepo.GetRecentReadings(ctx, 1); err != nil {
		c.logger.ErrorWithError(err, "storage health check failed")
		checks["storage"] = "error"
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	ctx.JSON(code, gin.H{"status": status, "checks": checks})
}
