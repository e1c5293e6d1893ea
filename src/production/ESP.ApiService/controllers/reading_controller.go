package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	logger "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Logger"
	espmodels "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Models"
	interfaces "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Repository/Interfaces"
)

// RecentReadingsLimit is the fixed window served to the dashboard. It is
// not caller-controlled.
const RecentReadingsLimit = 6

// ReadingController handles sensor reading ingestion and queries
type ReadingController struct {
	readingRepo interfaces.ReadingRepository
	logger      *logger.Logger
}

// NewReadingController creates a new reading controller
func NewReadingController(readingRepo interfaces.ReadingRepository, logger *logger.Logger) *ReadingController {
	return &ReadingController{
		readingRepo: readingRepo,
		logger:      logger,
	}
}

// RegisterRoutes registers the reading routes with Gin
func (c *ReadingController) RegisterRoutes(router *gin.Engine) {
	router.POST("/sensor", c.CreateReading)
	router.GET("/sensor-data", c.GetRecentReadings)
}

// CreateReading validates and persists one reading posted by the device
func (c *ReadingController) CreateReading(ctx *gin.Context) {
	var payload espmodels.SensorPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "temperature & humidity must be numbers"})
		return
	}
	if err := payload.Validate(); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "temperature & humidity must be numbers"})
		return
	}

	if _, err := c.readingRepo.CreateReading(ctx, *payload.Temperature, *payload.Humidity); err != nil {
		c.logger.ErrorWithError(err, "reading insert failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "db insert failed"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetRecentReadings serves the most recent readings, newest first
func (c *ReadingController) GetRecentReadings(ctx *gin.Context) {
	readings, err := c.readingRepo.GetRecentReadings(ctx, RecentReadingsLimit)
	if err != nil {
		c.logger.ErrorWithError(err, "reading query failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
		return
	}

	ctx.JSON(http.StatusOK, readings)
}
