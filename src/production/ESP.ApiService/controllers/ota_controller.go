package controllers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gitlab.com/espsense1/esp.sensor_server/src/production/ESP.ApiService/implementation/ota"
	config "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Config"
	logger "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Logger"
	espmodels "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Models"
)

// multipartOverhead is slack on top of the firmware ceiling for the espIp
// field and multipart boundaries.
const multipartOverhead = 64 << 10

// OtaController handles firmware uploads destined for a device's OTA
// update endpoint
type OtaController struct {
	relay          *ota.RelayService
	logger         *logger.Logger
	uploadDir      string
	maxUploadBytes int64
}

// NewOtaController creates a new OTA controller
func NewOtaController(relay *ota.RelayService, cfg *config.OTAConfig, logger *logger.Logger) *OtaController {
	return &OtaController{
		relay:          relay,
		logger:         logger,
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

// RegisterRoutes registers the OTA routes with Gin
func (c *OtaController) RegisterRoutes(router *gin.Engine) {
	router.POST("/ota-upload", c.UploadFirmware)
}

// UploadFirmware stages the uploaded binary under a per-request unique name
// and hands it to the relay. The relay owns the staged file from that point
// on and removes it whatever the outcome.
func (c *OtaController) UploadFirmware(ctx *gin.Context) {
	// Cap the body before the multipart parse so oversized uploads are
	// rejected before any staging or outbound call.
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, c.maxUploadBytes+multipartOverhead)

	file, err := ctx.FormFile(ota.FirmwareFieldName)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "firmware file exceeds upload limit"})
			return
		}
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "espIp & firmware file required"})
		return
	}

	espIP := ctx.PostForm("espIp")
	if espIP == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "espIp & firmware file required"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.logger.ErrorWithError(err, "failed to open firmware upload")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stage firmware upload"})
		return
	}
	stagedPath, err := c.stageFirmware(src)
	src.Close()
	if err != nil {
		c.logger.ErrorWithError(err, "failed to stage firmware upload")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stage firmware upload"})
		return
	}

	err = c.relay.Relay(espIP, stagedPath, file.Filename)

	var upstreamErr *espmodels.RelayUpstreamError
	var validationErr *espmodels.ValidationError
	switch {
	case err == nil:
		ctx.JSON(http.StatusOK, gin.H{"status": "ota started"})
	case errors.As(err, &validationErr):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &upstreamErr):
		// Hand the device's own verdict back to the caller.
		ctx.JSON(upstreamErr.StatusCode, gin.H{"error": upstreamErr.Message()})
	default:
		c.logger.ErrorWithError(err, "firmware relay failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// stageFirmware copies the upload into the staging directory under a
// per-request unique name. A partially written file is removed before the
// error is returned, so a failed copy never leaks a staged artifact.
func (c *OtaController) stageFirmware(src io.Reader) (string, error) {
	path := filepath.Join(c.uploadDir, uuid.NewString()+".bin")

	out, err := os.Create(path)
	if err != nil {
		return "", err
	}

	_, copyErr := io.Copy(out, src)
	closeErr := out.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.logger.ErrorWithError(err, "failed to remove partially staged firmware upload")
		}
		return "", copyErr
	}

	return path, nil
}
