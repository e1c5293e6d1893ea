package ota

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"
	config "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Config"
	logger "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Logger"
	espmodels "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Models"
)

// FirmwareFieldName is the multipart field the device firmware expects
const FirmwareFieldName = "firmware"

// RelayService forwards an uploaded firmware binary to a device's own OTA
// update endpoint. It owns the staged artifact once Relay is called and
// removes it exactly once, whatever the outcome.
type RelayService struct {
	client         *resty.Client
	logger         *logger.Logger
	fixedUpdateURL string
}

// NewRelayService creates a new firmware relay service
func NewRelayService(cfg *config.OTAConfig, log *logger.Logger) *RelayService {
	client := resty.New().
		SetTimeout(cfg.Timeout)

	return &RelayService{
		client:         client,
		logger:         log.WithComponent("ota-relay"),
		fixedUpdateURL: cfg.FixedUpdateURL,
	}
}

// UpdateURL returns the device update endpoint for a relay attempt. A
// configured fixed URL wins; otherwise the endpoint is derived from the
// caller-supplied device address.
func (s *RelayService) UpdateURL(targetAddress string) string {
	if s.fixedUpdateURL != "" {
		return s.fixedUpdateURL
	}
	return fmt.Sprintf("http://%s/update", targetAddress)
}

// Relay streams the staged firmware artifact at stagedPath to the device's
// update endpoint. A nil return means the device accepted the update; it
// applies and reboots asynchronously, which is not waited for.
//
// The staged artifact is removed before Relay returns on every path. The
// outbound exchange runs on a detached context so an aborted inbound
// connection cancels neither the device update nor the cleanup.
func (s *RelayService) Relay(targetAddress, stagedPath, originalName string) error {
	defer s.removeStaged(stagedPath)

	if targetAddress == "" && s.fixedUpdateURL == "" {
		return &espmodels.ValidationError{Field: "espIp", Reason: "must not be empty"}
	}

	file, err := os.Open(stagedPath)
	if err != nil {
		return fmt.Errorf("open staged firmware: %w", err)
	}
	defer file.Close()

	updateURL := s.UpdateURL(targetAddress)
	s.logger.WithField("update_url", updateURL).
		WithField("firmware", originalName).
		Info("relaying firmware to device")

	resp, err := s.client.R().
		SetContext(context.Background()).
		SetFileReader(FirmwareFieldName, originalName, file).
		Post(updateURL)
	if err != nil {
		return &espmodels.RelayTransportError{UpdateURL: updateURL, WrappedErr: err}
	}

	// Anything but a 2xx from the device is a rejection, 3xx included.
	if !resp.IsSuccess() {
		return &espmodels.RelayUpstreamError{
			UpdateURL:     updateURL,
			StatusCode:    resp.StatusCode(),
			DeviceMessage: strings.TrimSpace(resp.String()),
		}
	}

	s.logger.WithField("update_url", updateURL).Info("device accepted firmware")
	return nil
}

// removeStaged deletes the staged artifact. A removal failure is logged and
// never overrides the relay outcome.
func (s *RelayService) removeStaged(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.WithField("path", path).
			ErrorWithError(err, "failed to remove staged firmware artifact")
	}
}
