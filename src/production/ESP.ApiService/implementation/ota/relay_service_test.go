package ota

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	config "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Config"
	logger "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Logger"
	espmodels "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Models"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"})
}

func newRelay(t *testing.T, fixedURL string) *RelayService {
	t.Helper()
	return NewRelayService(&config.OTAConfig{
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 10 << 20,
		Timeout:        5 * time.Second,
		FixedUpdateURL: fixedURL,
	}, testLogger())
}

func stageFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "staged.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func requireRemoved(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "staged artifact must be removed after the relay attempt")
}

func TestRelaySuccess(t *testing.T) {
	var gotFilename string
	var gotBody []byte

	device := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/update", r.URL.Path)

		file, header, err := r.FormFile(FirmwareFieldName)
		require.NoError(t, err)
		defer file.Close()

		gotFilename = header.Filename
		gotBody, err = io.ReadAll(file)
		require.NoError(t, err)

		w.WriteHeader(http.StatusOK)
	}))
	defer device.Close()

	staged := stageFile(t, []byte("firmware-image-bytes"))
	targetAddress := strings.TrimPrefix(device.URL, "http://")

	err := newRelay(t, "").Relay(targetAddress, staged, "blink-v2.bin")
	require.NoError(t, err)
	require.Equal(t, "blink-v2.bin", gotFilename)
	require.Equal(t, []byte("firmware-image-bytes"), gotBody)
	requireRemoved(t, staged)
}

func TestRelayDeviceRejection(t *testing.T) {
	device := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("device busy"))
	}))
	defer device.Close()

	staged := stageFile(t, make([]byte, 1024))
	targetAddress := strings.TrimPrefix(device.URL, "http://")

	err := newRelay(t, "").Relay(targetAddress, staged, "fw.bin")

	var upstreamErr *espmodels.RelayUpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	require.Equal(t, http.StatusServiceUnavailable, upstreamErr.StatusCode)
	require.Equal(t, "device busy", upstreamErr.Message())
	requireRemoved(t, staged)
}

func TestRelayNonSuccessStatusIsRejection(t *testing.T) {
	// A 304 to the update POST is not an acceptance.
	device := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer device.Close()

	staged := stageFile(t, []byte("payload"))
	targetAddress := strings.TrimPrefix(device.URL, "http://")

	err := newRelay(t, "").Relay(targetAddress, staged, "fw.bin")

	var upstreamErr *espmodels.RelayUpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	require.Equal(t, http.StatusNotModified, upstreamErr.StatusCode)
	requireRemoved(t, staged)
}

func TestRelayTransportFailure(t *testing.T) {
	staged := stageFile(t, []byte("payload"))

	// Nothing listens on port 1.
	err := newRelay(t, "").Relay("127.0.0.1:1", staged, "fw.bin")

	var transportErr *espmodels.RelayTransportError
	require.True(t, errors.As(err, &transportErr))
	requireRemoved(t, staged)
}

func TestRelayMissingTargetAddress(t *testing.T) {
	staged := stageFile(t, []byte("payload"))

	err := newRelay(t, "").Relay("", staged, "fw.bin")

	var validationErr *espmodels.ValidationError
	require.True(t, errors.As(err, &validationErr))
	requireRemoved(t, staged)
}

func TestRelayFixedUpdateURLOverridesTarget(t *testing.T) {
	var hit bool
	device := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.WriteHeader(http.StatusOK)
	}))
	defer device.Close()

	staged := stageFile(t, []byte("payload"))
	relay := newRelay(t, device.URL+"/update")

	// The caller-supplied address is ignored when a fixed URL is configured.
	err := relay.Relay("10.0.0.99", staged, "fw.bin")
	require.NoError(t, err)
	require.True(t, hit)
	requireRemoved(t, staged)
}

func TestUpdateURLDerivation(t *testing.T) {
	require.Equal(t, "http://192.168.4.1/update", newRelay(t, "").UpdateURL("192.168.4.1"))
	require.Equal(t, "http://esp/update", newRelay(t, "http://esp/update").UpdateURL("192.168.4.1"))
}
