package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	config "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Config"
	logger "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Logger"
	espmodels "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Models"
)

// MockReadingRepository is a mock implementation of ReadingRepository
type MockReadingRepository struct {
	mock.Mock
}

func (m *MockReadingRepository) CreateReading(ctx context.Context, temperature, humidity float64) (*espmodels.Reading, error) {
	args := m.Called(ctx, temperature, humidity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*espmodels.Reading), args.Error(1)
}

func (m *MockReadingRepository) GetRecentReadings(ctx context.Context, limit int) ([]espmodels.Reading, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]espmodels.Reading), args.Error(1)
}

func testLogger() *logger.Logger {
	return logger.NewLogger(&config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"})
}

func newReadingRouter(repo *MockReadingRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewReadingController(repo, testLogger()).RegisterRoutes(router)
	return router
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateReadingOK(t *testing.T) {
	repo := new(MockReadingRepository)
	repo.On("CreateReading", mock.Anything, 21.5, 52.0).
		Return(&espmodels.Reading{ID: 1, Temperature: 21.5, Humidity: 52}, nil)

	rec := postJSON(newReadingRouter(repo), "/sensor", `{"temperature": 21.5, "humidity": 52}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	repo.AssertExpectations(t)
}

func TestCreateReadingIgnoresUnknownFields(t *testing.T) {
	repo := new(MockReadingRepository)
	repo.On("CreateReading", mock.Anything, 21.5, 52.0).
		Return(&espmodels.Reading{ID: 1}, nil)

	rec := postJSON(newReadingRouter(repo), "/sensor",
		`{"temperature": 21.5, "humidity": 52, "battery": 3.7}`)

	require.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestCreateReadingRejectsBadPayloads(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"string temperature", `{"temperature": "23.4", "humidity": 52}`},
		{"missing humidity", `{"temperature": 21.5}`},
		{"null humidity", `{"temperature": 21.5, "humidity": null}`},
		{"boolean temperature", `{"temperature": true, "humidity": 52}`},
		{"empty body", ``},
		{"not an object", `[1, 2]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(MockReadingRepository)
			rec := postJSON(newReadingRouter(repo), "/sensor", tc.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			repo.AssertNotCalled(t, "CreateReading", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreateReadingStoreFailure(t *testing.T) {
	repo := new(MockReadingRepository)
	repo.On("CreateReading", mock.Anything, 21.5, 52.0).
		Return(nil, &espmodels.StorageError{Op: "insert reading", WrappedErr: errors.New("disk full")})

	rec := postJSON(newReadingRouter(repo), "/sensor", `{"temperature": 21.5, "humidity": 52}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetRecentReadings(t *testing.T) {
	now := time.Now().UTC()
	stored := []espmodels.Reading{
		{ID: 3, Temperature: 22, Humidity: 48, Timestamp: now},
		{ID: 2, Temperature: 21.5, Humidity: 52, Timestamp: now.Add(-time.Minute)},
	}

	repo := new(MockReadingRepository)
	repo.On("GetRecentReadings", mock.Anything, RecentReadingsLimit).Return(stored, nil)

	req := httptest.NewRequest(http.MethodGet, "/sensor-data", nil)
	rec := httptest.NewRecorder()
	newReadingRouter(repo).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got []espmodels.Reading
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	require.Equal(t, uint(3), got[0].ID)
	require.Equal(t, 22.0, got[0].Temperature)
	repo.AssertExpectations(t)
}

func TestGetRecentReadingsStoreFailure(t *testing.T) {
	repo := new(MockReadingRepository)
	repo.On("GetRecentReadings", mock.Anything, RecentReadingsLimit).
		Return(nil, &espmodels.StorageError{Op: "query recent readings", WrappedErr: errors.New("locked")})

	req := httptest.NewRequest(http.MethodGet, "/sensor-data", nil)
	rec := httptest.NewRecorder()
	newReadingRouter(repo).ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
