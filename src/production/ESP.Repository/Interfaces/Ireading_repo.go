package interfaces

import (
	"context"

	espmodels "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Models"
)

// ReadingRepository is the contract for the durable reading store. Every
// query hits the backing store directly; there is no in-memory cache.
type ReadingRepository interface {
	// CreateReading appends a reading. The id is assigned by the store and
	// the timestamp defaults to write time. Persistence failures surface as
	// *espmodels.StorageError.
	CreateReading(ctx context.Context, temperature, humidity float64) (*espmodels.Reading, error)

	// GetRecentReadings returns up to limit readings ordered newest first.
	// An empty store yields an empty slice, not an error.
	GetRecentReadings(ctx context.Context, limit int) ([]espmodels.Reading, error)
}
