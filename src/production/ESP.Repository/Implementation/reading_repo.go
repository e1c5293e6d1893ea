package implementation

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	espmodels "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Models"
	"gorm.io/gorm"
)

// SqliteReadingRepository persists readings to a local SQLite database
type SqliteReadingRepository struct {
	db *gorm.DB
}

// OpenSqlite opens (creating if necessary) the SQLite database at path and
// migrates the readings table.
func OpenSqlite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&espmodels.Reading{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// NewSqliteReadingRepository creates a new reading repository
func NewSqliteReadingRepository(db *gorm.DB) *SqliteReadingRepository {
	return &SqliteReadingRepository{db: db}
}

func (r *SqliteReadingRepository) CreateReading(ctx context.Context, temperature, humidity float64) (*espmodels.Reading, error) {
	reading := &espmodels.Reading{
		Temperature: temperature,
		Humidity:    humidity,
	}
	if err := r.db.WithContext(ctx).Create(reading).Error; err != nil {
		return nil, &espmodels.StorageError{Op: "insert reading", WrappedErr: err}
	}
	return reading, nil
}

func (r *SqliteReadingRepository) GetRecentReadings(ctx context.Context, limit int) ([]espmodels.Reading, error) {
	var readings []espmodels.Reading

	// Secondary id ordering keeps the sequence deterministic when
	// concurrent inserts land on the same timestamp.
	err := r.db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&readings).Error
	if err != nil {
		return nil, &espmodels.StorageError{Op: "query recent readings", WrappedErr: err}
	}

	if readings == nil {
		readings = []espmodels.Reading{}
	}
	return readings, nil
}
