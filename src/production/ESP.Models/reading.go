package espmodels

import (
	"time"
)

// Reading is a single persisted temperature/humidity observation. Rows are
// append-only: the store never updates or deletes them.
type Reading struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Temperature float64   `gorm:"not null" json:"temperature"`
	Humidity    float64   `gorm:"not null" json:"humidity"`
	Timestamp   time.Time `gorm:"index;autoCreateTime" json:"timestamp"`
}

// TableName keeps the table name stable regardless of gorm's pluralization
func (Reading) TableName() string {
	return "readings"
}
