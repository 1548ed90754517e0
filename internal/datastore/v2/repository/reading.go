package repository

import (
	"context"
	"time"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
)

// ReadingRepository stores and queries raw measurements.
type ReadingRepository interface {
	// InsertReadings appends rows and returns the number stored.
	InsertReadings(ctx context.Context, rows []entities.Reading) (int, error)
	// LatestReading returns the most recent stored sample of a metric, or
	// ErrReadingNotFound.
	LatestReading(ctx context.Context, sensorID uint, metric string) (*entities.Reading, error)
	ListReadings(ctx context.Context, filter ReadingFilter) ([]entities.Reading, error)
}

// ReadingFilter controls reading queries. Zero values mean "no constraint".
// From and Until are inclusive; Before is exclusive.
type ReadingFilter struct {
	SensorID  uint
	Metric    string
	From      time.Time
	Until     time.Time
	Before    time.Time
	Ascending bool
	Limit     int
	Offset    int
}
