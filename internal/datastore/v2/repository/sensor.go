package repository

import (
	"context"
	"time"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
)

// SensorRepository handles sensor registration and board type lookup.
type SensorRepository interface {
	Get(ctx context.Context, id uint) (*entities.Sensor, error)
	FindByAddress(ctx context.Context, mac string) (*entities.Sensor, error)
	Create(ctx context.Context, sensor *entities.Sensor) error
	Update(ctx context.Context, id uint, update SensorUpdate) error
	FindBoardTypeBySlug(ctx context.Context, slug string) (*entities.BoardType, error)
}

// SensorUpdate lists the sensor columns touched on each ingest. Nil fields are
// left unchanged.
type SensorUpdate struct {
	ADCBits     *int
	BoardTypeID *uint
	LastSeenAt  *time.Time
}

func (u SensorUpdate) columns() map[string]any {
	cols := make(map[string]any, 3)
	if u.ADCBits != nil {
		cols["adc_bits"] = *u.ADCBits
	}
	if u.BoardTypeID != nil {
		cols["board_type_id"] = *u.BoardTypeID
	}
	if u.LastSeenAt != nil {
		cols["last_seen_at"] = *u.LastSeenAt
	}
	return cols
}

// PlantRepository resolves the sensor to plant to soil type chain used by
// calibration and reading attribution.
type PlantRepository interface {
	// PlantLinks returns the plant IDs linked to a sensor, oldest link first.
	PlantLinks(ctx context.Context, sensorID uint) ([]uint, error)
	GetPlant(ctx context.Context, id uint) (*entities.Plant, error)
	GetSoilType(ctx context.Context, id uint) (*entities.SoilType, error)
}
