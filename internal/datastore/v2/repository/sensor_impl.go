package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/errors"
)

type sensorRepository struct {
	db *gorm.DB
}

// NewSensorRepository creates a new SensorRepository.
func NewSensorRepository(db *gorm.DB) SensorRepository {
	return &sensorRepository{db: db}
}

func (r *sensorRepository) Get(ctx context.Context, id uint) (*entities.Sensor, error) {
	var sensor entities.Sensor
	if err := r.db.WithContext(ctx).First(&sensor, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSensorNotFound
		}
		return nil, fmt.Errorf("failed to get sensor %d: %w", id, err)
	}
	return &sensor, nil
}

// FindByAddress returns the sensor registered under mac, or ErrSensorNotFound.
func (r *sensorRepository) FindByAddress(ctx context.Context, mac string) (*entities.Sensor, error) {
	var sensor entities.Sensor
	if err := r.db.WithContext(ctx).Where("mac_address = ?", mac).First(&sensor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSensorNotFound
		}
		return nil, fmt.Errorf("failed to find sensor %s: %w", mac, err)
	}
	return &sensor, nil
}

func (r *sensorRepository) Create(ctx context.Context, sensor *entities.Sensor) error {
	if err := r.db.WithContext(ctx).Create(sensor).Error; err != nil {
		return fmt.Errorf("failed to create sensor: %w", err)
	}
	return nil
}

func (r *sensorRepository) Update(ctx context.Context, id uint, update SensorUpdate) error {
	cols := update.columns()
	if len(cols) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&entities.Sensor{}).Where("id = ?", id).Updates(cols)
	if result.Error != nil {
		return fmt.Errorf("failed to update sensor %d: %w", id, result.Error)
	}
	return nil
}

func (r *sensorRepository) FindBoardTypeBySlug(ctx context.Context, slug string) (*entities.BoardType, error) {
	var board entities.BoardType
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&board).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBoardTypeNotFound
		}
		return nil, fmt.Errorf("failed to find board type %s: %w", slug, err)
	}
	return &board, nil
}

type plantRepository struct {
	db *gorm.DB
}

// NewPlantRepository creates a new PlantRepository.
func NewPlantRepository(db *gorm.DB) PlantRepository {
	return &plantRepository{db: db}
}

func (r *plantRepository) PlantLinks(ctx context.Context, sensorID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&entities.SensorPlant{}).
		Where("sensor_id = ?", sensorID).
		Order("created_at ASC, plant_id ASC").
		Pluck("plant_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list plants for sensor %d: %w", sensorID, err)
	}
	return ids, nil
}

func (r *plantRepository) GetPlant(ctx context.Context, id uint) (*entities.Plant, error) {
	var plant entities.Plant
	if err := r.db.WithContext(ctx).First(&plant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlantNotFound
		}
		return nil, fmt.Errorf("failed to get plant %d: %w", id, err)
	}
	return &plant, nil
}

func (r *plantRepository) GetSoilType(ctx context.Context, id uint) (*entities.SoilType, error) {
	var soil entities.SoilType
	if err := r.db.WithContext(ctx).First(&soil, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSoilTypeNotFound
		}
		return nil, fmt.Errorf("failed to get soil type %d: %w", id, err)
	}
	return &soil, nil
}
