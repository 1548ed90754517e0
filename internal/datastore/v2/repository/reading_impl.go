package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/errors"
)

type readingRepository struct {
	db *gorm.DB
}

// NewReadingRepository creates a new ReadingRepository.
func NewReadingRepository(db *gorm.DB) ReadingRepository {
	return &readingRepository{db: db}
}

func (r *readingRepository) InsertReadings(ctx context.Context, rows []entities.Reading) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Create(&rows)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to insert readings: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (r *readingRepository) LatestReading(ctx context.Context, sensorID uint, metric string) (*entities.Reading, error) {
	var reading entities.Reading
	err := r.db.WithContext(ctx).
		Where("sensor_id = ? AND metric = ?", sensorID, metric).
		Order("recorded_at DESC, id DESC").
		First(&reading).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReadingNotFound
		}
		return nil, fmt.Errorf("failed to get latest %s reading for sensor %d: %w", metric, sensorID, err)
	}
	return &reading, nil
}

func (r *readingRepository) ListReadings(ctx context.Context, filter ReadingFilter) ([]entities.Reading, error) {
	query := r.db.WithContext(ctx).Model(&entities.Reading{})
	if filter.SensorID > 0 {
		query = query.Where("sensor_id = ?", filter.SensorID)
	}
	if filter.Metric != "" {
		query = query.Where("metric = ?", filter.Metric)
	}
	if !filter.From.IsZero() {
		query = query.Where("recorded_at >= ?", filter.From)
	}
	if !filter.Until.IsZero() {
		query = query.Where("recorded_at <= ?", filter.Until)
	}
	if !filter.Before.IsZero() {
		query = query.Where("recorded_at < ?", filter.Before)
	}
	if filter.Ascending {
		query = query.Order("recorded_at ASC, id ASC")
	} else {
		query = query.Order("recorded_at DESC, id DESC")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var readings []entities.Reading
	if err := query.Find(&readings).Error; err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	return readings, nil
}
