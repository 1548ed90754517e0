package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/errors"
)

type wateringRepository struct {
	db *gorm.DB
}

// NewWateringRepository creates a new WateringRepository.
func NewWateringRepository(db *gorm.DB) WateringRepository {
	return &wateringRepository{db: db}
}

func (r *wateringRepository) CreateEvent(ctx context.Context, event *entities.WateringEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to create watering event: %w", err)
	}
	return nil
}

func (r *wateringRepository) ListEvents(ctx context.Context, plantID uint, limit int) ([]entities.WateringEvent, error) {
	var events []entities.WateringEvent
	query := r.db.WithContext(ctx).Where("plant_id = ?", plantID).Order("detected_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list watering events for plant %d: %w", plantID, err)
	}
	return events, nil
}

func (r *wateringRepository) DeleteEvent(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.WateringEvent{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete watering event %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrWateringEventNotFound
	}
	return nil
}

func (r *wateringRepository) EnabledSchedules(ctx context.Context, plantID uint) ([]entities.WateringSchedule, error) {
	var schedules []entities.WateringSchedule
	err := r.db.WithContext(ctx).
		Where("plant_id = ? AND enabled = ?", plantID, true).
		Order("id ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled schedules for plant %d: %w", plantID, err)
	}
	return schedules, nil
}

func (r *wateringRepository) ListSchedules(ctx context.Context, plantID uint) ([]entities.WateringSchedule, error) {
	var schedules []entities.WateringSchedule
	if err := r.db.WithContext(ctx).Where("plant_id = ?", plantID).Order("id ASC").Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("failed to list schedules for plant %d: %w", plantID, err)
	}
	return schedules, nil
}

func (r *wateringRepository) GetSchedule(ctx context.Context, id uint) (*entities.WateringSchedule, error) {
	var schedule entities.WateringSchedule
	if err := r.db.WithContext(ctx).First(&schedule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWateringScheduleNotFound
		}
		return nil, fmt.Errorf("failed to get watering schedule %d: %w", id, err)
	}
	return &schedule, nil
}

func (r *wateringRepository) CreateSchedule(ctx context.Context, schedule *entities.WateringSchedule) error {
	if err := r.db.WithContext(ctx).Create(schedule).Error; err != nil {
		return fmt.Errorf("failed to create watering schedule: %w", err)
	}
	return nil
}

// UpdateSchedule applies update and returns the stored schedule.
func (r *wateringRepository) UpdateSchedule(ctx context.Context, id uint, update ScheduleUpdate) (*entities.WateringSchedule, error) {
	var schedule entities.WateringSchedule
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&schedule, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWateringScheduleNotFound
			}
			return fmt.Errorf("failed to get watering schedule %d: %w", id, err)
		}
		update.apply(&schedule)
		if err := tx.Save(&schedule).Error; err != nil {
			return fmt.Errorf("failed to update watering schedule %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *wateringRepository) DeleteSchedule(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.WateringSchedule{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete watering schedule %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrWateringScheduleNotFound
	}
	return nil
}
