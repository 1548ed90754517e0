package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/errors"
)

type notificationChannelRepository struct {
	db *gorm.DB
}

// NewNotificationChannelRepository creates a new NotificationChannelRepository.
func NewNotificationChannelRepository(db *gorm.DB) NotificationChannelRepository {
	return &notificationChannelRepository{db: db}
}

func (r *notificationChannelRepository) List(ctx context.Context) ([]entities.NotificationChannel, error) {
	var channels []entities.NotificationChannel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("failed to list notification channels: %w", err)
	}
	return channels, nil
}

func (r *notificationChannelRepository) ListEnabled(ctx context.Context) ([]entities.NotificationChannel, error) {
	var channels []entities.NotificationChannel
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("id ASC").Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("failed to list enabled notification channels: %w", err)
	}
	return channels, nil
}

func (r *notificationChannelRepository) Get(ctx context.Context, id uint) (*entities.NotificationChannel, error) {
	var channel entities.NotificationChannel
	if err := r.db.WithContext(ctx).First(&channel, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to get notification channel %d: %w", id, err)
	}
	return &channel, nil
}

func (r *notificationChannelRepository) Create(ctx context.Context, channel *entities.NotificationChannel) error {
	if err := r.db.WithContext(ctx).Create(channel).Error; err != nil {
		return fmt.Errorf("failed to create notification channel: %w", err)
	}
	return nil
}

// Update loads the channel, applies update and saves it so the config column
// goes through the JSON serializer.
func (r *notificationChannelRepository) Update(ctx context.Context, id uint, update ChannelUpdate) (*entities.NotificationChannel, error) {
	var channel entities.NotificationChannel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&channel, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChannelNotFound
			}
			return fmt.Errorf("failed to get notification channel %d: %w", id, err)
		}
		if update.ChannelType != nil {
			channel.ChannelType = *update.ChannelType
		}
		if update.Config != nil {
			channel.Config = update.Config
		}
		if update.Enabled != nil {
			channel.Enabled = *update.Enabled
		}
		if err := tx.Save(&channel).Error; err != nil {
			return fmt.Errorf("failed to update notification channel %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

func (r *notificationChannelRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.NotificationChannel{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete notification channel %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrChannelNotFound
	}
	return nil
}
