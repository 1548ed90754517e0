package repository

import (
	"context"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
)

// NotificationChannelRepository handles notification channel CRUD.
type NotificationChannelRepository interface {
	List(ctx context.Context) ([]entities.NotificationChannel, error)
	ListEnabled(ctx context.Context) ([]entities.NotificationChannel, error)
	Get(ctx context.Context, id uint) (*entities.NotificationChannel, error)
	Create(ctx context.Context, channel *entities.NotificationChannel) error
	Update(ctx context.Context, id uint, update ChannelUpdate) (*entities.NotificationChannel, error)
	Delete(ctx context.Context, id uint) error
}

// ChannelUpdate lists the mutable channel fields. A non-nil Config replaces the
// stored config entirely.
type ChannelUpdate struct {
	ChannelType *string
	Config      map[string]any
	Enabled     *bool
}

// IsEmpty reports whether the update changes nothing.
func (u ChannelUpdate) IsEmpty() bool {
	return u.ChannelType == nil && u.Config == nil && u.Enabled == nil
}
