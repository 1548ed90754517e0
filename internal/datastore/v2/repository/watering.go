package repository

import (
	"context"
	"time"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
)

// WateringRepository stores watering events and schedules.
type WateringRepository interface {
	CreateEvent(ctx context.Context, event *entities.WateringEvent) error
	// ListEvents returns a plant's events, most recent first.
	ListEvents(ctx context.Context, plantID uint, limit int) ([]entities.WateringEvent, error)
	DeleteEvent(ctx context.Context, id uint) error

	EnabledSchedules(ctx context.Context, plantID uint) ([]entities.WateringSchedule, error)
	ListSchedules(ctx context.Context, plantID uint) ([]entities.WateringSchedule, error)
	GetSchedule(ctx context.Context, id uint) (*entities.WateringSchedule, error)
	CreateSchedule(ctx context.Context, schedule *entities.WateringSchedule) error
	UpdateSchedule(ctx context.Context, id uint, update ScheduleUpdate) (*entities.WateringSchedule, error)
	DeleteSchedule(ctx context.Context, id uint) error
}

// ScheduleUpdate lists the mutable schedule fields. Nil fields are left
// unchanged.
type ScheduleUpdate struct {
	IntervalDays  *int
	Enabled       *bool
	Notes         *string
	LastWateredAt *time.Time
	NextDueAt     *time.Time
}

// IsEmpty reports whether the update changes nothing.
func (u ScheduleUpdate) IsEmpty() bool {
	return u.IntervalDays == nil && u.Enabled == nil && u.Notes == nil &&
		u.LastWateredAt == nil && u.NextDueAt == nil
}

func (u ScheduleUpdate) apply(s *entities.WateringSchedule) {
	if u.IntervalDays != nil {
		s.IntervalDays = *u.IntervalDays
	}
	if u.Enabled != nil {
		s.Enabled = *u.Enabled
	}
	if u.Notes != nil {
		s.Notes = *u.Notes
	}
	if u.LastWateredAt != nil {
		t := *u.LastWateredAt
		s.LastWateredAt = &t
	}
	if u.NextDueAt != nil {
		t := *u.NextDueAt
		s.NextDueAt = &t
	}
}
