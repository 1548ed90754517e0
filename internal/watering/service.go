package watering

import (
	"context"
	"time"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/datastore/v2/repository"
	"github.com/smartgarden/gardend/internal/errors"
	"github.com/smartgarden/gardend/internal/logger"
	"github.com/smartgarden/gardend/internal/observability"
)

const day = 24 * time.Hour

// Sample is one soil-moisture observation with its predecessor.
type Sample struct {
	SensorID uint
	PlantIDs []uint
	ADCBits  int
	// Previous is the last stored raw value, nil when none exists.
	Previous   *float64
	Current    float64
	DetectedAt time.Time
}

// Service records watering events and keeps schedules current.
type Service struct {
	repo    repository.WateringRepository
	log     logger.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the UTC clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(repo repository.WateringRepository, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Inspect runs the detector on a sample. When it fires, an automatic event is
// stored for every linked plant and those plants' schedules are refreshed.
func (s *Service) Inspect(ctx context.Context, sample Sample) ([]entities.WateringEvent, error) {
	if sample.Previous == nil {
		return nil, nil
	}
	if !IsWatering(*sample.Previous, sample.Current, sample.ADCBits) {
		return nil, nil
	}

	s.log.Info("watering detected",
		logger.Uint64("sensor_id", uint64(sample.SensorID)),
		logger.Float64("before", *sample.Previous),
		logger.Float64("after", sample.Current),
		logger.Int("plants", len(sample.PlantIDs)))

	events := make([]entities.WateringEvent, 0, len(sample.PlantIDs))
	for _, plantID := range sample.PlantIDs {
		before, after := *sample.Previous, sample.Current
		sensorID := sample.SensorID
		event := entities.WateringEvent{
			PlantID:        plantID,
			SensorID:       &sensorID,
			DetectedAt:     sample.DetectedAt,
			MoistureBefore: &before,
			MoistureAfter:  &after,
			Source:         entities.WateringSourceAuto,
		}
		if err := s.record(ctx, &event); err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

// RecordManual logs a watering by hand. A nil detectedAt means now.
func (s *Service) RecordManual(ctx context.Context, plantID uint, detectedAt *time.Time) (*entities.WateringEvent, error) {
	at := s.now()
	if detectedAt != nil && !detectedAt.IsZero() {
		at = detectedAt.UTC()
	}
	event := &entities.WateringEvent{
		PlantID:    plantID,
		DetectedAt: at,
		Source:     entities.WateringSourceManual,
	}
	if err := s.record(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Service) record(ctx context.Context, event *entities.WateringEvent) error {
	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return errors.New(err).
			Component("watering").
			Category(errors.CategoryStore).
			Context("plant_id", event.PlantID).
			Context("source", event.Source).
			Build()
	}
	s.metrics.RecordWatering(event.Source)
	return s.RefreshSchedules(ctx, event.PlantID)
}

// RefreshSchedules marks every enabled schedule of a plant as watered now.
func (s *Service) RefreshSchedules(ctx context.Context, plantID uint) error {
	schedules, err := s.repo.EnabledSchedules(ctx, plantID)
	if err != nil {
		return errors.New(err).
			Component("watering").
			Category(errors.CategoryStore).
			Context("plant_id", plantID).
			Build()
	}
	now := s.now()
	for i := range schedules {
		next := now.Add(time.Duration(schedules[i].IntervalDays) * day)
		if _, err := s.repo.UpdateSchedule(ctx, schedules[i].ID, repository.ScheduleUpdate{
			LastWateredAt: &now,
			NextDueAt:     &next,
		}); err != nil {
			return errors.New(err).
				Component("watering").
				Category(errors.CategoryStore).
				Context("schedule_id", schedules[i].ID).
				Build()
		}
	}
	return nil
}

// CreateSchedule adds a schedule that is first due one interval from now.
func (s *Service) CreateSchedule(ctx context.Context, plantID uint, intervalDays int, notes string) (*entities.WateringSchedule, error) {
	if intervalDays < 1 {
		return nil, errors.Newf("interval_days must be at least 1").
			Component("watering").
			Category(errors.CategoryValidation).
			Context("interval_days", intervalDays).
			Build()
	}
	next := s.now().Add(time.Duration(intervalDays) * day)
	schedule := &entities.WateringSchedule{
		PlantID:      plantID,
		IntervalDays: intervalDays,
		NextDueAt:    &next,
		Enabled:      true,
		Notes:        notes,
	}
	if err := s.repo.CreateSchedule(ctx, schedule); err != nil {
		return nil, errors.New(err).
			Component("watering").
			Category(errors.CategoryStore).
			Context("plant_id", plantID).
			Build()
	}
	return schedule, nil
}

// UpdateSchedule applies user edits. An empty update is a validation error.
func (s *Service) UpdateSchedule(ctx context.Context, id uint, update repository.ScheduleUpdate) (*entities.WateringSchedule, error) {
	if update.IsEmpty() {
		return nil, errors.Newf("no fields to update").
			Component("watering").
			Category(errors.CategoryValidation).
			Build()
	}
	if update.IntervalDays != nil && *update.IntervalDays < 1 {
		return nil, errors.Newf("interval_days must be at least 1").
			Component("watering").
			Category(errors.CategoryValidation).
			Context("interval_days", *update.IntervalDays).
			Build()
	}
	schedule, err := s.repo.UpdateSchedule(ctx, id, update)
	if err != nil {
		return nil, classify(err, "schedule_id", id)
	}
	return schedule, nil
}

func (s *Service) ListEvents(ctx context.Context, plantID uint, limit int) ([]entities.WateringEvent, error) {
	events, err := s.repo.ListEvents(ctx, plantID, limit)
	if err != nil {
		return nil, classify(err, "plant_id", plantID)
	}
	return events, nil
}

func (s *Service) DeleteEvent(ctx context.Context, id uint) error {
	return classify(s.repo.DeleteEvent(ctx, id), "event_id", id)
}

func (s *Service) ListSchedules(ctx context.Context, plantID uint) ([]entities.WateringSchedule, error) {
	schedules, err := s.repo.ListSchedules(ctx, plantID)
	if err != nil {
		return nil, classify(err, "plant_id", plantID)
	}
	return schedules, nil
}

func (s *Service) DeleteSchedule(ctx context.Context, id uint) error {
	return classify(s.repo.DeleteSchedule(ctx, id), "schedule_id", id)
}

func classify(err error, key string, id uint) error {
	if err == nil {
		return nil
	}
	category := errors.CategoryStore
	if repository.IsNotFound(err) {
		category = errors.CategoryNotFound
	}
	return errors.New(err).
		Component("watering").
		Category(category).
		Context(key, id).
		Build()
}
