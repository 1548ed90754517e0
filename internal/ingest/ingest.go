// Package ingest runs a telemetry batch through registration, storage,
// watering detection and alert evaluation.
package ingest

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/smartgarden/gardend/internal/alerting"
	"github.com/smartgarden/gardend/internal/calibration"
	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/datastore/v2/repository"
	"github.com/smartgarden/gardend/internal/errors"
	"github.com/smartgarden/gardend/internal/logger"
	"github.com/smartgarden/gardend/internal/observability"
	"github.com/smartgarden/gardend/internal/watering"
)

const componentName = "ingest"

// Transports label where a batch came from.
const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

// StatusOK is the status reported for a stored batch.
const StatusOK = "ok"

// Item is one metric value in a batch.
type Item struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
}

// Batch is the payload a sensor node posts.
type Batch struct {
	MAC        string `json:"mac"`
	Readings   []Item `json:"readings"`
	RecordedAt int64  `json:"recorded_at"` // unix seconds
	ADCBits    *int   `json:"adc_bits,omitempty"`
	BoardType  string `json:"board_type,omitempty"`
}

// Result acknowledges a stored batch.
type Result struct {
	Status          string `json:"status"`
	Inserted        int    `json:"inserted"`
	AlertsTriggered int    `json:"alerts_triggered"`
}

// Validate rejects malformed batches before any store access.
func (b *Batch) Validate() error {
	if strings.TrimSpace(b.MAC) == "" {
		return invalid("mac", b.MAC, "mac is required")
	}
	if len(b.Readings) == 0 {
		return invalid("readings", 0, "at least one reading is required")
	}
	if b.RecordedAt <= 0 {
		return invalid("recorded_at", b.RecordedAt, "recorded_at must be a positive unix timestamp")
	}
	for i := range b.Readings {
		r := &b.Readings[i]
		if !entities.IsValidMetric(r.Metric) {
			return invalid("metric", r.Metric, "unknown metric")
		}
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			return invalid("value", r.Metric, "value must be a finite number")
		}
	}
	return nil
}

// supportedADCBits returns the batch resolution hint when it is 10 or 12.
func (b *Batch) supportedADCBits() (int, bool) {
	if b.ADCBits == nil || !calibration.IsSupportedADCBits(*b.ADCBits) {
		return 0, false
	}
	return *b.ADCBits, true
}

func (b *Batch) soilMoisture() (float64, bool) {
	for _, r := range b.Readings {
		if r.Metric == entities.MetricSoilMoisture {
			return r.Value, true
		}
	}
	return 0, false
}

// Evaluator is the alert engine as seen by ingest.
type Evaluator interface {
	Evaluate(ctx context.Context, sensorID uint, measurements []alerting.Measurement) (int, error)
}

// WateringInspector is the watering detector as seen by ingest.
type WateringInspector interface {
	Inspect(ctx context.Context, sample watering.Sample) ([]entities.WateringEvent, error)
}

// Service processes telemetry batches.
type Service struct {
	sensors  repository.SensorRepository
	plants   repository.PlantRepository
	readings repository.ReadingRepository
	watering WateringInspector
	alerts   Evaluator
	now      func() time.Time
	metrics  *observability.Metrics
	log      logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the UTC clock used for last-seen stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates the ingest pipeline over a store.
func NewService(store *repository.Store, inspector WateringInspector, alerts Evaluator, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		sensors:  store.Sensors,
		plants:   store.Plants,
		readings: store.Readings,
		watering: inspector,
		alerts:   alerts,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.Module(componentName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest stores a batch and runs watering detection and alert evaluation on
// it. The prior soil-moisture sample is read before the batch is inserted.
func (s *Service) Ingest(ctx context.Context, transport string, batch *Batch) (res *Result, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordIngest(transport, err == nil, time.Since(start))
	}()

	if err := batch.Validate(); err != nil {
		return nil, err
	}
	mac := strings.TrimSpace(batch.MAC)
	recordedAt := time.Unix(batch.RecordedAt, 0).UTC()

	sensor, err := s.resolveSensor(ctx, mac, batch)
	if err != nil {
		return nil, err
	}
	if err := s.touchSensor(ctx, sensor, batch); err != nil {
		return nil, err
	}

	plantIDs, err := s.plants.PlantLinks(ctx, sensor.ID)
	if err != nil {
		return nil, storeError(err, "plant_links").Context("sensor_id", sensor.ID).Build()
	}
	var plantID *uint
	if len(plantIDs) > 0 {
		first := plantIDs[0]
		plantID = &first
	}

	soil, hasSoil := batch.soilMoisture()
	var previousSoil *float64
	if hasSoil {
		prev, err := s.readings.LatestReading(ctx, sensor.ID, entities.MetricSoilMoisture)
		switch {
		case errors.Is(err, repository.ErrReadingNotFound):
		case err != nil:
			return nil, storeError(err, "latest_reading").Context("sensor_id", sensor.ID).Build()
		default:
			v := prev.Value
			previousSoil = &v
		}
	}

	rows := make([]entities.Reading, len(batch.Readings))
	for i, r := range batch.Readings {
		rows[i] = entities.Reading{
			SensorID:   sensor.ID,
			Metric:     r.Metric,
			Value:      r.Value,
			RecordedAt: recordedAt,
			PlantID:    plantID,
		}
	}
	inserted, err := s.readings.InsertReadings(ctx, rows)
	if err != nil {
		return nil, storeError(err, "insert_readings").Context("sensor_id", sensor.ID).Build()
	}
	if inserted == 0 {
		return nil, storeError(errors.NewStd("no readings were stored"), "insert_readings").
			Context("sensor_id", sensor.ID).
			Build()
	}
	for _, r := range rows {
		s.metrics.RecordReading(r.Metric)
	}

	if hasSoil && s.watering != nil {
		_, err := s.watering.Inspect(ctx, watering.Sample{
			SensorID:   sensor.ID,
			PlantIDs:   plantIDs,
			ADCBits:    effectiveADCBits(sensor, batch),
			Previous:   previousSoil,
			Current:    soil,
			DetectedAt: recordedAt,
		})
		if err != nil {
			return nil, err
		}
	}

	triggered := 0
	if s.alerts != nil {
		measurements := make([]alerting.Measurement, len(batch.Readings))
		for i, r := range batch.Readings {
			measurements[i] = alerting.Measurement{Metric: r.Metric, Value: r.Value}
		}
		triggered, err = s.alerts.Evaluate(ctx, sensor.ID, measurements)
		if err != nil {
			return nil, err
		}
	}

	s.log.Debug("telemetry batch stored",
		logger.String("transport", transport),
		logger.Uint64("sensor_id", uint64(sensor.ID)),
		logger.Int("inserted", inserted),
		logger.Int("alerts_triggered", triggered))

	return &Result{Status: StatusOK, Inserted: inserted, AlertsTriggered: triggered}, nil
}

// resolveSensor finds the sensor by address, registering it on first contact.
func (s *Service) resolveSensor(ctx context.Context, mac string, batch *Batch) (*entities.Sensor, error) {
	sensor, err := s.sensors.FindByAddress(ctx, mac)
	if err == nil {
		return sensor, nil
	}
	if !errors.Is(err, repository.ErrSensorNotFound) {
		return nil, storeError(err, "find_sensor").Context("mac", mac).Build()
	}

	sensor = &entities.Sensor{Name: mac, MACAddress: mac, ADCBits: calibration.ADCBits10}
	if bits, ok := batch.supportedADCBits(); ok {
		sensor.ADCBits = bits
	}
	if err := s.sensors.Create(ctx, sensor); err != nil {
		return nil, storeError(err, "register_sensor").Context("mac", mac).Build()
	}
	s.log.Info("registered new sensor",
		logger.Uint64("sensor_id", uint64(sensor.ID)),
		logger.String("mac", mac),
		logger.Int("adc_bits", sensor.ADCBits))
	return sensor, nil
}

// touchSensor applies the resolution hint, the board link and last-seen.
// An unknown board slug is ignored.
func (s *Service) touchSensor(ctx context.Context, sensor *entities.Sensor, batch *Batch) error {
	now := s.now()
	update := repository.SensorUpdate{LastSeenAt: &now}
	if bits, ok := batch.supportedADCBits(); ok {
		update.ADCBits = &bits
	}

	if slug := strings.TrimSpace(batch.BoardType); slug != "" {
		board, err := s.sensors.FindBoardTypeBySlug(ctx, slug)
		switch {
		case err == nil:
			update.BoardTypeID = &board.ID
		case errors.Is(err, repository.ErrBoardTypeNotFound):
			s.log.Debug("unknown board type", logger.String("board_type", slug))
		default:
			s.log.Warn("board type lookup failed",
				logger.String("board_type", slug),
				logger.Error(err))
		}
	}

	if err := s.sensors.Update(ctx, sensor.ID, update); err != nil {
		return storeError(err, "update_sensor").Context("sensor_id", sensor.ID).Build()
	}
	return nil
}

// effectiveADCBits prefers a valid batch hint over the stored resolution.
func effectiveADCBits(sensor *entities.Sensor, batch *Batch) int {
	if bits, ok := batch.supportedADCBits(); ok {
		return bits
	}
	if sensor.ADCBits != 0 {
		return sensor.ADCBits
	}
	return calibration.ADCBits10
}

func invalid(field string, value any, msg string) error {
	return errors.Newf("invalid batch: %s", msg).
		Component(componentName).
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", value).
		Build()
}

func storeError(err error, op string) *errors.ErrorBuilder {
	return errors.New(err).
		Component(componentName).
		Category(errors.CategoryStore).
		Context("operation", op)
}
