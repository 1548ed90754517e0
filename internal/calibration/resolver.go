package calibration

import (
	"context"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/logger"
)

// Target identifies what is being calibrated.
type Target struct {
	SensorID uint
	ADCBits  int
}

// Source is one link in the resolution chain. ok is false when the source
// has no opinion and the next source should be asked.
type Source interface {
	Resolve(ctx context.Context, target Target) (cal Calibration, ok bool)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, target Target) (Calibration, bool)

func (f SourceFunc) Resolve(ctx context.Context, target Target) (Calibration, bool) {
	return f(ctx, target)
}

// SensorLookup loads a sensor by ID.
type SensorLookup interface {
	Get(ctx context.Context, id uint) (*entities.Sensor, error)
}

// PlantLookup walks sensor links to plants and soil types.
type PlantLookup interface {
	PlantLinks(ctx context.Context, sensorID uint) ([]uint, error)
	GetPlant(ctx context.Context, id uint) (*entities.Plant, error)
	GetSoilType(ctx context.Context, id uint) (*entities.SoilType, error)
}

// Resolver runs the source chain for a sensor.
type Resolver struct {
	sensors SensorLookup
	chain   []Source
	log     logger.Logger
}

// NewResolver builds the standard chain: the soil type of the sensor's first
// linked plant, then the resolution default.
func NewResolver(sensors SensorLookup, plants PlantLookup, log logger.Logger) *Resolver {
	return NewResolverWithSources(sensors, log, NewSoilTypeSource(plants, log), ResolutionDefault())
}

// NewResolverWithSources builds a resolver with a custom chain. The
// resolution default is always consulted last even if not listed.
func NewResolverWithSources(sensors SensorLookup, log logger.Logger, sources ...Source) *Resolver {
	return &Resolver{sensors: sensors, chain: sources, log: log}
}

// Resolve returns the calibration for a sensor. It never fails; a missing
// sensor is treated as 10-bit and store errors count as absence.
func (r *Resolver) Resolve(ctx context.Context, sensorID uint) Calibration {
	target := Target{SensorID: sensorID, ADCBits: ADCBits10}
	sensor, err := r.sensors.Get(ctx, sensorID)
	switch {
	case err != nil:
		r.log.Debug("sensor lookup failed during calibration",
			logger.Uint64("sensor_id", uint64(sensorID)),
			logger.Error(err))
	case sensor.ADCBits != 0:
		target.ADCBits = sensor.ADCBits
	}
	return r.ResolveTarget(ctx, target)
}

// ResolveTarget runs the chain for an explicit target.
func (r *Resolver) ResolveTarget(ctx context.Context, target Target) Calibration {
	for _, src := range r.chain {
		if cal, ok := src.Resolve(ctx, target); ok && !cal.IsZero() {
			return cal
		}
	}
	return DefaultFor(target.ADCBits)
}

// ResolutionDefault always resolves to the factory pair.
func ResolutionDefault() Source {
	return SourceFunc(func(_ context.Context, target Target) (Calibration, bool) {
		return DefaultFor(target.ADCBits), true
	})
}

// SoilTypeSource resolves through sensor, first linked plant and the plant's
// soil type.
type SoilTypeSource struct {
	plants PlantLookup
	log    logger.Logger
}

func NewSoilTypeSource(plants PlantLookup, log logger.Logger) *SoilTypeSource {
	return &SoilTypeSource{plants: plants, log: log}
}

func (s *SoilTypeSource) Resolve(ctx context.Context, target Target) (Calibration, bool) {
	sensorField := logger.Uint64("sensor_id", uint64(target.SensorID))

	links, err := s.plants.PlantLinks(ctx, target.SensorID)
	if err != nil {
		s.log.Debug("plant link lookup failed", sensorField, logger.Error(err))
		return Calibration{}, false
	}
	if len(links) == 0 {
		return Calibration{}, false
	}

	plant, err := s.plants.GetPlant(ctx, links[0])
	if err != nil {
		s.log.Debug("plant lookup failed", sensorField, logger.Uint64("plant_id", uint64(links[0])), logger.Error(err))
		return Calibration{}, false
	}
	if plant.SoilTypeID == nil {
		return Calibration{}, false
	}

	soil, err := s.plants.GetSoilType(ctx, *plant.SoilTypeID)
	if err != nil {
		s.log.Debug("soil type lookup failed", sensorField, logger.Uint64("soil_type_id", uint64(*plant.SoilTypeID)), logger.Error(err))
		return Calibration{}, false
	}

	cal := Calibration{RawDry: soil.RawDry, RawWet: soil.RawWet}
	if Is12Bit(target.ADCBits) {
		cal = Calibration{RawDry: soil.RawDry12Bit, RawWet: soil.RawWet12Bit}
	}
	if cal.IsZero() {
		return Calibration{}, false
	}
	return cal, true
}
