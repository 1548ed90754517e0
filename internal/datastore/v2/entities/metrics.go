package entities

import "slices"

// Metric names accepted from sensor nodes.
const (
	MetricTemperature  = "temperature"
	MetricHumidity     = "humidity"
	MetricSoilMoisture = "soil_moisture"
	MetricLightLux     = "light_lux"
	MetricCO2          = "co2_ppm"
)

// Alert rule conditions.
const (
	ConditionAbove = "above"
	ConditionBelow = "below"
)

var metrics = []string{MetricTemperature, MetricHumidity, MetricSoilMoisture, MetricLightLux, MetricCO2}

// Metrics returns the supported metric names in a stable order.
func Metrics() []string {
	return slices.Clone(metrics)
}

// IsValidMetric reports whether name is a supported metric.
func IsValidMetric(name string) bool {
	return slices.Contains(metrics, name)
}

// IsValidCondition reports whether c is above or below.
func IsValidCondition(c string) bool {
	return c == ConditionAbove || c == ConditionBelow
}

// All returns every model for auto-migration, parents first.
func All() []any {
	return []any{
		&BoardType{},
		&SoilType{},
		&Plant{},
		&Sensor{},
		&SensorPlant{},
		&Reading{},
		&AlertRule{},
		&AlertHistory{},
		&WateringEvent{},
		&WateringSchedule{},
		&NotificationChannel{},
	}
}
