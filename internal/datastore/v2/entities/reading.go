package entities

import "time"

// Reading is a single stored measurement. Value is the raw value as reported
// by the node; soil moisture is kept in ADC counts.
type Reading struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SensorID   uint      `gorm:"not null;index:idx_readings_sensor_metric_time,priority:1" json:"sensor_id"`
	Metric     string    `gorm:"size:32;not null;index:idx_readings_sensor_metric_time,priority:2" json:"metric"`
	Value      float64   `gorm:"not null" json:"value"`
	RecordedAt time.Time `gorm:"not null;index:idx_readings_sensor_metric_time,priority:3" json:"recorded_at"`
	PlantID    *uint     `gorm:"index" json:"plant_id"`
}

// TableName returns the table name for GORM.
func (Reading) TableName() string {
	return "readings"
}
