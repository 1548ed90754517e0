package entities

import "time"

const (
	WateringSourceAuto   = "auto"
	WateringSourceManual = "manual"
)

// WateringEvent is a detected or manually logged watering of a plant.
// Moisture values are raw ADC counts.
type WateringEvent struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	PlantID        uint      `gorm:"not null;index:idx_watering_events_plant_time,priority:1" json:"plant_id"`
	SensorID       *uint     `gorm:"index" json:"sensor_id"`
	DetectedAt     time.Time `gorm:"not null;index:idx_watering_events_plant_time,priority:2" json:"detected_at"`
	MoistureBefore *float64  `json:"moisture_before"`
	MoistureAfter  *float64  `json:"moisture_after"`
	Source         string    `gorm:"size:16;not null;default:'auto'" json:"source"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (WateringEvent) TableName() string {
	return "watering_events"
}

// WateringSchedule tracks when a plant is next due for watering.
type WateringSchedule struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	PlantID       uint       `gorm:"not null;index" json:"plant_id"`
	IntervalDays  int        `gorm:"not null" json:"interval_days"`
	LastWateredAt *time.Time `json:"last_watered_at"`
	NextDueAt     *time.Time `json:"next_due_at"`
	Enabled       bool       `gorm:"not null" json:"enabled"`
	Notes         string     `gorm:"size:1000;default:''" json:"notes"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (WateringSchedule) TableName() string {
	return "watering_schedules"
}
