package entities

import "time"

// SoilType holds the raw ADC readings of a probe in fully dry and fully wet
// soil, for both supported converter resolutions.
type SoilType struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:255;not null" json:"name"`
	RawDry      int    `gorm:"not null" json:"raw_dry"`
	RawWet      int    `gorm:"not null" json:"raw_wet"`
	RawDry12Bit int    `gorm:"column:raw_dry_12bit;not null" json:"raw_dry_12bit"`
	RawWet12Bit int    `gorm:"column:raw_wet_12bit;not null" json:"raw_wet_12bit"`
}

// TableName returns the table name for GORM.
func (SoilType) TableName() string {
	return "soil_types"
}

type Plant struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	SoilTypeID *uint     `gorm:"index" json:"soil_type_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (Plant) TableName() string {
	return "plants"
}

// SensorPlant links a sensor to a plant it monitors. The earliest link is
// treated as the sensor's primary plant.
type SensorPlant struct {
	SensorID  uint      `gorm:"primaryKey;autoIncrement:false" json:"sensor_id"`
	PlantID   uint      `gorm:"primaryKey;autoIncrement:false;index" json:"plant_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (SensorPlant) TableName() string {
	return "sensor_plants"
}
