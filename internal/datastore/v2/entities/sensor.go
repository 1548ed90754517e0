package entities

import "time"

// Sensor is a physical sensor node identified by its MAC address.
// Nodes are registered automatically the first time they report.
type Sensor struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:255;not null" json:"name"`
	MACAddress  string     `gorm:"size:64;not null;uniqueIndex" json:"mac_address"`
	DisplayName string     `gorm:"size:255;default:''" json:"display_name"`
	Location    string     `gorm:"size:255;default:''" json:"location"`
	ADCBits     int        `gorm:"not null;default:10" json:"adc_bits"`
	BoardTypeID *uint      `gorm:"index" json:"board_type_id"`
	LastSeenAt  *time.Time `json:"last_seen_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (Sensor) TableName() string {
	return "sensors"
}

// BoardType is a known microcontroller board, referenced by slug from ingest.
type BoardType struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Slug string `gorm:"size:64;not null;uniqueIndex" json:"slug"`
	Name string `gorm:"size:255;not null" json:"name"`
}

// TableName returns the table name for GORM.
func (BoardType) TableName() string {
	return "board_types"
}
