package repository

import "gorm.io/gorm"

// Store bundles every repository over one database handle.
type Store struct {
	Sensors  SensorRepository
	Plants   PlantRepository
	Readings ReadingRepository
	Alerts   AlertRuleRepository
	Watering WateringRepository
	Channels NotificationChannelRepository
}

// NewStore creates all repositories on db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		Sensors:  NewSensorRepository(db),
		Plants:   NewPlantRepository(db),
		Readings: NewReadingRepository(db),
		Alerts:   NewAlertRuleRepository(db),
		Watering: NewWateringRepository(db),
		Channels: NewNotificationChannelRepository(db),
	}
}
