package entities

import "time"

// AlertRule is a per-sensor threshold rule. Rules are never hard deleted;
// deactivation clears Active.
type AlertRule struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SensorID  uint      `gorm:"not null;index:idx_alert_rules_sensor_metric,priority:1" json:"sensor_id"`
	Metric    string    `gorm:"size:32;not null;index:idx_alert_rules_sensor_metric,priority:2" json:"metric"`
	Condition string    `gorm:"size:10;not null" json:"condition"`
	Threshold float64   `gorm:"not null" json:"threshold"`
	Email     string    `gorm:"size:255;default:''" json:"email"`
	Active    bool      `gorm:"not null;index" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (AlertRule) TableName() string {
	return "alert_rules"
}
