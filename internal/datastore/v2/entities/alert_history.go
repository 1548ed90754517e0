package entities

import "time"

// AlertHistory records each time an alert rule fires. ValueAtTrigger is the
// raw reported value. Recent rows drive the per-rule cooldown.
type AlertHistory struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	RuleID         uint       `gorm:"not null;index:idx_alert_history_rule_triggered,priority:1" json:"rule_id"`
	TriggeredAt    time.Time  `gorm:"not null;index:idx_alert_history_rule_triggered,priority:2" json:"triggered_at"`
	ValueAtTrigger float64    `gorm:"not null" json:"value_at_trigger"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	Rule           *AlertRule `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE" json:"rule,omitempty"`
}

// TableName returns the table name for GORM.
func (AlertHistory) TableName() string {
	return "alert_history"
}
